package main

import (
	"context"
	"strings"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/agoranet-labs/agora-wallet/config"
	"github.com/agoranet-labs/agora-wallet/internal/wallet"
)

// WalletService exposes wallet operations to the frontend. The wallet lives
// in-process; keys never leave the session database.
type WalletService struct {
	app *App

	// pendingImport holds a legacy import awaiting scan and adoption.
	pendingImport *wallet.Wallet
}

// WalletStatus describes the loaded wallet.
type WalletStatus struct {
	Exists    bool   `json:"exists"`
	Kind      string `json:"kind"`
	WatchOnly bool   `json:"watch_only"`
	Addresses int    `json:"addresses"`
}

// AddressInfo describes one derived address.
type AddressInfo struct {
	Index    uint32 `json:"index"`
	Path     string `json:"path"`
	Address  string `json:"address"`
	IsChange bool   `json:"is_change"`
}

// BalanceInfo is the vesting breakdown of an address, in decimal AGO.
type BalanceInfo struct {
	Vested   string `json:"vested"`
	Unvested string `json:"unvested"`
	All      string `json:"all"`
}

// SendRequest holds the parameters for sending funds.
type SendRequest struct {
	Destination string `json:"destination"` // address or contact name
	Amount      string `json:"amount"`      // decimal AGO
	FromAddress string `json:"from_address"`
}

// SendResponse is returned after a send settles.
type SendResponse struct {
	Status    string   `json:"status"` // success, partial, failed
	TxHashes  []string `json:"tx_hashes"`
	Failures  []string `json:"failures,omitempty"`
	AmountAGO string   `json:"amount"`
	FeeAGO    string   `json:"fee"`
}

// ScannedInfo describes a discovered address during import scanning.
type ScannedInfo struct {
	Index   uint32 `json:"index"`
	Address string `json:"address"`
	Balance string `json:"balance"`
}

// GenerateMnemonic creates a new 24-word BIP-39 mnemonic.
func (w *WalletService) GenerateMnemonic() (string, error) {
	return wallet.GenerateMnemonic()
}

// ValidateMnemonic checks if a mnemonic phrase is valid.
func (w *WalletService) ValidateMnemonic(mnemonic string) bool {
	return wallet.ValidateMnemonic(mnemonic)
}

// Status reports whether a wallet exists and what kind it is.
func (w *WalletService) Status() (*WalletStatus, error) {
	s, err := w.app.currentSession()
	if err != nil {
		return nil, err
	}
	exists, err := s.HasWallet()
	if err != nil {
		return nil, err
	}
	st := &WalletStatus{Exists: exists}
	if lw := s.Wallet(); lw != nil {
		st.Kind = lw.Kind.String()
		st.WatchOnly = !lw.HasPrivateKeys()
		st.Addresses = len(lw.Addresses)
	}
	return st, nil
}

// CreateWallet creates a wallet from a mnemonic and optional passphrase.
func (w *WalletService) CreateWallet(mnemonic, passphrase string) (*WalletStatus, error) {
	s, err := w.app.currentSession()
	if err != nil {
		return nil, err
	}
	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	lw, err := s.Create(mnemonic, passphrase)
	if err != nil {
		return nil, err
	}
	return &WalletStatus{
		Exists:    true,
		Kind:      lw.Kind.String(),
		Addresses: len(lw.Addresses),
	}, nil
}

// Addresses lists the wallet's derived addresses.
func (w *WalletService) Addresses() ([]AddressInfo, error) {
	s, err := w.app.currentSession()
	if err != nil {
		return nil, err
	}
	lw := s.Wallet()
	if lw == nil {
		return nil, wallet.ErrWalletNotFound
	}
	out := make([]AddressInfo, 0, len(lw.Addresses))
	for _, a := range lw.Addresses {
		out = append(out, AddressInfo{
			Index:    a.Index,
			Path:     a.Path,
			Address:  a.Address.String(),
			IsChange: a.IsChange,
		})
	}
	return out, nil
}

// NewAddress derives and persists the next receive address.
func (w *WalletService) NewAddress() (*AddressInfo, error) {
	s, err := w.app.currentSession()
	if err != nil {
		return nil, err
	}
	a, err := s.NewAddress()
	if err != nil {
		return nil, err
	}
	return &AddressInfo{
		Index:   a.Index,
		Path:    a.Path,
		Address: a.Address.String(),
	}, nil
}

// GetBalance returns the vesting breakdown of one address. Classification
// progress is streamed to the frontend on the "balance:progress" event.
func (w *WalletService) GetBalance(address string) (*BalanceInfo, error) {
	s, err := w.app.currentSession()
	if err != nil {
		return nil, err
	}
	addr, err := parseContactAddress(address)
	if err != nil {
		return nil, err
	}

	b, err := s.VestingBalances(context.Background(), addr, func(done, total int) {
		if w.app.ctx != nil {
			runtime.EventsEmit(w.app.ctx, "balance:progress", done, total)
		}
	})
	if err != nil {
		return nil, err
	}
	return &BalanceInfo{
		Vested:   config.FormatAmount(b.Vested),
		Unvested: config.FormatAmount(b.Unvested),
		All:      config.FormatAmount(b.All),
	}, nil
}

// Send plans, signs, and broadcasts a transfer.
func (w *WalletService) Send(req SendRequest) (*SendResponse, error) {
	s, err := w.app.currentSession()
	if err != nil {
		return nil, err
	}
	amount, err := config.ParseAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	from, err := parseContactAddress(req.FromAddress)
	if err != nil {
		return nil, err
	}

	res, err := s.Send(context.Background(), req.Destination, amount, from)
	if err != nil {
		return nil, err
	}

	resp := &SendResponse{
		Status:    res.Outcome.Status.String(),
		AmountAGO: config.FormatAmount(res.Amount),
		FeeAGO:    config.FormatAmount(res.Fee),
	}
	for _, id := range res.Outcome.SucceededIDs {
		resp.TxHashes = append(resp.TxHashes, id.String())
	}
	for _, f := range res.Outcome.Failures {
		resp.Failures = append(resp.Failures, f.Err.Error())
	}
	return resp, nil
}

// ImportWallet parses an exported wallet file. password may be empty for
// plain exports. Legacy imports return needs_scan=true; the frontend then
// calls ScanAddresses and AdoptScanned.
func (w *WalletService) ImportWallet(data []byte, password string) (bool, error) {
	s, err := w.app.currentSession()
	if err != nil {
		return false, err
	}
	var pw []byte
	if password != "" {
		pw = []byte(password)
	}
	res, err := s.ImportWallet(data, pw)
	if err != nil {
		return false, err
	}
	w.pendingImport = res.Wallet
	return res.NeedsScan, nil
}

// ScanAddresses probes the first count indices of a pending legacy import
// and reports which addresses carry funds.
func (w *WalletService) ScanAddresses(count int) ([]ScannedInfo, error) {
	s, err := w.app.currentSession()
	if err != nil {
		return nil, err
	}
	if w.pendingImport == nil {
		return nil, wallet.ErrWalletNotFound
	}
	scanned, err := s.ScanWallet(context.Background(), w.pendingImport, count)
	if err != nil {
		return nil, err
	}
	out := make([]ScannedInfo, 0, len(scanned))
	for _, sa := range scanned {
		out = append(out, ScannedInfo{
			Index:   sa.Address.Index,
			Address: sa.Address.Address.String(),
			Balance: config.FormatAmount(sa.Balance),
		})
	}
	return out, nil
}

// AdoptScanned persists the pending import with the selected address
// indices.
func (w *WalletService) AdoptScanned(indices []uint32) error {
	s, err := w.app.currentSession()
	if err != nil {
		return err
	}
	if w.pendingImport == nil {
		return wallet.ErrWalletNotFound
	}

	scanned, err := s.ScanWallet(context.Background(), w.pendingImport, 0)
	if err != nil {
		return err
	}
	want := make(map[uint32]struct{}, len(indices))
	for _, i := range indices {
		want[i] = struct{}{}
	}
	var selected []wallet.ScannedAddress
	for _, sa := range scanned {
		if _, ok := want[sa.Address.Index]; ok {
			selected = append(selected, sa)
		}
	}

	if err := s.AdoptScanned(w.pendingImport, selected); err != nil {
		return err
	}
	w.pendingImport = nil
	return nil
}

// ExportWallet serializes the wallet, encrypted when password is non-empty.
func (w *WalletService) ExportWallet(password string) ([]byte, error) {
	s, err := w.app.currentSession()
	if err != nil {
		return nil, err
	}
	var pw []byte
	if password != "" {
		pw = []byte(password)
	}
	return s.ExportWallet(pw)
}
