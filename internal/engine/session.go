// Package engine wires the wallet subsystems into one session consumed by
// the UI shell and the CLI.
package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/agoranet-labs/agora-wallet/config"
	"github.com/agoranet-labs/agora-wallet/internal/broadcast"
	"github.com/agoranet-labs/agora-wallet/internal/indexer"
	"github.com/agoranet-labs/agora-wallet/internal/log"
	"github.com/agoranet-labs/agora-wallet/internal/storage"
	"github.com/agoranet-labs/agora-wallet/internal/utxo"
	"github.com/agoranet-labs/agora-wallet/internal/wallet"
	"github.com/agoranet-labs/agora-wallet/pkg/types"
)

// Session owns one wallet and its indexer link. All UI and CLI operations go
// through it; it is safe for concurrent use.
type Session struct {
	cfg *config.Config
	db  storage.DB

	store     *wallet.Store
	conn      *indexer.ConnManager
	tracker   *utxo.Tracker
	utxoStore *utxo.Store
	planner   *wallet.Planner
	scanner   *wallet.Scanner

	// mu guards w. The wallet instance never leaves the session: accessors
	// hand out detached copies and every mutation happens under mu.
	mu sync.RWMutex
	w  *wallet.Wallet
}

// Options configures session construction.
type Options struct {
	// Resolver maps marketplace identifiers to addresses. Optional; without
	// one only chain addresses are accepted as send destinations.
	Resolver wallet.Resolver
	// Dialer overrides the indexer dialer, for tests. nil uses websocket.
	Dialer indexer.Dialer
	// OnConnState is called on connection state changes. Optional.
	OnConnState func(indexer.State)
}

// New opens the session database under cfg.DataDir and assembles the
// session. The returned session is not yet connected and has no wallet
// loaded; call Open or Create, then Connect.
func New(cfg *config.Config, opts Options) (*Session, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	db, err := storage.NewBadger(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open wallet database: %w", err)
	}
	return NewWithDB(cfg, db, opts), nil
}

// NewWithDB assembles a session over an existing database. The session takes
// ownership of db and closes it on Close.
func NewWithDB(cfg *config.Config, db storage.DB, opts Options) *Session {
	if cfg.Network == config.Testnet {
		types.SetAddressHRP(types.TestnetHRP)
	} else {
		types.SetAddressHRP(types.MainnetHRP)
	}

	s := &Session{
		cfg:       cfg,
		db:        db,
		store:     wallet.NewStore(db),
		utxoStore: utxo.NewStore(db),
	}

	s.conn = indexer.NewConnManager(cfg.Indexer, opts.Dialer, opts.OnConnState, func(n indexer.BlockNotify) {
		s.tracker.OnBlock(n)
	})
	s.tracker = utxo.NewTracker(s.conn, s.utxoStore)
	s.planner = wallet.NewPlanner(wallet.PlannerConfig{
		DustThreshold: cfg.Fees.DustThreshold,
		MaxTxInputs:   cfg.Fees.MaxTxInputs,
		EstimateFee:   wallet.SizeFeeEstimator(cfg.Fees.FeeRate),
	}, opts.Resolver, s.tracker)
	s.scanner = wallet.NewScanner(s.conn, cfg.Scanner.MaxCount)

	return s
}

// Close tears down the indexer link and the database.
func (s *Session) Close() error {
	s.conn.Close()
	return s.db.Close()
}

// HasWallet reports whether a wallet exists in the session database.
func (s *Session) HasWallet() (bool, error) {
	return s.store.Exists()
}

// Create generates a wallet from a BIP-39 mnemonic and loads it.
func (s *Session) Create(mnemonic, passphrase string) (*wallet.Wallet, error) {
	w, err := s.store.Create(mnemonic, passphrase)
	if err != nil {
		return nil, err
	}
	s.adopt(w)
	log.Wallet.Info().Str("kind", w.Kind.String()).Msg("wallet created")
	return w, nil
}

// Open loads the stored wallet.
func (s *Session) Open() (*wallet.Wallet, error) {
	w, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	s.adopt(w)
	return w, nil
}

// adopt installs a private copy of the wallet, so later mutations through
// the caller's reference cannot race the session.
func (s *Session) adopt(w *wallet.Wallet) {
	s.mu.Lock()
	s.w = cloneWallet(w)
	s.mu.Unlock()
	for _, a := range w.Addresses {
		s.tracker.Track(a.Address)
	}
}

// cloneWallet copies a wallet deeply enough that appends to one side's
// address list never show through on the other. The master key material is
// shared: it is write-once after load.
func cloneWallet(w *wallet.Wallet) *wallet.Wallet {
	if w == nil {
		return nil
	}
	cp := *w
	cp.Addresses = append([]wallet.Address(nil), w.Addresses...)
	return &cp
}

// Wallet returns a point-in-time copy of the loaded wallet, or nil. The copy
// is detached: addresses derived afterwards do not appear in it, and mutating
// it does not touch the session.
func (s *Session) Wallet() *wallet.Wallet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneWallet(s.w)
}

func (s *Session) requireWallet() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.w == nil {
		return wallet.ErrWalletNotFound
	}
	return nil
}

// Connect starts the indexer connect cycle. Safe to call repeatedly.
func (s *Session) Connect() { s.conn.Connect() }

// CancelConnect aborts an in-flight connect cycle.
func (s *Session) CancelConnect() { s.conn.CancelConnect() }

// ConnState returns the indexer connection state.
func (s *Session) ConnState() indexer.State { return s.conn.State() }

// Tip returns the indexer's current best block.
func (s *Session) Tip(ctx context.Context) (indexer.TipInfo, error) {
	return s.conn.Tip(ctx)
}

// NewAddress derives the next receive address, persists it, and starts
// tracking it.
func (s *Session) NewAddress() (*wallet.Address, error) {
	s.mu.Lock()
	if s.w == nil {
		s.mu.Unlock()
		return nil, wallet.ErrWalletNotFound
	}
	addr, err := s.w.GenerateAddress()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	err = s.store.Save(s.w)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s.tracker.Track(addr.Address)
	return &addr, nil
}

// Balance returns the confirmed balance of one wallet address.
func (s *Session) Balance(ctx context.Context, addr types.Address) (uint64, error) {
	return s.tracker.Balance(ctx, addr)
}

// TotalBalance sums the confirmed balance of every wallet address.
func (s *Session) TotalBalance(ctx context.Context) (uint64, error) {
	addrs, err := s.walletAddresses()
	if err != nil {
		return 0, err
	}
	var total uint64
	for _, a := range addrs {
		b, err := s.tracker.Balance(ctx, a)
		if err != nil {
			return 0, err
		}
		total += b
	}
	return total, nil
}

// walletAddresses snapshots the chain addresses of the loaded wallet.
func (s *Session) walletAddresses() ([]types.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.w == nil {
		return nil, wallet.ErrWalletNotFound
	}
	addrs := make([]types.Address, len(s.w.Addresses))
	for i, a := range s.w.Addresses {
		addrs[i] = a.Address
	}
	return addrs, nil
}

// VestingBalances classifies one address's outputs against the current tip
// and returns the vested/unvested breakdown. onProgress is optional and is
// called after each classified output. Cancellation keeps partial results.
func (s *Session) VestingBalances(ctx context.Context, addr types.Address, onProgress func(done, total int)) (utxo.Balances, error) {
	tip, err := s.conn.Tip(ctx)
	if err != nil {
		return utxo.Balances{}, err
	}
	pred := utxo.HeightPredicate(tip.Height, config.CoinbaseMaturity)
	return s.tracker.ClassifyAddress(ctx, addr, pred, onProgress)
}

// SendResult reports a completed send.
type SendResult struct {
	Outcome broadcast.Outcome
	Amount  uint64
	Fee     uint64
}

// Send plans, signs, and broadcasts a transfer of amount base units from the
// source address to the destination (a chain address or a resolvable
// identifier). After submission the source's UTXO cache is refreshed so
// spent outputs disappear immediately.
func (s *Session) Send(ctx context.Context, destination string, amount uint64, source types.Address) (*SendResult, error) {
	if err := s.requireWallet(); err != nil {
		return nil, err
	}

	plan, err := s.planner.CreatePlan(ctx, destination, amount, source)
	if err != nil {
		return nil, err
	}

	signed, err := s.signPlan(plan)
	if err != nil {
		return nil, err
	}

	outcome := broadcast.SubmitAll(ctx, s.conn, signed)

	if _, err := s.tracker.Refresh(ctx, source); err != nil {
		log.Wallet.Warn().Err(err).Msg("post-send refresh failed")
	}

	return &SendResult{
		Outcome: outcome,
		Amount:  plan.TotalAmount,
		Fee:     plan.TotalFee,
	}, nil
}

// signPlan signs under the session lock: key lookups cache derived private
// keys on the wallet's address records.
func (s *Session) signPlan(plan *wallet.Plan) ([]wallet.SignedTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w == nil {
		return nil, wallet.ErrWalletNotFound
	}
	return wallet.SignPlan(s.w, plan)
}

// Scan probes the first count address indices of the loaded wallet against
// the indexer and reports which ones carry funds. Nothing is persisted; pass
// the selection to AdoptScanned.
func (s *Session) Scan(ctx context.Context, count int) ([]wallet.ScannedAddress, error) {
	w := s.Wallet()
	if w == nil {
		return nil, wallet.ErrWalletNotFound
	}
	return s.ScanWallet(ctx, w, count)
}

// ScanWallet is Scan for a wallet that is not (yet) loaded, such as a legacy
// import awaiting adoption.
func (s *Session) ScanWallet(ctx context.Context, w *wallet.Wallet, count int) ([]wallet.ScannedAddress, error) {
	if count <= 0 {
		count = s.cfg.Scanner.DefaultCount
	}
	return s.scanner.Scan(ctx, w, count)
}

// ImportWallet parses an exported wallet file. Encrypted files need the
// password; legacy files are returned unsaved with NeedsScan set so the
// caller can run Scan and then AdoptScanned.
func (s *Session) ImportWallet(data, password []byte) (*wallet.ImportResult, error) {
	res, err := s.store.Import(data, password)
	if err != nil {
		return nil, err
	}
	if !res.NeedsScan {
		s.adopt(res.Wallet)
	}
	return res, nil
}

// AdoptScanned persists an imported wallet with the selected scanned
// addresses and loads it.
func (s *Session) AdoptScanned(w *wallet.Wallet, selected []wallet.ScannedAddress) error {
	if err := s.store.AdoptScanned(w, selected); err != nil {
		return err
	}
	s.adopt(w)
	return nil
}

// ExportWallet serializes the loaded wallet, encrypted when a password is
// given.
func (s *Session) ExportWallet(password []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.w == nil {
		return nil, wallet.ErrWalletNotFound
	}
	return s.store.Export(s.w, password)
}

// DeleteWallet removes the stored wallet and its UTXO cache.
func (s *Session) DeleteWallet() error {
	if err := s.store.Delete(); err != nil {
		return err
	}
	if err := s.utxoStore.Clear(); err != nil {
		return err
	}
	s.mu.Lock()
	s.w = nil
	s.mu.Unlock()
	return nil
}
