package wallet

import (
	"bytes"
	"fmt"
	"time"

	"github.com/agoranet-labs/agora-wallet/pkg/types"
)

// Kind tags the wallet variant. Format detection happens once at
// import time and is encoded here rather than re-sniffed downstream.
type Kind uint8

const (
	// KindSeed is a locally generated HD wallet backed by a BIP-39 seed.
	KindSeed Kind = iota
	// KindImportedMaster is a foreign HD wallet imported as a raw BIP32
	// master key + chain code, with an address set discovered by scanning.
	KindImportedMaster
	// KindWatchOnly has addresses but no private key material.
	KindWatchOnly
)

// String returns a human-readable name for the wallet kind.
func (k Kind) String() string {
	switch k {
	case KindSeed:
		return "seed"
	case KindImportedMaster:
		return "imported"
	case KindWatchOnly:
		return "watch-only"
	default:
		return "unknown"
	}
}

// Address is one derived address record within a wallet.
// Index is unique within a wallet; Path is a deterministic function of
// (master key, change, index).
type Address struct {
	Index     uint32        `json:"index"`
	Path      string        `json:"path"`
	PublicKey []byte        `json:"public_key"`
	Address   types.Address `json:"address"`
	IsChange  bool          `json:"is_change"`
	CreatedAt time.Time     `json:"created_at"`

	// PrivateKey is populated only while the wallet is unlocked in memory.
	// Never serialized: keys re-derive from the master material on load.
	PrivateKey []byte `json:"-"`
}

// Wallet is the durable representation of an HD wallet. Owned exclusively
// by Store; mutated only through explicit derive/import/delete operations.
type Wallet struct {
	Kind      Kind      `json:"kind"`
	CreatedAt time.Time `json:"created_at"`

	// Seed is set for KindSeed wallets.
	Seed []byte `json:"seed,omitempty"`

	// MasterKey and ChainCode are set for KindImportedMaster wallets.
	MasterKey []byte `json:"master_key,omitempty"`
	ChainCode []byte `json:"chain_code,omitempty"`

	// Addresses is insertion-stable: new derivations append.
	Addresses []Address `json:"addresses"`
}

// masterKey returns the wallet's master HD key, or ErrNoMasterKey for
// watch-only wallets.
func (w *Wallet) masterKey() (*HDKey, error) {
	switch w.Kind {
	case KindSeed:
		return NewMasterKey(w.Seed)
	case KindImportedMaster:
		return NewMasterKeyFromParts(w.MasterKey, w.ChainCode)
	default:
		return nil, ErrNoMasterKey
	}
}

// HasPrivateKeys reports whether the wallet can sign.
func (w *Wallet) HasPrivateKeys() bool {
	return w.Kind == KindSeed || w.Kind == KindImportedMaster
}

// DeriveAddress derives the address at the given (change, index) coordinate.
// Pure and deterministic: calling it twice with the same wallet and index
// yields byte-identical results. It does not mutate the wallet.
func DeriveAddress(w *Wallet, index uint32, isChange bool) (Address, error) {
	master, err := w.masterKey()
	if err != nil {
		return Address{}, err
	}

	change := uint32(ChangeExternal)
	if isChange {
		change = ChangeInternal
	}

	key, err := master.DeriveAddressKey(change, index)
	if err != nil {
		return Address{}, fmt.Errorf("derive address %d: %w", index, err)
	}

	return Address{
		Index:      index,
		Path:       PathString(change, index),
		PublicKey:  key.PublicKeyBytes(),
		PrivateKey: key.PrivateKeyBytes(),
		Address:    key.Address(),
		IsChange:   isChange,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// GenerateAddress derives the next unused receive address, appends it to
// the wallet and returns it. Never reuses an index already present.
func (w *Wallet) GenerateAddress() (Address, error) {
	next := uint32(0)
	for _, a := range w.Addresses {
		if !a.IsChange && a.Index >= next {
			next = a.Index + 1
		}
	}
	addr, err := DeriveAddress(w, next, false)
	if err != nil {
		return Address{}, err
	}
	w.Addresses = append(w.Addresses, addr)
	return addr, nil
}

// AddressByChain finds the wallet address record for a chain address.
func (w *Wallet) AddressByChain(addr types.Address) (*Address, bool) {
	for i := range w.Addresses {
		if w.Addresses[i].Address == addr {
			return &w.Addresses[i], true
		}
	}
	return nil, false
}

// PrivateKeyFor returns the private key bytes for a chain address, deriving
// them from the master material if the in-memory copy is missing. Returns
// ErrSigning if the wallet cannot produce a key for the address.
func (w *Wallet) PrivateKeyFor(addr types.Address) ([]byte, error) {
	rec, ok := w.AddressByChain(addr)
	if !ok {
		return nil, fmt.Errorf("%w: address %s not in wallet", ErrSigning, addr)
	}
	if len(rec.PrivateKey) == 32 {
		return rec.PrivateKey, nil
	}
	if !w.HasPrivateKeys() {
		return nil, fmt.Errorf("%w: wallet is %s", ErrSigning, w.Kind)
	}
	derived, err := DeriveAddress(w, rec.Index, rec.IsChange)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigning, err)
	}
	if !bytes.Equal(derived.Address[:], addr[:]) {
		return nil, fmt.Errorf("%w: derivation mismatch for %s", ErrSigning, addr)
	}
	rec.PrivateKey = derived.PrivateKey
	return rec.PrivateKey, nil
}

// RederiveKeys repopulates the in-memory private keys for every address
// record. Called by Store after loading a wallet with master material.
func (w *Wallet) RederiveKeys() error {
	if !w.HasPrivateKeys() {
		return nil
	}
	for i := range w.Addresses {
		rec := &w.Addresses[i]
		derived, err := DeriveAddress(w, rec.Index, rec.IsChange)
		if err != nil {
			return err
		}
		if !bytes.Equal(derived.Address[:], rec.Address[:]) {
			return fmt.Errorf("address %d re-derivation mismatch: have %s, derived %s",
				rec.Index, rec.Address, derived.Address)
		}
		rec.PrivateKey = derived.PrivateKey
		rec.PublicKey = derived.PublicKey
	}
	return nil
}
