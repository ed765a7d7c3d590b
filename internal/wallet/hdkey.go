package wallet

import (
	"fmt"

	"github.com/agoranet-labs/agora-wallet/pkg/crypto"
	"github.com/agoranet-labs/agora-wallet/pkg/types"
	"github.com/tyler-smith/go-bip32"
)

// BIP-44 derivation path constants.
// Full path: m/44'/CoinType'/0'/change/index
const (
	// PurposeBIP44 is the BIP-44 purpose field (hardened).
	PurposeBIP44 = bip32.FirstHardenedChild + 44

	// CoinTypeAgora is our registered (placeholder) coin type (hardened).
	CoinTypeAgora = bip32.FirstHardenedChild + 7401

	// AccountDefault is the single account used by the engine (hardened).
	AccountDefault = bip32.FirstHardenedChild + 0

	// ChangeExternal is for receiving addresses.
	ChangeExternal = 0

	// ChangeInternal is for change addresses.
	ChangeInternal = 1
)

// HDKey represents a hierarchical deterministic key (BIP-32).
type HDKey struct {
	key *bip32.Key
}

// NewMasterKey creates a master HD key from a 64-byte seed.
func NewMasterKey(seed []byte) (*HDKey, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", SeedSize, len(seed))
	}
	master, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("create master key: %w", err)
	}
	return &HDKey{key: master}, nil
}

// NewMasterKeyFromParts reconstructs a master HD key from a raw 32-byte
// private key and 32-byte chain code, as found in foreign BIP32-style
// wallet files.
func NewMasterKeyFromParts(privKey, chainCode []byte) (*HDKey, error) {
	if len(privKey) != 32 {
		return nil, fmt.Errorf("master key must be 32 bytes, got %d", len(privKey))
	}
	if len(chainCode) != 32 {
		return nil, fmt.Errorf("chain code must be 32 bytes, got %d", len(chainCode))
	}
	key := &bip32.Key{
		Version:     bip32.PrivateWalletVersion,
		Key:         append([]byte{0x00}, privKey...),
		ChainCode:   chainCode,
		ChildNumber: make([]byte, 4),
		FingerPrint: make([]byte, 4),
		Depth:       0,
		IsPrivate:   true,
	}
	return &HDKey{key: key}, nil
}

// DeriveChild derives a child key at the given index.
// For hardened derivation, add bip32.FirstHardenedChild to the index.
func (k *HDKey) DeriveChild(index uint32) (*HDKey, error) {
	child, err := k.key.NewChildKey(index)
	if err != nil {
		return nil, fmt.Errorf("derive child %d: %w", index, err)
	}
	return &HDKey{key: child}, nil
}

// DerivePath derives a key along a sequence of indices.
func (k *HDKey) DerivePath(indices ...uint32) (*HDKey, error) {
	current := k
	for _, idx := range indices {
		child, err := current.DeriveChild(idx)
		if err != nil {
			return nil, err
		}
		current = child
	}
	return current, nil
}

// DeriveAddressKey derives the key at m/44'/7401'/0'/change/index.
func (k *HDKey) DeriveAddressKey(change, index uint32) (*HDKey, error) {
	return k.DerivePath(
		PurposeBIP44,
		CoinTypeAgora,
		AccountDefault,
		change,
		index,
	)
}

// PathString returns the textual derivation path for (change, index).
func PathString(change, index uint32) string {
	return fmt.Sprintf("m/44'/7401'/0'/%d/%d", change, index)
}

// PrivateKeyBytes returns the raw 32-byte private key.
// Returns nil if this is a public-only key.
func (k *HDKey) PrivateKeyBytes() []byte {
	if !k.key.IsPrivate {
		return nil
	}
	// bip32 Key.Key is 33 bytes with a leading 0x00 for private keys.
	raw := k.key.Key
	if len(raw) == 33 && raw[0] == 0 {
		return raw[1:]
	}
	return raw
}

// PublicKeyBytes returns the compressed 33-byte public key.
func (k *HDKey) PublicKeyBytes() []byte {
	pub := k.key.PublicKey()
	return pub.Key
}

// Signer returns a crypto signer from this HD key's private key.
// Returns error if this is a public-only key.
func (k *HDKey) Signer() (*crypto.PrivateKey, error) {
	priv := k.PrivateKeyBytes()
	if priv == nil {
		return nil, fmt.Errorf("cannot create signer from public key")
	}
	return crypto.PrivateKeyFromBytes(priv)
}

// Address derives an Agora address from this key's public key.
// Address = first 20 bytes of BLAKE3(compressed_pubkey).
func (k *HDKey) Address() types.Address {
	pub := k.PublicKeyBytes()
	hash := crypto.Hash(pub)
	var addr types.Address
	copy(addr[:], hash[:types.AddressSize])
	return addr
}

// IsPrivate returns true if this key contains a private key.
func (k *HDKey) IsPrivate() bool {
	return k.key.IsPrivate
}

// Depth returns the derivation depth (0 for master).
func (k *HDKey) Depth() uint8 {
	return k.key.Depth
}

// MasterKeyParts returns the raw (private key, chain code) pair.
// Used when exporting in the legacy BIP32 format.
func (k *HDKey) MasterKeyParts() ([]byte, []byte) {
	return k.PrivateKeyBytes(), k.key.ChainCode
}
