// Package utxo caches the wallet's unspent outputs between indexer
// refreshes and classifies them for spendability.
package utxo

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/agoranet-labs/agora-wallet/internal/indexer"
	"github.com/agoranet-labs/agora-wallet/internal/storage"
	"github.com/agoranet-labs/agora-wallet/pkg/types"
)

// Key prefixes for the UTXO cache.
var (
	prefixEntry = []byte("u/") // u/<address><txid><index> -> entry JSON
)

// Classification is the vesting status of a cached output.
type Classification int

const (
	// Unclassified outputs have not been through the classifier yet.
	Unclassified Classification = iota
	// Vested outputs are spendable now.
	Vested
	// Unvested outputs are time locked or immature.
	Unvested
)

func (c Classification) String() string {
	switch c {
	case Vested:
		return "vested"
	case Unvested:
		return "unvested"
	default:
		return "unclassified"
	}
}

// Entry is a cached unspent output together with its owning address and
// vesting classification.
type Entry struct {
	indexer.Utxo
	Address types.Address  `json:"address"`
	Class   Classification `json:"class"`
}

// Store persists the UTXO cache in a storage.DB, keyed by owning address so
// a refresh replaces exactly one address's set.
type Store struct {
	db storage.DB
}

// NewStore creates a UTXO cache backed by the given database.
func NewStore(db storage.DB) *Store {
	return &Store{db: db}
}

// entryKey builds a cache key: "u/" + addr(20) + txid(32) + index(4).
func entryKey(addr types.Address, op types.Outpoint) []byte {
	key := make([]byte, len(prefixEntry)+types.AddressSize+types.HashSize+4)
	copy(key, prefixEntry)
	copy(key[len(prefixEntry):], addr[:])
	off := len(prefixEntry) + types.AddressSize
	copy(key[off:], op.TxID[:])
	binary.BigEndian.PutUint32(key[off+types.HashSize:], op.Index)
	return key
}

// addrPrefix builds the scan prefix for one address: "u/" + addr(20).
func addrPrefix(addr types.Address) []byte {
	prefix := make([]byte, len(prefixEntry)+types.AddressSize)
	copy(prefix, prefixEntry)
	copy(prefix[len(prefixEntry):], addr[:])
	return prefix
}

// GetByAddress returns the cached entries of an address.
func (s *Store) GetByAddress(addr types.Address) ([]Entry, error) {
	var entries []Entry
	err := s.db.ForEach(addrPrefix(addr), func(_, value []byte) error {
		var e Entry
		if err := json.Unmarshal(value, &e); err != nil {
			return fmt.Errorf("entry unmarshal: %w", err)
		}
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan utxo cache: %w", err)
	}
	return entries, nil
}

// ReplaceAddress swaps an address's cached set for a fresh one. Entries that
// survive the swap keep their previous classification so a refresh does not
// force reclassification.
func (s *Store) ReplaceAddress(addr types.Address, fresh []indexer.Utxo) ([]Entry, error) {
	previous, err := s.GetByAddress(addr)
	if err != nil {
		return nil, err
	}
	prevClass := make(map[types.Outpoint]Classification, len(previous))
	for _, e := range previous {
		prevClass[e.Outpoint()] = e.Class
	}

	keep := make(map[types.Outpoint]struct{}, len(fresh))
	entries := make([]Entry, 0, len(fresh))
	for _, u := range fresh {
		op := u.Outpoint()
		keep[op] = struct{}{}
		e := Entry{Utxo: u, Address: addr, Class: prevClass[op]}

		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("entry marshal: %w", err)
		}
		if err := s.db.Put(entryKey(addr, op), data); err != nil {
			return nil, fmt.Errorf("entry put: %w", err)
		}
		entries = append(entries, e)
	}

	// Remove spent outpoints.
	for _, e := range previous {
		op := e.Outpoint()
		if _, ok := keep[op]; !ok {
			if err := s.db.Delete(entryKey(addr, op)); err != nil {
				return nil, fmt.Errorf("entry delete: %w", err)
			}
		}
	}

	return entries, nil
}

// SetClass updates the stored classification of one cached entry. Entries
// that disappeared since classification started are skipped.
func (s *Store) SetClass(addr types.Address, op types.Outpoint, class Classification) error {
	key := entryKey(addr, op)
	data, err := s.db.Get(key)
	if err != nil {
		return nil
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return fmt.Errorf("entry unmarshal: %w", err)
	}
	e.Class = class
	out, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("entry marshal: %w", err)
	}
	return s.db.Put(key, out)
}

// Clear removes every cached entry. Used when switching wallets.
func (s *Store) Clear() error {
	var keys [][]byte
	if err := s.db.ForEach(prefixEntry, func(key, _ []byte) error {
		k := make([]byte, len(key))
		copy(k, key)
		keys = append(keys, k)
		return nil
	}); err != nil {
		return fmt.Errorf("scan utxo cache: %w", err)
	}
	for _, key := range keys {
		if err := s.db.Delete(key); err != nil {
			return fmt.Errorf("delete cache key: %w", err)
		}
	}
	return nil
}
