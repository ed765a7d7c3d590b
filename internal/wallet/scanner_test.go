package wallet

import (
	"context"
	"errors"
	"testing"

	"github.com/agoranet-labs/agora-wallet/pkg/types"
)

// fakeBalances answers balance probes from a fixed table and counts calls.
type fakeBalances struct {
	table map[types.Address]uint64
	calls int
}

func (f *fakeBalances) Balance(_ context.Context, addr types.Address) (uint64, error) {
	f.calls++
	return f.table[addr], nil
}

func TestScanner_Scan(t *testing.T) {
	w := seedWallet(t)

	a0, _ := DeriveAddress(w, 0, false)
	a2, _ := DeriveAddress(w, 2, false)
	c1, _ := DeriveAddress(w, 1, true)

	balances := &fakeBalances{table: map[types.Address]uint64{
		a0.Address: 10_000,
		a2.Address: 5_000,
		c1.Address: 700,
	}}

	s := NewScanner(balances, 100)
	found, err := s.Scan(context.Background(), w, 3)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	// 3 indices on both chains.
	if len(found) != 6 {
		t.Fatalf("probed = %d, want 6", len(found))
	}

	byAddr := make(map[types.Address]uint64, len(found))
	for _, sa := range found {
		byAddr[sa.Address.Address] = sa.Balance
	}
	if byAddr[a0.Address] != 10_000 {
		t.Errorf("index 0 balance = %d, want 10000", byAddr[a0.Address])
	}
	if byAddr[a2.Address] != 5_000 {
		t.Errorf("index 2 balance = %d, want 5000", byAddr[a2.Address])
	}
	if byAddr[c1.Address] != 700 {
		t.Errorf("change index 1 balance = %d, want 700", byAddr[c1.Address])
	}
}

func TestScanner_NoPersistence(t *testing.T) {
	w := seedWallet(t)
	before := len(w.Addresses)

	s := NewScanner(&fakeBalances{}, 100)
	if _, err := s.Scan(context.Background(), w, 5); err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if len(w.Addresses) != before {
		t.Error("scanning must not add addresses to the wallet")
	}
}

func TestScanner_ClampsCount(t *testing.T) {
	w := seedWallet(t)
	balances := &fakeBalances{}

	s := NewScanner(balances, 4)
	found, err := s.Scan(context.Background(), w, 1000)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(found) != 8 {
		t.Errorf("probed = %d, want 8 (clamped to 4 per chain)", len(found))
	}
	if balances.calls != 8 {
		t.Errorf("balance calls = %d, want 8", balances.calls)
	}
}

func TestScanner_Cancel(t *testing.T) {
	w := seedWallet(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewScanner(&fakeBalances{}, 100)
	if _, err := s.Scan(ctx, w, 10); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got: %v", err)
	}
}

func TestScanner_WatchOnly(t *testing.T) {
	w := &Wallet{Kind: KindWatchOnly}
	s := NewScanner(&fakeBalances{}, 100)
	if _, err := s.Scan(context.Background(), w, 5); !errors.Is(err, ErrNoMasterKey) {
		t.Errorf("expected ErrNoMasterKey, got: %v", err)
	}
}
