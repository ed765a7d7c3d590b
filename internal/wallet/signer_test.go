package wallet

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/agoranet-labs/agora-wallet/pkg/crypto"
	"github.com/agoranet-labs/agora-wallet/pkg/tx"
	"github.com/agoranet-labs/agora-wallet/pkg/types"
)

// seedWallet builds an in-memory seed wallet with one receive address.
func seedWallet(t *testing.T) *Wallet {
	t.Helper()
	w := &Wallet{Kind: KindSeed, Seed: testSeed(t)}
	if _, err := w.GenerateAddress(); err != nil {
		t.Fatalf("GenerateAddress: %v", err)
	}
	return w
}

// planFor builds a single-transaction plan spending the wallet's first
// address.
func planFor(t *testing.T, w *Wallet, values ...uint64) *Plan {
	t.Helper()
	owner := w.Addresses[0].Address

	src := &fakeUtxoSource{fn: func(context.Context, types.Address) ([]UTXO, error) {
		utxos := make([]UTXO, len(values))
		for i, v := range values {
			utxos[i] = UTXO{
				Outpoint: types.Outpoint{TxID: types.Hash{byte(i + 1)}, Index: 0},
				Value:    v,
				Address:  owner,
			}
		}
		return utxos, nil
	}}

	p := newTestPlanner(src, flatFee(1000))
	plan, err := p.CreatePlan(context.Background(), testAddr(9).String(), 100_000, owner)
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	return plan
}

func TestSignPlan(t *testing.T) {
	w := seedWallet(t)
	plan := planFor(t, w, 500_000)

	signed, err := SignPlan(w, plan)
	if err != nil {
		t.Fatalf("SignPlan: %v", err)
	}
	if len(signed) != 1 {
		t.Fatalf("signed = %d, want 1", len(signed))
	}

	st := signed[0]
	if len(st.Raw) == 0 {
		t.Error("signed transaction has no raw bytes")
	}
	if st.TxID.IsZero() {
		t.Error("signed transaction has no id")
	}

	// The raw bytes must decode back to a fully signed transaction whose
	// signatures verify against the input's owning key.
	decoded, err := tx.Deserialize(st.Raw)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	hash := decoded.Hash()
	if hash != st.TxID {
		t.Error("TxID does not match the signature-independent hash")
	}
	for i, in := range decoded.Inputs {
		if len(in.Signature) == 0 || len(in.PubKey) == 0 {
			t.Fatalf("input %d not signed", i)
		}
		if !crypto.VerifySignature(hash[:], in.Signature, in.PubKey) {
			t.Errorf("input %d signature does not verify", i)
		}
		if crypto.AddressFromPubKey(in.PubKey) != w.Addresses[0].Address {
			t.Errorf("input %d signed by the wrong key", i)
		}
	}
}

func TestSignPlan_Deterministic(t *testing.T) {
	w := seedWallet(t)
	plan := planFor(t, w, 500_000)

	s1, err := SignPlan(w, plan)
	if err != nil {
		t.Fatalf("SignPlan: %v", err)
	}
	s2, err := SignPlan(w, plan)
	if err != nil {
		t.Fatalf("SignPlan: %v", err)
	}

	if !bytes.Equal(s1[0].Raw, s2[0].Raw) {
		t.Error("signing the same plan twice should be byte-identical")
	}
	if s1[0].TxID != s2[0].TxID {
		t.Error("transaction ids should match across signings")
	}
}

func TestSignPlan_WatchOnly(t *testing.T) {
	w := seedWallet(t)
	plan := planFor(t, w, 500_000)

	watch := &Wallet{Kind: KindWatchOnly, Addresses: w.Addresses}
	if _, err := SignPlan(watch, plan); !errors.Is(err, ErrSigning) {
		t.Errorf("expected ErrSigning for watch-only wallet, got: %v", err)
	}
}

func TestSignPlan_UnknownOwner(t *testing.T) {
	w := seedWallet(t)
	plan := planFor(t, w, 500_000)

	// Rewrite ownership to an address the wallet cannot derive.
	for op := range plan.InputOwner {
		plan.InputOwner[op] = testAddr(0xEE)
	}
	if _, err := SignPlan(w, plan); !errors.Is(err, ErrSigning) {
		t.Errorf("expected ErrSigning for foreign input, got: %v", err)
	}
}
