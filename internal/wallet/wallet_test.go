package wallet

import (
	"errors"
	"testing"
)

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindSeed, "seed"},
		{KindImportedMaster, "imported"},
		{KindWatchOnly, "watch-only"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestGenerateAddress_SequentialIndices(t *testing.T) {
	w := &Wallet{Kind: KindSeed, Seed: testSeed(t)}

	for want := uint32(0); want < 3; want++ {
		addr, err := w.GenerateAddress()
		if err != nil {
			t.Fatalf("GenerateAddress: %v", err)
		}
		if addr.Index != want {
			t.Errorf("index = %d, want %d", addr.Index, want)
		}
		if addr.IsChange {
			t.Error("generated address should be on the receive chain")
		}
	}

	seen := make(map[string]bool)
	for _, a := range w.Addresses {
		if seen[a.Address.String()] {
			t.Errorf("duplicate address %s", a.Address)
		}
		seen[a.Address.String()] = true
	}
}

func TestHasPrivateKeys(t *testing.T) {
	if !(&Wallet{Kind: KindSeed}).HasPrivateKeys() {
		t.Error("seed wallet should have private keys")
	}
	if !(&Wallet{Kind: KindImportedMaster}).HasPrivateKeys() {
		t.Error("imported-master wallet should have private keys")
	}
	if (&Wallet{Kind: KindWatchOnly}).HasPrivateKeys() {
		t.Error("watch-only wallet should not have private keys")
	}
}

func TestPrivateKeyFor_UnknownAddress(t *testing.T) {
	w := seedWallet(t)
	if _, err := w.PrivateKeyFor(testAddr(0x42)); !errors.Is(err, ErrSigning) {
		t.Errorf("expected ErrSigning, got: %v", err)
	}
}

func TestSeedAndMasterWalletsAgree(t *testing.T) {
	seed := testSeed(t)
	seedW := &Wallet{Kind: KindSeed, Seed: seed}

	master, err := NewMasterKey(seed)
	if err != nil {
		t.Fatalf("NewMasterKey: %v", err)
	}
	priv, chainCode := master.MasterKeyParts()
	masterW := &Wallet{Kind: KindImportedMaster, MasterKey: priv, ChainCode: chainCode}

	a1, err := DeriveAddress(seedW, 0, false)
	if err != nil {
		t.Fatalf("DeriveAddress(seed): %v", err)
	}
	a2, err := DeriveAddress(masterW, 0, false)
	if err != nil {
		t.Fatalf("DeriveAddress(master): %v", err)
	}
	if a1.Address != a2.Address {
		t.Error("seed and imported-master wallets should derive the same addresses")
	}
}
