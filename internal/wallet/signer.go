package wallet

import (
	"fmt"

	"github.com/agoranet-labs/agora-wallet/internal/log"
	"github.com/agoranet-labs/agora-wallet/pkg/crypto"
	"github.com/agoranet-labs/agora-wallet/pkg/types"
)

// SignedTransaction is an immutable, broadcast-ready transaction.
type SignedTransaction struct {
	Raw  []byte
	TxID types.Hash
}

// SignPlan signs every elementary transaction in a plan with the wallet's
// keys and returns the serialized results in plan order. Watch-only wallets
// fail with ErrSigning before any transaction is touched.
func SignPlan(w *Wallet, plan *Plan) ([]SignedTransaction, error) {
	if !w.HasPrivateKeys() {
		return nil, fmt.Errorf("%w: wallet is watch-only", ErrSigning)
	}

	// One key lookup per distinct owning address; derivation is the
	// expensive part and signatures are deterministic per (key, hash).
	signers := make(map[types.Address]*crypto.PrivateKey)
	for _, owner := range plan.InputOwner {
		if _, ok := signers[owner]; ok {
			continue
		}
		raw, err := w.PrivateKeyFor(owner)
		if err != nil {
			return nil, fmt.Errorf("%w: key for %s: %v", ErrSigning, owner, err)
		}
		key, err := crypto.PrivateKeyFromBytes(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: key for %s: %v", ErrSigning, owner, err)
		}
		signers[owner] = key
	}
	defer func() {
		for _, k := range signers {
			k.Zero()
		}
	}()

	signed := make([]SignedTransaction, 0, len(plan.Transactions))
	for i, et := range plan.Transactions {
		t := et.Tx
		hash := t.Hash()

		type sigPub struct {
			sig, pub []byte
		}
		cache := make(map[types.Address]*sigPub)

		for j := range t.Inputs {
			owner, ok := plan.InputOwner[t.Inputs[j].PrevOut]
			if !ok {
				return nil, fmt.Errorf("%w: tx %d input %d has no owner", ErrSigning, i, j)
			}
			sp, cached := cache[owner]
			if !cached {
				key := signers[owner]
				sig, err := key.Sign(hash[:])
				if err != nil {
					return nil, fmt.Errorf("%w: tx %d input %d: %v", ErrSigning, i, j, err)
				}
				sp = &sigPub{sig: sig, pub: key.PublicKey()}
				cache[owner] = sp
			}
			t.Inputs[j].Signature = sp.sig
			t.Inputs[j].PubKey = sp.pub
		}

		signed = append(signed, SignedTransaction{
			Raw:  t.Serialize(),
			TxID: hash,
		})
	}

	log.Wallet.Debug().Int("transactions", len(signed)).Msg("plan signed")
	return signed, nil
}
