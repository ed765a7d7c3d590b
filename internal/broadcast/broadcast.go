// Package broadcast submits signed transaction plans to the network.
package broadcast

import (
	"context"

	"github.com/agoranet-labs/agora-wallet/internal/log"
	"github.com/agoranet-labs/agora-wallet/internal/wallet"
	"github.com/agoranet-labs/agora-wallet/pkg/types"
)

// Submitter sends one raw transaction to the network.
type Submitter interface {
	Broadcast(ctx context.Context, raw []byte) (types.Hash, error)
}

// Status summarizes a plan submission.
type Status int

const (
	// StatusSuccess means every transaction was accepted.
	StatusSuccess Status = iota
	// StatusPartial means some transactions were accepted and some were
	// not. The succeeded ones are on the network and cannot be recalled.
	StatusPartial
	// StatusFailed means nothing was accepted.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusPartial:
		return "partial"
	default:
		return "failed"
	}
}

// Failure records one rejected transaction.
type Failure struct {
	TxID types.Hash
	Err  error
}

// Outcome is the settle-all result of submitting a plan. SucceededIDs is
// populated even when the overall status is partial or failed, since those
// transactions are already on the network.
type Outcome struct {
	Status       Status
	SucceededIDs []types.Hash
	Failures     []Failure
}

// SubmitAll submits every signed transaction and settles all of them before
// returning. A rejection does not stop the remaining submissions: later
// transactions in a plan do not depend on earlier ones, and the caller needs
// the full picture to report what actually reached the network.
func SubmitAll(ctx context.Context, sub Submitter, signed []wallet.SignedTransaction) Outcome {
	var out Outcome
	for _, st := range signed {
		txid, err := sub.Broadcast(ctx, st.Raw)
		if err != nil {
			log.Broadcast.Warn().
				Err(err).
				Str("txid", st.TxID.String()).
				Msg("broadcast rejected")
			out.Failures = append(out.Failures, Failure{TxID: st.TxID, Err: err})
			continue
		}
		// Trust the indexer's id when it differs; ours is a fallback.
		if txid.IsZero() {
			txid = st.TxID
		}
		out.SucceededIDs = append(out.SucceededIDs, txid)
	}

	switch {
	case len(out.Failures) == 0:
		out.Status = StatusSuccess
	case len(out.SucceededIDs) == 0:
		out.Status = StatusFailed
	default:
		out.Status = StatusPartial
	}

	log.Broadcast.Info().
		Str("status", out.Status.String()).
		Int("succeeded", len(out.SucceededIDs)).
		Int("failed", len(out.Failures)).
		Msg("plan submitted")
	return out
}
