package wallet

import (
	"context"
	"fmt"

	"github.com/agoranet-labs/agora-wallet/internal/log"
	"github.com/agoranet-labs/agora-wallet/pkg/types"
)

// BalanceSource answers balance queries during a scan. Satisfied by the
// indexer client.
type BalanceSource interface {
	Balance(ctx context.Context, addr types.Address) (uint64, error)
}

// ScannedAddress is one probed derivation coordinate, with enough
// information for a human to decide whether to adopt it.
type ScannedAddress struct {
	Address Address `json:"address"`
	Balance uint64  `json:"balance"`
}

// Scanner probes a bounded range of derivation indices of an imported
// wallet to discover which addresses hold balance. Scanning itself has no
// side effect on durable storage.
type Scanner struct {
	balances BalanceSource
	maxCount int
}

// NewScanner creates a scanner with an upper probe bound.
func NewScanner(balances BalanceSource, maxCount int) *Scanner {
	return &Scanner{balances: balances, maxCount: maxCount}
}

// Scan derives indices 0..count-1 on both the receive and change chains
// and queries each address's balance. count is clamped to the scanner's
// configured maximum.
func (s *Scanner) Scan(ctx context.Context, w *Wallet, count int) ([]ScannedAddress, error) {
	if !w.HasPrivateKeys() {
		return nil, ErrNoMasterKey
	}
	if count < 1 {
		count = 1
	}
	if count > s.maxCount {
		count = s.maxCount
	}

	var found []ScannedAddress
	for _, isChange := range []bool{false, true} {
		for idx := uint32(0); idx < uint32(count); idx++ {
			if err := ctx.Err(); err != nil {
				return found, err
			}

			addr, err := DeriveAddress(w, idx, isChange)
			if err != nil {
				return found, fmt.Errorf("scan index %d: %w", idx, err)
			}

			bal, err := s.balances.Balance(ctx, addr.Address)
			if err != nil {
				return found, fmt.Errorf("scan balance %s: %w", addr.Address, err)
			}

			found = append(found, ScannedAddress{Address: addr, Balance: bal})
		}
	}

	log.Wallet.Debug().Int("probed", len(found)).Msg("scan complete")
	return found, nil
}
