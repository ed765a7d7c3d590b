package indexer

import (
	"context"

	"github.com/agoranet-labs/agora-wallet/pkg/types"
)

// MockService is a test double for Service.
// All function fields must be set before the corresponding method is called.
type MockService struct {
	UtxosFn     func(ctx context.Context, addr types.Address) ([]Utxo, error)
	BalanceFn   func(ctx context.Context, addr types.Address) (uint64, error)
	TipFn       func(ctx context.Context) (TipInfo, error)
	BroadcastFn func(ctx context.Context, raw []byte) (types.Hash, error)
}

func (m *MockService) Utxos(ctx context.Context, addr types.Address) ([]Utxo, error) {
	return m.UtxosFn(ctx, addr)
}
func (m *MockService) Balance(ctx context.Context, addr types.Address) (uint64, error) {
	return m.BalanceFn(ctx, addr)
}
func (m *MockService) Tip(ctx context.Context) (TipInfo, error) {
	return m.TipFn(ctx)
}
func (m *MockService) Broadcast(ctx context.Context, raw []byte) (types.Hash, error) {
	return m.BroadcastFn(ctx, raw)
}
