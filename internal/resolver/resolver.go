// Package resolver maps marketplace identifiers to chain addresses.
package resolver

import (
	"context"

	"github.com/agoranet-labs/agora-wallet/pkg/types"
)

// Static resolves identifiers from a fixed table. The UI shell populates it
// from the marketplace directory; tests populate it directly.
type Static struct {
	table map[string]types.Address
}

// NewStatic creates a resolver over the given identifier table.
func NewStatic(table map[string]types.Address) *Static {
	if table == nil {
		table = make(map[string]types.Address)
	}
	return &Static{table: table}
}

// Add registers or replaces an identifier.
func (s *Static) Add(identifier string, addr types.Address) {
	s.table[identifier] = addr
}

// Resolve implements wallet.Resolver.
func (s *Static) Resolve(_ context.Context, identifier string) (types.Address, bool, error) {
	addr, ok := s.table[identifier]
	return addr, ok, nil
}
