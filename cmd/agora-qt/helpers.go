package main

import (
	"github.com/agoranet-labs/agora-wallet/pkg/types"
)

// parseContactAddress parses an address string (bech32 or hex) into a
// types.Address.
func parseContactAddress(s string) (types.Address, error) {
	return types.ParseAddress(s)
}
