// Package indexer maintains the wallet's link to a chain indexer over a
// persistent JSON-RPC 2.0 websocket connection.
package indexer

import (
	"context"
	"errors"

	"github.com/agoranet-labs/agora-wallet/pkg/types"
)

// Wire method names.
const (
	methodUtxosByAddress  = "utxo_getByAddress"
	methodBalance         = "utxo_getBalance"
	methodTip             = "chain_getTip"
	methodBroadcast       = "tx_broadcast"
	methodSubscribeBlocks = "chain_subscribeBlocks"

	// notifyBlock is pushed by the indexer after each new block once
	// subscribed.
	notifyBlock = "block_notify"
)

var (
	// ErrNotConnected is returned when an operation requires a live
	// indexer link and there is none.
	ErrNotConnected = errors.New("indexer: not connected")
	// ErrConnectCancelled is returned to a connect cycle that was cancelled.
	ErrConnectCancelled = errors.New("indexer: connect cancelled")
)

// Utxo is an unspent output as reported by the indexer.
type Utxo struct {
	TxID         types.Hash `json:"txid"`
	Index        uint32     `json:"index"`
	Value        uint64     `json:"value"`
	Height       uint64     `json:"height"`
	Coinbase     bool       `json:"coinbase,omitempty"`
	UnlockHeight uint64     `json:"unlock_height,omitempty"`
}

// Outpoint returns the utxo's outpoint.
func (u Utxo) Outpoint() types.Outpoint {
	return types.Outpoint{TxID: u.TxID, Index: u.Index}
}

// TipInfo describes the indexer's current best block.
type TipInfo struct {
	Height uint64     `json:"height"`
	Hash   types.Hash `json:"hash"`
}

// BlockNotify is a push notification for a newly connected block.
type BlockNotify struct {
	Height uint64     `json:"height"`
	Hash   types.Hash `json:"hash"`
}

// Service is the indexer surface the rest of the wallet consumes.
type Service interface {
	// Utxos returns the unspent outputs of an address.
	Utxos(ctx context.Context, addr types.Address) ([]Utxo, error)
	// Balance returns the confirmed balance of an address.
	Balance(ctx context.Context, addr types.Address) (uint64, error)
	// Tip returns the indexer's current best block.
	Tip(ctx context.Context) (TipInfo, error)
	// Broadcast submits a serialized transaction and returns its id.
	Broadcast(ctx context.Context, raw []byte) (types.Hash, error)
}
