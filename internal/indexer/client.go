package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/agoranet-labs/agora-wallet/internal/log"
	"github.com/agoranet-labs/agora-wallet/pkg/types"
)

// request is a JSON-RPC 2.0 request.
type request struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
	ID      uint64      `json:"id"`
}

// response is a JSON-RPC 2.0 response or server notification. Notifications
// carry a method and no id.
type response struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      *uint64         `json:"id,omitempty"`
}

// rpcError is a JSON-RPC 2.0 error object.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// RPCError is returned when the indexer responds with an error.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Transport is a live bidirectional link to an indexer. Implementations must
// be safe for concurrent calls.
type Transport interface {
	// Call invokes a method and unmarshals the result into result (which
	// may be nil to discard it).
	Call(ctx context.Context, method string, params, result interface{}) error
	// Notifications delivers block pushes. The channel is closed when the
	// transport dies.
	Notifications() <-chan BlockNotify
	// Close tears the link down. Safe to call more than once.
	Close() error
}

// Dialer opens a Transport to an endpoint.
type Dialer func(ctx context.Context, endpoint string) (Transport, error)

// wsTransport is the gorilla/websocket Transport used in production.
type wsTransport struct {
	conn *websocket.Conn

	writeMu sync.Mutex // websocket allows one concurrent writer

	nextID  atomic.Uint64
	pending sync.Map // id -> chan *response

	notify    chan BlockNotify
	closeOnce sync.Once
	done      chan struct{}
}

// DialWS connects to a websocket indexer endpoint.
func DialWS(ctx context.Context, endpoint string) (Transport, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}
	t := &wsTransport{
		conn:   conn,
		notify: make(chan BlockNotify, 16),
		done:   make(chan struct{}),
	}
	go t.readLoop()
	return t, nil
}

func (t *wsTransport) Call(ctx context.Context, method string, params, result interface{}) error {
	id := t.nextID.Add(1)
	req := request{JSONRPC: "2.0", Method: method, Params: params, ID: id}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	ch := make(chan *response, 1)
	t.pending.Store(id, ch)
	defer t.pending.Delete(id)

	t.writeMu.Lock()
	err = t.conn.WriteMessage(websocket.TextMessage, body)
	t.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("write request: %w", err)
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return &RPCError{Code: resp.Error.Code, Message: resp.Error.Message}
		}
		if result != nil && resp.Result != nil {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("decode result: %w", err)
			}
		}
		return nil
	case <-t.done:
		return ErrNotConnected
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *wsTransport) Notifications() <-chan BlockNotify {
	return t.notify
}

func (t *wsTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		err = t.conn.Close()
	})
	return err
}

// readLoop dispatches responses to their callers and notifications to the
// notify channel until the connection dies.
func (t *wsTransport) readLoop() {
	defer func() {
		t.Close()
		close(t.notify)
	}()

	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			select {
			case <-t.done:
			default:
				log.Indexer.Debug().Err(err).Msg("read loop terminated")
			}
			return
		}

		var resp response
		if err := json.Unmarshal(data, &resp); err != nil {
			log.Indexer.Warn().Err(err).Msg("malformed frame")
			continue
		}

		if resp.ID == nil {
			if resp.Method == notifyBlock {
				var n BlockNotify
				if err := json.Unmarshal(resp.Params, &n); err != nil {
					log.Indexer.Warn().Err(err).Msg("malformed block notification")
					continue
				}
				select {
				case t.notify <- n:
				default:
					// Block pushes only trigger refreshes; dropping
					// one under backpressure loses nothing.
				}
			}
			continue
		}

		if ch, ok := t.pending.LoadAndDelete(*resp.ID); ok {
			ch.(chan *response) <- &resp
		}
	}
}

// utxoParams is the wire shape of address-scoped queries.
type utxoParams struct {
	Address string `json:"address"`
}

// broadcastParams is the wire shape of tx_broadcast.
type broadcastParams struct {
	Raw string `json:"raw"`
}

// call helpers shared by the connection manager's Service implementation.

func callUtxos(ctx context.Context, t Transport, addr types.Address) ([]Utxo, error) {
	var utxos []Utxo
	if err := t.Call(ctx, methodUtxosByAddress, utxoParams{Address: addr.String()}, &utxos); err != nil {
		return nil, err
	}
	return utxos, nil
}

func callBalance(ctx context.Context, t Transport, addr types.Address) (uint64, error) {
	var out struct {
		Balance uint64 `json:"balance"`
	}
	if err := t.Call(ctx, methodBalance, utxoParams{Address: addr.String()}, &out); err != nil {
		return 0, err
	}
	return out.Balance, nil
}

func callTip(ctx context.Context, t Transport) (TipInfo, error) {
	var tip TipInfo
	if err := t.Call(ctx, methodTip, nil, &tip); err != nil {
		return TipInfo{}, err
	}
	return tip, nil
}

func callBroadcast(ctx context.Context, t Transport, raw []byte) (types.Hash, error) {
	var out struct {
		TxID types.Hash `json:"txid"`
	}
	params := broadcastParams{Raw: fmt.Sprintf("%x", raw)}
	if err := t.Call(ctx, methodBroadcast, params, &out); err != nil {
		return types.Hash{}, err
	}
	return out.TxID, nil
}
