package indexer

import (
	"context"
	"sync"
	"time"

	"github.com/agoranet-labs/agora-wallet/config"
	"github.com/agoranet-labs/agora-wallet/internal/log"
	"github.com/agoranet-labs/agora-wallet/pkg/types"
)

// State is the connection lifecycle state.
type State int

const (
	// StateDisconnected is the initial state and the state after a
	// cancelled or closed connection.
	StateDisconnected State = iota
	// StateConnecting means a connect cycle is in flight.
	StateConnecting
	// StateConnected means the link is live and serving calls.
	StateConnected
	// StateError means the attempt budget was exhausted. A new Connect
	// call starts a fresh cycle.
	StateError
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// nextDelay returns the backoff before the given attempt (1-based). The
// delay doubles from cfg.BaseDelay and never exceeds cfg.MaxDelay.
func nextDelay(attempt int, base, max time.Duration) time.Duration {
	if attempt <= 1 {
		return base
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	return d
}

// ConnManager owns the indexer link: it runs the connect/retry cycle, keeps
// the link alive with liveness pings, reconnects after drops, and fans block
// notifications out to the wallet. It implements Service by delegating to
// the live transport.
type ConnManager struct {
	cfg  config.IndexerConfig
	dial Dialer

	mu        sync.Mutex
	state     State
	transport Transport
	cancel    context.CancelFunc // cancels the in-flight connect cycle
	gen       uint64             // connection generation, invalidates stale loops

	onState func(State)
	onBlock func(BlockNotify)
}

// NewConnManager creates a manager for the configured endpoint. dial may be
// nil, in which case the websocket dialer is used. onState and onBlock are
// optional callbacks, invoked without holding internal locks.
func NewConnManager(cfg config.IndexerConfig, dial Dialer, onState func(State), onBlock func(BlockNotify)) *ConnManager {
	if dial == nil {
		dial = DialWS
	}
	return &ConnManager{
		cfg:     cfg,
		dial:    dial,
		state:   StateDisconnected,
		onState: onState,
		onBlock: onBlock,
	}
}

// State returns the current lifecycle state.
func (m *ConnManager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *ConnManager) setState(s State) {
	m.mu.Lock()
	if m.state == s {
		m.mu.Unlock()
		return
	}
	m.state = s
	cb := m.onState
	m.mu.Unlock()

	log.Indexer.Info().Str("state", s.String()).Msg("connection state")
	if cb != nil {
		cb(s)
	}
}

// Connect starts a connect cycle in the background. If a cycle is already in
// flight or the link is live, Connect is a no-op.
func (m *ConnManager) Connect() {
	m.mu.Lock()
	if m.state == StateConnecting || m.state == StateConnected {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.gen++
	gen := m.gen
	m.state = StateConnecting
	cb := m.onState
	m.mu.Unlock()

	log.Indexer.Info().Str("state", StateConnecting.String()).Msg("connection state")
	if cb != nil {
		cb(StateConnecting)
	}

	go m.connectCycle(ctx, gen)
}

// CancelConnect aborts an in-flight connect cycle and returns to the
// disconnected state. It has no effect on a live connection.
func (m *ConnManager) CancelConnect() {
	m.mu.Lock()
	if m.state != StateConnecting {
		m.mu.Unlock()
		return
	}
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.gen++
	m.mu.Unlock()

	m.setState(StateDisconnected)
}

// Close tears down the link and stops any in-flight cycle.
func (m *ConnManager) Close() {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.gen++
	t := m.transport
	m.transport = nil
	m.mu.Unlock()

	if t != nil {
		t.Close()
	}
	m.setState(StateDisconnected)
}

// connectCycle dials with exponential backoff until it succeeds, the budget
// runs out, or the cycle is cancelled.
func (m *ConnManager) connectCycle(ctx context.Context, gen uint64) {
	for attempt := 1; attempt <= m.cfg.MaxAttempts; attempt++ {
		dialCtx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
		t, err := m.dial(dialCtx, m.cfg.Endpoint)
		cancel()

		if err == nil {
			if !m.adopt(gen, t) {
				t.Close()
				return
			}
			go m.serve(t, gen)
			return
		}

		log.Indexer.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", m.cfg.MaxAttempts).
			Msg("connect failed")

		if attempt == m.cfg.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(nextDelay(attempt, m.cfg.BaseDelay, m.cfg.MaxDelay)):
		}
	}

	m.mu.Lock()
	stale := gen != m.gen
	if !stale {
		m.cancel = nil
	}
	m.mu.Unlock()
	if !stale {
		m.setState(StateError)
	}
}

// adopt installs a freshly dialed transport, unless the cycle that produced
// it has been cancelled in the meantime.
func (m *ConnManager) adopt(gen uint64, t Transport) bool {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return false
	}
	m.transport = t
	m.cancel = nil
	m.mu.Unlock()

	m.setState(StateConnected)
	return true
}

// serve subscribes to block pushes and keeps the link alive with periodic
// pings. When the link dies it schedules a reconnect.
func (m *ConnManager) serve(t Transport, gen uint64) {
	subCtx, cancel := context.WithTimeout(context.Background(), m.cfg.CallTimeout)
	err := t.Call(subCtx, methodSubscribeBlocks, nil, nil)
	cancel()
	if err != nil {
		// A link without block pushes never refreshes the wallet. Drop it
		// and let the reconnect cycle retry the subscription.
		log.Indexer.Warn().Err(err).Msg("block subscription failed")
		m.linkLost(t, gen)
		return
	}

	ticker := time.NewTicker(m.cfg.LivenessInterval)
	defer ticker.Stop()

	for {
		select {
		case n, ok := <-t.Notifications():
			if !ok {
				m.linkLost(t, gen)
				return
			}
			log.Indexer.Debug().Uint64("height", n.Height).Msg("block notification")
			if m.onBlock != nil {
				m.onBlock(n)
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(context.Background(), m.cfg.CallTimeout)
			_, err := callTip(pingCtx, t)
			cancel()
			if err != nil {
				log.Indexer.Warn().Err(err).Msg("liveness ping failed")
				m.linkLost(t, gen)
				return
			}
		}
	}
}

// linkLost tears down a dead transport and, if it is still the current one,
// starts a fresh connect cycle.
func (m *ConnManager) linkLost(t Transport, gen uint64) {
	t.Close()

	m.mu.Lock()
	if gen != m.gen || m.transport != t {
		m.mu.Unlock()
		return
	}
	m.transport = nil
	m.gen++
	m.mu.Unlock()

	m.setState(StateDisconnected)
	m.Connect()
}

// live returns the current transport or ErrNotConnected.
func (m *ConnManager) live() (Transport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateConnected || m.transport == nil {
		return nil, ErrNotConnected
	}
	return m.transport, nil
}

// Utxos implements Service.
func (m *ConnManager) Utxos(ctx context.Context, addr types.Address) ([]Utxo, error) {
	t, err := m.live()
	if err != nil {
		return nil, err
	}
	return callUtxos(ctx, t, addr)
}

// Balance implements Service.
func (m *ConnManager) Balance(ctx context.Context, addr types.Address) (uint64, error) {
	t, err := m.live()
	if err != nil {
		return 0, err
	}
	return callBalance(ctx, t, addr)
}

// Tip implements Service.
func (m *ConnManager) Tip(ctx context.Context) (TipInfo, error) {
	t, err := m.live()
	if err != nil {
		return TipInfo{}, err
	}
	return callTip(ctx, t)
}

// Broadcast implements Service.
func (m *ConnManager) Broadcast(ctx context.Context, raw []byte) (types.Hash, error) {
	t, err := m.live()
	if err != nil {
		return types.Hash{}, err
	}
	return callBroadcast(ctx, t, raw)
}
