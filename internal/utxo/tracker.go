package utxo

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/agoranet-labs/agora-wallet/internal/indexer"
	"github.com/agoranet-labs/agora-wallet/internal/log"
	"github.com/agoranet-labs/agora-wallet/internal/wallet"
	"github.com/agoranet-labs/agora-wallet/pkg/types"
)

// refreshTimeout bounds the shared indexer fetch behind Refresh.
const refreshTimeout = 15 * time.Second

// Tracker keeps the cached UTXO sets of the wallet's addresses in sync with
// the indexer. Refreshes for the same address coalesce: concurrent callers
// share one indexer round trip. Per-address locks keep a refresh and a
// classification of the same address from interleaving.
type Tracker struct {
	svc        indexer.Service
	store      *Store
	classifier *Classifier

	flight singleflight.Group

	mu      sync.Mutex
	addrMu  map[types.Address]*sync.Mutex
	tracked map[types.Address]struct{}
}

// NewTracker creates a tracker over the given indexer service and cache.
func NewTracker(svc indexer.Service, store *Store) *Tracker {
	return &Tracker{
		svc:        svc,
		store:      store,
		classifier: NewClassifier(),
		addrMu:     make(map[types.Address]*sync.Mutex),
		tracked:    make(map[types.Address]struct{}),
	}
}

// Classifier exposes the tracker's vesting classifier.
func (t *Tracker) Classifier() *Classifier {
	return t.classifier
}

// Track registers an address for refresh on new blocks.
func (t *Tracker) Track(addr types.Address) {
	t.mu.Lock()
	t.tracked[addr] = struct{}{}
	t.mu.Unlock()
}

func (t *Tracker) lockFor(addr types.Address) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	mu, ok := t.addrMu[addr]
	if !ok {
		mu = &sync.Mutex{}
		t.addrMu[addr] = mu
	}
	return mu
}

// Refresh fetches the address's unspent outputs from the indexer and
// replaces its cached set, preserving classifications of surviving
// outpoints. Concurrent refreshes of the same address share one fetch. The
// fetch runs under its own timeout rather than any caller's context, so a
// caller whose context ends stops waiting without failing the others.
func (t *Tracker) Refresh(ctx context.Context, addr types.Address) ([]Entry, error) {
	t.Track(addr)

	ch := t.flight.DoChan(addr.String(), func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()

		fresh, err := t.svc.Utxos(fctx, addr)
		if err != nil {
			return nil, err
		}

		mu := t.lockFor(addr)
		mu.Lock()
		defer mu.Unlock()
		return t.store.ReplaceAddress(addr, fresh)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			log.Utxo.Debug().Str("address", addr.String()).Msg("refresh coalesced")
		}
		return res.Val.([]Entry), nil
	}
}

// Cached returns the cached entries of an address without touching the
// indexer.
func (t *Tracker) Cached(addr types.Address) ([]Entry, error) {
	return t.store.GetByAddress(addr)
}

// Balance returns the total cached value of an address, refreshing first.
func (t *Tracker) Balance(ctx context.Context, addr types.Address) (uint64, error) {
	entries, err := t.Refresh(ctx, addr)
	if err != nil {
		return 0, err
	}
	var total uint64
	for _, e := range entries {
		total += e.Value
	}
	return total, nil
}

// SpendableUtxos implements the planner's UtxoSource over the cached set,
// refreshing first. Only vested outputs are offered for spending; an
// unclassified cache (no classifier run yet) offers everything, matching a
// wallet that has never seen a locked output.
func (t *Tracker) SpendableUtxos(ctx context.Context, addr types.Address) ([]wallet.UTXO, error) {
	entries, err := t.Refresh(ctx, addr)
	if err != nil {
		return nil, err
	}

	spendable := make([]wallet.UTXO, 0, len(entries))
	for _, e := range entries {
		if e.Class == Unvested {
			continue
		}
		spendable = append(spendable, wallet.UTXO{
			Outpoint: e.Outpoint(),
			Value:    e.Value,
			Address:  e.Address,
		})
	}
	return spendable, nil
}

// ClassifyAddress refreshes an address and runs the vesting predicate over
// its set, persisting the results. onProgress is optional.
func (t *Tracker) ClassifyAddress(ctx context.Context, addr types.Address, pred Predicate, onProgress func(done, total int)) (Balances, error) {
	entries, err := t.Refresh(ctx, addr)
	if err != nil {
		return Balances{}, err
	}

	mu := t.lockFor(addr)
	mu.Lock()
	defer mu.Unlock()

	balances, classErr := t.classifier.Classify(ctx, entries, pred, onProgress)

	// Persist whatever got classified, even on a cancelled run.
	for _, e := range entries {
		if e.Class != Unclassified {
			if err := t.store.SetClass(addr, e.Outpoint(), e.Class); err != nil {
				log.Utxo.Warn().Err(err).Msg("persist classification")
			}
		}
	}

	return balances, classErr
}

// OnBlock reacts to a new chain tip: height-based classifications go stale,
// and every tracked address is refreshed in the background.
func (t *Tracker) OnBlock(n indexer.BlockNotify) {
	t.classifier.Invalidate()

	t.mu.Lock()
	addrs := make([]types.Address, 0, len(t.tracked))
	for addr := range t.tracked {
		addrs = append(addrs, addr)
	}
	t.mu.Unlock()

	log.Utxo.Debug().
		Uint64("height", n.Height).
		Int("addresses", len(addrs)).
		Msg("refreshing on new block")

	for _, addr := range addrs {
		go func(addr types.Address) {
			ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
			defer cancel()
			if _, err := t.Refresh(ctx, addr); err != nil {
				log.Utxo.Warn().Err(err).Str("address", addr.String()).Msg("block refresh failed")
			}
		}(addr)
	}
}
