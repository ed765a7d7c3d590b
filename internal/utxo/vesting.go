package utxo

import (
	"context"
	"sync"

	"github.com/agoranet-labs/agora-wallet/pkg/types"
)

// Predicate decides whether one output is vested (spendable now). It may
// perform I/O; errors abort the classification run.
type Predicate func(ctx context.Context, e Entry) (bool, error)

// HeightPredicate is the default vesting rule: an output is vested once its
// unlock height has been reached and, for coinbase outputs, once the
// maturity window has passed.
func HeightPredicate(tipHeight, coinbaseMaturity uint64) Predicate {
	return func(_ context.Context, e Entry) (bool, error) {
		if e.UnlockHeight > tipHeight {
			return false, nil
		}
		if e.Coinbase && e.Height+coinbaseMaturity > tipHeight {
			return false, nil
		}
		return true, nil
	}
}

// Balances is a vesting breakdown of a set of outputs. All always equals the
// total value of the set; Vested+Unvested equals All only once every output
// has been classified.
type Balances struct {
	Vested   uint64 `json:"vested"`
	Unvested uint64 `json:"unvested"`
	All      uint64 `json:"all"`
}

// Classifier runs a vesting predicate over cached outputs. Results are
// memoized per outpoint so a cancelled run resumes where it stopped instead
// of starting over.
type Classifier struct {
	mu      sync.Mutex
	results map[types.Outpoint]Classification
}

// NewClassifier creates an empty classifier.
func NewClassifier() *Classifier {
	return &Classifier{results: make(map[types.Outpoint]Classification)}
}

// cached returns the memoized classification of an outpoint.
func (c *Classifier) cached(op types.Outpoint) Classification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.results[op]
}

func (c *Classifier) remember(op types.Outpoint, class Classification) {
	c.mu.Lock()
	c.results[op] = class
	c.mu.Unlock()
}

// Invalidate drops memoized results. Call after a block changes the tip,
// since height-based classifications go stale.
func (c *Classifier) Invalidate() {
	c.mu.Lock()
	c.results = make(map[types.Outpoint]Classification)
	c.mu.Unlock()
}

// Classify runs pred over every entry not already classified, reporting
// progress after each output. Cancellation returns ctx.Err() but keeps the
// results computed so far; the next call merges instead of recomputing.
// A nil onProgress is allowed. An empty set classifies to zero balances
// without invoking pred.
func (c *Classifier) Classify(ctx context.Context, entries []Entry, pred Predicate, onProgress func(done, total int)) (Balances, error) {
	if len(entries) == 0 {
		return Balances{}, nil
	}

	total := len(entries)
	done := 0
	for i := range entries {
		op := entries[i].Outpoint()

		if class := c.cached(op); class != Unclassified {
			entries[i].Class = class
			done++
			if onProgress != nil {
				onProgress(done, total)
			}
			continue
		}

		if err := ctx.Err(); err != nil {
			return c.Balances(entries), err
		}

		vested, err := pred(ctx, entries[i])
		if err != nil {
			return c.Balances(entries), err
		}
		class := Unvested
		if vested {
			class = Vested
		}
		entries[i].Class = class
		c.remember(op, class)

		done++
		if onProgress != nil {
			onProgress(done, total)
		}
	}

	return c.Balances(entries), nil
}

// Balances sums a set of entries by their current classification.
// Unclassified value counts toward All only.
func (c *Classifier) Balances(entries []Entry) Balances {
	var b Balances
	for _, e := range entries {
		b.All += e.Value
		class := e.Class
		if class == Unclassified {
			class = c.cached(e.Outpoint())
		}
		switch class {
		case Vested:
			b.Vested += e.Value
		case Unvested:
			b.Unvested += e.Value
		}
	}
	return b
}
