package wallet

import (
	"context"
	"fmt"
	"sort"

	"github.com/agoranet-labs/agora-wallet/internal/log"
	"github.com/agoranet-labs/agora-wallet/pkg/tx"
	"github.com/agoranet-labs/agora-wallet/pkg/types"
)

// Resolver maps a human-readable identifier to a chain address. It is an
// external collaborator; resolution failure is user-facing, not retryable.
type Resolver interface {
	// Resolve returns the address for an identifier, or ok=false when the
	// identifier is unknown.
	Resolve(ctx context.Context, identifier string) (types.Address, bool, error)
}

// UtxoSource supplies the spendable outputs of an address during planning.
type UtxoSource interface {
	SpendableUtxos(ctx context.Context, addr types.Address) ([]UTXO, error)
}

// FeeEstimator returns the fee for an elementary transaction shape.
type FeeEstimator func(numInputs, numOutputs int) uint64

// SizeFeeEstimator estimates fees from the canonical serialization size at
// the given fee rate.
func SizeFeeEstimator(feeRate uint64) FeeEstimator {
	return func(numInputs, numOutputs int) uint64 {
		return tx.EstimateTxFee(numInputs, numOutputs, feeRate)
	}
}

// PlannerConfig tunes transaction planning.
type PlannerConfig struct {
	// DustThreshold: change below this is swept into the fee instead of
	// creating an uneconomical output.
	DustThreshold uint64
	// MaxTxInputs caps inputs per elementary transaction; selections past
	// this split the transfer across multiple transactions.
	MaxTxInputs int
	// EstimateFee prices an elementary transaction.
	EstimateFee FeeEstimator
}

// ElementaryTx is one independently balanced transaction within a plan.
// Invariant: sum(Inputs) == Amount + Change + Fee, exactly.
type ElementaryTx struct {
	Tx     *tx.Transaction
	Inputs []UTXO
	Amount uint64 // paid to the destination
	Change uint64 // returned to the source address (0 if swept)
	Fee    uint64
}

// Plan is the unsigned output of the planner.
type Plan struct {
	Destination  types.Address
	Source       types.Address
	Transactions []ElementaryTx

	// InputOwner maps every input outpoint to its owning address, for the
	// signer's key lookup.
	InputOwner map[types.Outpoint]types.Address

	TotalAmount uint64
	TotalFee    uint64
}

// Planner builds unsigned transaction plans.
type Planner struct {
	cfg      PlannerConfig
	resolver Resolver
	utxos    UtxoSource
}

// NewPlanner creates a planner. resolver may be nil, in which case only
// direct chain addresses are accepted as destinations.
func NewPlanner(cfg PlannerConfig, resolver Resolver, utxos UtxoSource) *Planner {
	if cfg.MaxTxInputs < 1 {
		cfg.MaxTxInputs = 1
	}
	return &Planner{cfg: cfg, resolver: resolver, utxos: utxos}
}

// ResolveDestination turns a destination string (chain address or alias)
// into a concrete address.
func (p *Planner) ResolveDestination(ctx context.Context, destination string) (types.Address, error) {
	if destination == "" {
		return types.Address{}, fmt.Errorf("%w: empty destination", ErrResolution)
	}
	if addr, err := types.ParseAddress(destination); err == nil {
		return addr, nil
	}
	if p.resolver == nil {
		return types.Address{}, fmt.Errorf("%w: %q is not a chain address", ErrResolution, destination)
	}
	addr, ok, err := p.resolver.Resolve(ctx, destination)
	if err != nil {
		return types.Address{}, fmt.Errorf("%w: resolve %q: %v", ErrResolution, destination, err)
	}
	if !ok || addr.IsZero() {
		return types.Address{}, fmt.Errorf("%w: unknown recipient %q", ErrResolution, destination)
	}
	return addr, nil
}

// CreatePlan selects UTXOs from the source address and produces an unsigned
// plan paying amount to the destination. Validation errors are returned
// before any UTXO lookup.
func (p *Planner) CreatePlan(ctx context.Context, destination string, amount uint64, source types.Address) (*Plan, error) {
	if amount == 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}

	destAddr, err := p.ResolveDestination(ctx, destination)
	if err != nil {
		return nil, err
	}

	available, err := p.utxos.SpendableUtxos(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("fetch utxos for %s: %w", source, err)
	}

	selected, err := p.selectFunded(available, amount)
	if err != nil {
		return nil, err
	}

	plan, err := p.assemble(selected, amount, destAddr, source)
	if err != nil {
		return nil, err
	}

	log.Wallet.Debug().
		Int("transactions", len(plan.Transactions)).
		Uint64("amount", plan.TotalAmount).
		Uint64("fee", plan.TotalFee).
		Msg("plan created")
	return plan, nil
}

// selectFunded accumulates UTXOs until they cover amount plus the fees of
// the transactions the selection will split into.
func (p *Planner) selectFunded(available []UTXO, amount uint64) ([]UTXO, error) {
	// An input must at least pay for its own marginal fee to be worth adding.
	marginal := p.cfg.EstimateFee(2, 2) - p.cfg.EstimateFee(1, 2)

	candidates := make([]UTXO, 0, len(available))
	var haveTotal uint64
	for _, u := range available {
		haveTotal += u.Value
		if u.Value > marginal {
			candidates = append(candidates, u)
		}
	}
	if len(candidates) == 0 {
		if len(available) == 0 {
			return nil, fmt.Errorf("%w: no spendable outputs", ErrInsufficientFunds)
		}
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientFunds, haveTotal, amount)
	}

	// Fast path: the least-waste selection for a single transaction.
	if sel, err := SelectCoins(candidates, amount+p.cfg.EstimateFee(1, 2)); err == nil && len(sel.Inputs) <= p.cfg.MaxTxInputs {
		// Re-check with the true fee for the selected input count.
		need := amount + p.cfg.EstimateFee(len(sel.Inputs), 2)
		if sel.Total >= need {
			return sel.Inputs, nil
		}
	}

	// General path: largest-first accumulation with fee recomputed for the
	// chunking the selection implies.
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Value > candidates[j].Value
	})

	var selected []UTXO
	var total uint64
	for _, u := range candidates {
		selected = append(selected, u)
		total += u.Value
		if total >= amount+p.feeForChunked(len(selected)) {
			return selected, nil
		}
	}

	return nil, fmt.Errorf("%w: have %d, need %d",
		ErrInsufficientFunds, total, amount+p.feeForChunked(len(selected)))
}

// feeForChunked sums the fees of splitting n inputs into transactions of at
// most MaxTxInputs, each with a destination and change output.
func (p *Planner) feeForChunked(n int) uint64 {
	var fee uint64
	for n > 0 {
		c := n
		if c > p.cfg.MaxTxInputs {
			c = p.cfg.MaxTxInputs
		}
		fee += p.cfg.EstimateFee(c, 2)
		n -= c
	}
	return fee
}

// assemble splits the selection into elementary transactions and balances
// each one exactly.
func (p *Planner) assemble(selected []UTXO, amount uint64, dest, source types.Address) (*Plan, error) {
	plan := &Plan{
		Destination: dest,
		Source:      source,
		InputOwner:  make(map[types.Outpoint]types.Address, len(selected)),
	}

	remaining := amount
	for start := 0; start < len(selected); start += p.cfg.MaxTxInputs {
		end := start + p.cfg.MaxTxInputs
		if end > len(selected) {
			end = len(selected)
		}
		chunk := selected[start:end]

		var chunkTotal uint64
		for _, u := range chunk {
			chunkTotal += u.Value
		}

		fee := p.cfg.EstimateFee(len(chunk), 2)
		if chunkTotal <= fee {
			return nil, fmt.Errorf("%w: inputs cannot cover fees", ErrInsufficientFunds)
		}

		send := chunkTotal - fee
		if send > remaining {
			send = remaining
		}
		change := chunkTotal - send - fee
		if change > 0 && change < p.cfg.DustThreshold {
			// Sweep sub-dust change into the fee.
			fee += change
			change = 0
		}

		if chunkTotal != send+change+fee {
			return nil, fmt.Errorf("plan does not balance: inputs %d != %d + %d + %d",
				chunkTotal, send, change, fee)
		}

		b := tx.NewBuilder()
		for _, u := range chunk {
			b.AddInput(u.Outpoint)
			plan.InputOwner[u.Outpoint] = u.Address
		}
		b.AddOutput(send, types.P2PKHScript(dest))
		if change > 0 {
			b.AddOutput(change, types.P2PKHScript(source))
		}

		plan.Transactions = append(plan.Transactions, ElementaryTx{
			Tx:     b.Build(),
			Inputs: append([]UTXO(nil), chunk...),
			Amount: send,
			Change: change,
			Fee:    fee,
		})
		plan.TotalAmount += send
		plan.TotalFee += fee
		remaining -= send
	}

	if remaining > 0 {
		return nil, fmt.Errorf("%w: selection short by %d", ErrInsufficientFunds, remaining)
	}
	return plan, nil
}
