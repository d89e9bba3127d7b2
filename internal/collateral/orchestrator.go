// Package collateral orchestrates the split and merge lifecycle: base token
// in, equal YES/NO conditional tokens out, and back again. Each operation is
// an ordered sequence of guarded steps; every step fully completes (including
// chain confirmation) before the next begins.
package collateral

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/futarchybot/internal/amount"
	"github.com/alanyoungcy/futarchybot/internal/approval"
	"github.com/alanyoungcy/futarchybot/internal/balance"
	"github.com/alanyoungcy/futarchybot/internal/domain"
	"github.com/alanyoungcy/futarchybot/internal/events"
)

// Stage names emitted as operation progress. Listeners carry no control-flow
// authority; the sequence proceeds regardless of what they do.
const (
	StageCheckingBalance = "checking_balance"
	StageApproving       = "approving"
	StageSubmitting      = "submitting"
	StageConfirming      = "confirming"
	StageDone            = "done"
	StageError           = "error"
)

// Orchestrator executes split, merge, and redeem operations against the
// futarchy router.
type Orchestrator struct {
	chain    domain.ChainClient
	gate     *approval.Gate
	market   domain.MarketConfig
	balances *balance.Store
	notifier *events.Notifier
	journal  domain.OperationStore // optional
	logger   *slog.Logger
}

// New creates an Orchestrator. journal may be nil to skip persistence.
func New(
	chain domain.ChainClient,
	gate *approval.Gate,
	market domain.MarketConfig,
	balances *balance.Store,
	notifier *events.Notifier,
	journal domain.OperationStore,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		chain:    chain,
		gate:     gate,
		market:   market,
		balances: balances,
		notifier: notifier,
		journal:  journal,
		logger:   logger.With(slog.String("component", "collateral")),
	}
}

// Split locks amt of the family's base token in the proposal and mints equal
// YES and NO conditional tokens. The mint's atomicity is the router
// contract's guarantee; this sequence only submits and awaits the receipt.
func (o *Orchestrator) Split(ctx context.Context, family domain.TokenFamily, amt *big.Int) domain.OperationResult {
	if res := validateAmount(family, amt); !res.Success {
		return o.finish(ctx, domain.OpSplit, family, amt, res)
	}
	fam := o.market.Family(family)

	o.emit(domain.OpSplit, StageCheckingBalance, "")
	have, err := o.chain.TokenBalance(ctx, fam.Base.Address, o.chain.Owner())
	if err != nil {
		return o.finish(ctx, domain.OpSplit, family, amt, classifyStep(err))
	}
	if !amount.Sufficient(have, amt) {
		short := amount.Shortfall(have, amt)
		return o.finish(ctx, domain.OpSplit, family, amt, domain.Fail(
			domain.ErrKindInsufficientFunds,
			"need %s %s more to split %s",
			amount.ToHuman(short, fam.Base.Decimals), fam.Base.Symbol,
			amount.ToHuman(amt, fam.Base.Decimals),
		))
	}

	o.emit(domain.OpSplit, StageApproving, fam.Base.Symbol)
	if res := o.gate.EnsureAllowance(ctx, fam.Base.Address, o.market.Router, amt); !res.Success {
		return o.finish(ctx, domain.OpSplit, family, amt, res)
	}

	o.emit(domain.OpSplit, StageSubmitting, "")
	tx, err := o.chain.SplitPosition(ctx, o.market.Proposal, fam.Base.Address, amt)
	if err != nil {
		return o.finish(ctx, domain.OpSplit, family, amt, classifyStep(err))
	}

	res := o.confirm(ctx, domain.OpSplit, tx)
	return o.finish(ctx, domain.OpSplit, family, amt, res)
}

// Merge burns amt of both conditional tokens and unlocks the same amount of
// the base token. Only the paired minimum is mergeable: holding enough of
// one side does not help if the other side is short.
func (o *Orchestrator) Merge(ctx context.Context, family domain.TokenFamily, amt *big.Int) domain.OperationResult {
	if res := validateAmount(family, amt); !res.Success {
		return o.finish(ctx, domain.OpMerge, family, amt, res)
	}
	fam := o.market.Family(family)

	o.emit(domain.OpMerge, StageCheckingBalance, "")
	pair, err := o.readPair(ctx, fam)
	if err != nil {
		return o.finish(ctx, domain.OpMerge, family, amt, classifyStep(err))
	}
	paired := pair.AvailableForRedeem()
	if !amount.Sufficient(paired, amt) {
		return o.finish(ctx, domain.OpMerge, family, amt, domain.Fail(
			domain.ErrKindInsufficientPaired,
			"paired balance is %s, requested %s",
			amount.ToHuman(paired, fam.Base.Decimals),
			amount.ToHuman(amt, fam.Base.Decimals),
		))
	}

	// Both conditional tokens move through the router, so both need
	// allowance before the burn is submitted.
	o.emit(domain.OpMerge, StageApproving, fam.YesToken.Symbol)
	if res := o.gate.EnsureAllowance(ctx, fam.YesToken.Address, o.market.Router, amt); !res.Success {
		return o.finish(ctx, domain.OpMerge, family, amt, res)
	}
	o.emit(domain.OpMerge, StageApproving, fam.NoToken.Symbol)
	if res := o.gate.EnsureAllowance(ctx, fam.NoToken.Address, o.market.Router, amt); !res.Success {
		return o.finish(ctx, domain.OpMerge, family, amt, res)
	}

	o.emit(domain.OpMerge, StageSubmitting, "")
	tx, err := o.chain.MergePositions(ctx, o.market.Proposal, fam.Base.Address, amt)
	if err != nil {
		return o.finish(ctx, domain.OpMerge, family, amt, classifyStep(err))
	}

	res := o.confirm(ctx, domain.OpMerge, tx)
	return o.finish(ctx, domain.OpMerge, family, amt, res)
}

// Redeem pays out the winning side of a resolved proposal for the family's
// collateral. Both conditional tokens are approved for their full current
// balance since the router decides which side is redeemable.
func (o *Orchestrator) Redeem(ctx context.Context, family domain.TokenFamily) domain.OperationResult {
	if !family.Valid() {
		return o.finish(ctx, domain.OpRedeem, family, nil,
			domain.Fail(domain.ErrKindInvalidAmount, "unknown token family %q", family))
	}
	fam := o.market.Family(family)

	o.emit(domain.OpRedeem, StageCheckingBalance, "")
	pair, err := o.readPair(ctx, fam)
	if err != nil {
		return o.finish(ctx, domain.OpRedeem, family, nil, classifyStep(err))
	}
	if pair.YesAmount.Sign() == 0 && pair.NoAmount.Sign() == 0 {
		return o.finish(ctx, domain.OpRedeem, family, nil, domain.Fail(
			domain.ErrKindInsufficientFunds, "no %s positions to redeem", family))
	}

	for _, tok := range []struct {
		desc domain.TokenDescriptor
		held *big.Int
	}{
		{fam.YesToken, pair.YesAmount},
		{fam.NoToken, pair.NoAmount},
	} {
		if tok.held.Sign() == 0 {
			continue
		}
		o.emit(domain.OpRedeem, StageApproving, tok.desc.Symbol)
		if res := o.gate.EnsureAllowance(ctx, tok.desc.Address, o.market.Router, tok.held); !res.Success {
			return o.finish(ctx, domain.OpRedeem, family, nil, res)
		}
	}

	o.emit(domain.OpRedeem, StageSubmitting, "")
	tx, err := o.chain.RedeemPositions(ctx, o.market.Proposal, fam.Base.Address)
	if err != nil {
		return o.finish(ctx, domain.OpRedeem, family, nil, classifyStep(err))
	}

	res := o.confirm(ctx, domain.OpRedeem, tx)
	return o.finish(ctx, domain.OpRedeem, family, nil, res)
}

// confirm waits for the submitted transaction. A non-success receipt is a
// terminal TransactionFailed: split/merge are never auto-retried, since
// resubmitting against already-consumed allowance could double-spend intent.
func (o *Orchestrator) confirm(ctx context.Context, op domain.OperationKind, tx domain.TxHandle) domain.OperationResult {
	o.emit(op, StageConfirming, tx.Hash())
	receipt, err := tx.Wait(ctx)
	if err != nil {
		return classifyStep(err)
	}
	if !receipt.Succeeded() {
		return domain.Fail(domain.ErrKindTxFailed, "transaction %s reverted", receipt.TxHash)
	}
	return domain.OK(receipt)
}

// finish refreshes balances on success, journals the outcome, and emits the
// terminal stage event.
func (o *Orchestrator) finish(ctx context.Context, op domain.OperationKind, family domain.TokenFamily, amt *big.Int, res domain.OperationResult) domain.OperationResult {
	if res.Success {
		if _, err := o.balances.Refresh(ctx); err != nil {
			o.logger.Warn("post-operation refresh failed", slog.String("error", err.Error()))
		}
		o.emit(op, StageDone, res.TxHash)
	} else {
		o.logger.Warn("operation failed",
			slog.String("operation", string(op)),
			slog.String("kind", string(res.ErrorKind)),
			slog.String("message", res.Message),
		)
		o.notifier.Emit(events.EventError, events.StatusUpdate{
			Operation: string(op),
			Stage:     StageError,
			Message:   res.Message,
		})
	}
	o.record(ctx, op, family, amt, res)
	return res
}

func (o *Orchestrator) record(ctx context.Context, op domain.OperationKind, family domain.TokenFamily, amt *big.Int, res domain.OperationResult) {
	if o.journal == nil {
		return
	}
	rec := domain.OperationRecord{
		ID:        uuid.NewString(),
		Kind:      op,
		Family:    family,
		Owner:     o.chain.Owner(),
		Success:   res.Success,
		TxHash:    res.TxHash,
		ErrorKind: res.ErrorKind,
		Message:   res.Message,
		CreatedAt: time.Now().UTC(),
	}
	if amt != nil {
		rec.Amount = amt.String()
	}
	if err := o.journal.Insert(ctx, rec); err != nil {
		o.logger.Warn("journal insert failed", slog.String("error", err.Error()))
	}
}

func (o *Orchestrator) emit(op domain.OperationKind, stage, detail string) {
	o.notifier.Emit(events.EventOperation, events.StatusUpdate{
		Operation: string(op),
		Stage:     stage,
		Message:   detail,
	})
}

// readPair fetches both conditional balances for a family.
func (o *Orchestrator) readPair(ctx context.Context, fam domain.FamilyTokens) (domain.PositionPair, error) {
	owner := o.chain.Owner()
	yes, err := o.chain.TokenBalance(ctx, fam.YesToken.Address, owner)
	if err != nil {
		return domain.PositionPair{}, err
	}
	no, err := o.chain.TokenBalance(ctx, fam.NoToken.Address, owner)
	if err != nil {
		return domain.PositionPair{}, err
	}
	return domain.PositionPair{
		YesAddress: fam.YesToken.Address,
		NoAddress:  fam.NoToken.Address,
		YesAmount:  yes,
		NoAmount:   no,
	}, nil
}

func validateAmount(family domain.TokenFamily, amt *big.Int) domain.OperationResult {
	if !family.Valid() {
		return domain.Fail(domain.ErrKindInvalidAmount, "unknown token family %q", family)
	}
	if amt == nil || amt.Sign() <= 0 {
		return domain.Fail(domain.ErrKindInvalidAmount, "amount must be positive")
	}
	return domain.OperationResult{Success: true}
}

// classifyStep converts an internal step error into the failure taxonomy.
func classifyStep(err error) domain.OperationResult {
	switch {
	case errors.Is(err, domain.ErrUserRejected):
		return domain.Fail(domain.ErrKindUserRejected, "declined in wallet: %v", err)
	case errors.Is(err, domain.ErrConfigMissing):
		return domain.Fail(domain.ErrKindConfigMissing, "%v", err)
	default:
		return domain.Fail(domain.ErrKindTxFailed, "%v", err)
	}
}
