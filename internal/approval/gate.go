// Package approval centralizes the ERC-20 allowance-check-then-act pattern:
// every operation that moves tokens through a spender contract goes through
// the one gate here instead of re-implementing the check at its call site.
package approval

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/futarchybot/internal/domain"
)

// Gate ensures a spender holds sufficient allowance before a transfer-based
// operation runs.
type Gate struct {
	chain   domain.ChainClient
	journal domain.OperationStore // optional
	logger  *slog.Logger
}

// NewGate creates a Gate backed by the given chain client. journal may be
// nil to skip persistence.
func NewGate(chain domain.ChainClient, journal domain.OperationStore, logger *slog.Logger) *Gate {
	return &Gate{
		chain:   chain,
		journal: journal,
		logger:  logger.With(slog.String("component", "approval")),
	}
}

// EnsureAllowance guarantees allowance(owner, spender) >= required on token.
//
// Fast path: when the current allowance already covers the requirement, no
// transaction is sent. Otherwise the allowance is raised to max-uint256 so
// subsequent operations hit the fast path. A nonzero-but-insufficient
// allowance is first reset to zero and that reset is confirmed before the
// raise is submitted: some ERC-20 implementations reject nonzero-to-nonzero
// changes, and pipelining the two risks the reset racing the raise.
func (g *Gate) EnsureAllowance(ctx context.Context, token, spender string, required *big.Int) domain.OperationResult {
	owner := g.chain.Owner()

	current, err := g.chain.Allowance(ctx, token, owner, spender)
	if err != nil {
		if errors.Is(err, domain.ErrConfigMissing) {
			return g.finish(ctx, required, domain.Fail(domain.ErrKindConfigMissing, "allowance check: %v", err))
		}
		return g.finish(ctx, required, domain.Fail(domain.ErrKindApprovalFailed, "reading allowance: %v", err))
	}

	if current.Cmp(required) >= 0 {
		g.logger.Debug("allowance sufficient, skipping approval",
			slog.String("token", token),
			slog.String("spender", spender),
		)
		return domain.OK(nil)
	}

	if current.Sign() > 0 {
		g.logger.Info("resetting nonzero allowance",
			slog.String("token", token),
			slog.String("spender", spender),
			slog.String("current", current.String()),
		)
		if res := g.approveAndWait(ctx, token, spender, new(big.Int)); !res.Success {
			return g.finish(ctx, required, res)
		}
	}

	g.logger.Info("raising allowance to max",
		slog.String("token", token),
		slog.String("spender", spender),
	)
	return g.finish(ctx, required, g.approveAndWait(ctx, token, spender, domain.MaxUint256))
}

// finish journals the approval outcome. The fast path is never journaled:
// nothing happened on chain, so there is nothing to record.
func (g *Gate) finish(ctx context.Context, required *big.Int, res domain.OperationResult) domain.OperationResult {
	if g.journal == nil {
		return res
	}
	amt := ""
	if required != nil {
		amt = required.String()
	}
	rec := domain.OperationRecord{
		ID:        uuid.NewString(),
		Kind:      domain.OpApproval,
		Owner:     g.chain.Owner(),
		Amount:    amt,
		Success:   res.Success,
		TxHash:    res.TxHash,
		ErrorKind: res.ErrorKind,
		Message:   res.Message,
		CreatedAt: time.Now().UTC(),
	}
	if err := g.journal.Insert(ctx, rec); err != nil {
		g.logger.Warn("journal insert failed", slog.String("error", err.Error()))
	}
	return res
}

// approveAndWait submits one approve transaction and blocks until it is
// confirmed with a success status.
func (g *Gate) approveAndWait(ctx context.Context, token, spender string, amount *big.Int) domain.OperationResult {
	tx, err := g.chain.Approve(ctx, token, spender, amount)
	if err != nil {
		return classifyApproval(err)
	}
	receipt, err := tx.Wait(ctx)
	if err != nil {
		return classifyApproval(err)
	}
	if !receipt.Succeeded() {
		return domain.Fail(domain.ErrKindApprovalFailed, "approval %s reverted", receipt.TxHash)
	}
	return domain.OK(receipt)
}

func classifyApproval(err error) domain.OperationResult {
	switch {
	case errors.Is(err, domain.ErrUserRejected):
		return domain.Fail(domain.ErrKindApprovalRejected, "approval declined in wallet: %v", err)
	case errors.Is(err, domain.ErrConfigMissing):
		return domain.Fail(domain.ErrKindConfigMissing, "approval: %v", err)
	default:
		return domain.Fail(domain.ErrKindApprovalFailed, "approval: %v", err)
	}
}
