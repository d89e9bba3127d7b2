// Package swap coordinates trades between the conditional tokens of the two
// collateral families. The coordinator decides what to trade and tops up
// missing position tokens by splitting collateral first; price discovery and
// execution are delegated to the injected SwapRouter.
package swap

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

// Splitter is the slice of the collateral orchestrator the coordinator needs
// for shortfall top-ups.
type Splitter interface {
	Split(ctx context.Context, family domain.TokenFamily, amt *big.Int) domain.OperationResult
}

// Coordinator executes smart swaps: availability check, automatic collateral
// top-up, approval, then delegation to the external router.
type Coordinator struct {
	gate     *approval.Gate
	market   domain.MarketConfig
	balances *balance.Store
	splitter Splitter
	router   domain.SwapRouter
	notifier *events.Notifier
	journal  domain.OperationStore // optional
	owner    string
	logger   *slog.Logger
}

// New creates a Coordinator. journal may be nil.
func New(
	gate *approval.Gate,
	market domain.MarketConfig,
	balances *balance.Store,
	splitter Splitter,
	router domain.SwapRouter,
	notifier *events.Notifier,
	journal domain.OperationStore,
	owner string,
	logger *slog.Logger,
) *Coordinator {
	return &Coordinator{
		gate:     gate,
		market:   market,
		balances: balances,
		splitter: splitter,
		router:   router,
		notifier: notifier,
		journal:  journal,
		owner:    owner,
		logger:   logger.With(slog.String("component", "swap")),
	}
}

// pair is one row of the fixed (family, side, action) mapping: which
// conditional token is spent and which is received.
type pair struct {
	inFamily domain.TokenFamily
	tokenIn  domain.TokenDescriptor
	tokenOut domain.TokenDescriptor
}

// resolvePair applies the fixed mapping table: buy spends the currency-side
// conditional token for the company-side one, sell is the inverse. The
// request's family denominates the amount and must name the spending side's
// family.
func (c *Coordinator) resolvePair(req domain.SwapRequest) (pair, domain.OperationResult) {
	if !req.Side.Valid() {
		return pair{}, domain.Fail(domain.ErrKindInvalidAmount, "unknown side %q", req.Side)
	}
	var in, out domain.TokenFamily
	switch req.Action {
	case domain.ActionBuy:
		in, out = domain.FamilyCurrency, domain.FamilyCompany
	case domain.ActionSell:
		in, out = domain.FamilyCompany, domain.FamilyCurrency
	default:
		return pair{}, domain.Fail(domain.ErrKindInvalidAmount, "unknown action %q", req.Action)
	}
	if req.Family != in {
		return pair{}, domain.Fail(domain.ErrKindInvalidAmount,
			"%s swaps spend %s-family tokens, request names %q", req.Action, in, req.Family)
	}
	return pair{
		inFamily: in,
		tokenIn:  c.market.ConditionalToken(in, req.Side),
		tokenOut: c.market.ConditionalToken(out, req.Side),
	}, domain.OperationResult{Success: true}
}

// SmartSwap executes one trade. When the wallet holds fewer position tokens
// than the request needs, the difference is minted by splitting collateral
// first; the top-up always fully confirms on-chain before the swap submits,
// because the swap's correctness depends on those tokens already existing.
func (c *Coordinator) SmartSwap(ctx context.Context, req domain.SwapRequest) domain.OperationResult {
	p, ok := c.resolvePair(req)
	if !ok.Success {
		return c.finish(ctx, req, ok)
	}

	amt, err := amount.ToFixedPoint(req.Amount, c.market.Family(p.inFamily).Base.Decimals)
	if err != nil {
		return c.finish(ctx, req, domain.Fail(domain.ErrKindInvalidAmount, "%v", err))
	}

	// Availability comes from the snapshot store; the unpaired balance on
	// the traded side is fully usable for swaps.
	available := c.balances.Snapshot().Family(p.inFamily).AvailableForSwap(req.Side)
	if !amount.Sufficient(available, amt) {
		shortfall := amount.Shortfall(available, amt)
		c.logger.Info("topping up position tokens",
			slog.String("family", string(p.inFamily)),
			slog.String("side", string(req.Side)),
			slog.String("shortfall", shortfall.String()),
		)
		c.emit("topping_up", amount.ToHuman(shortfall, p.tokenIn.Decimals))
		if res := c.splitter.Split(ctx, p.inFamily, shortfall); !res.Success {
			return c.finish(ctx, req, res)
		}
	}

	c.emit("approving", p.tokenIn.Symbol)
	if res := c.gate.EnsureAllowance(ctx, p.tokenIn.Address, c.market.SwapSpender, amt); !res.Success {
		return c.finish(ctx, req, res)
	}

	c.emit("routing", "")
	route, err := c.router.FetchRoute(ctx, p.tokenIn.Address, p.tokenOut.Address, amt)
	if err != nil {
		return c.finish(ctx, req, domain.Fail(domain.ErrKindExternalService, "fetching route: %v", err))
	}

	c.emit("executing", "")
	tx, err := c.router.ExecuteRoute(ctx, route)
	if err != nil {
		return c.finish(ctx, req, classifySwap(err))
	}

	c.emit("confirming", tx.Hash())
	receipt, err := tx.Wait(ctx)
	if err != nil {
		return c.finish(ctx, req, classifySwap(err))
	}
	if !receipt.Succeeded() {
		return c.finish(ctx, req, domain.Fail(domain.ErrKindTxFailed, "swap %s reverted", receipt.TxHash))
	}

	return c.finish(ctx, req, domain.OK(receipt))
}

func (c *Coordinator) finish(ctx context.Context, req domain.SwapRequest, res domain.OperationResult) domain.OperationResult {
	if res.Success {
		if _, err := c.balances.Refresh(ctx); err != nil {
			c.logger.Warn("post-swap refresh failed", slog.String("error", err.Error()))
		}
		c.emit("done", res.TxHash)
	} else {
		c.notifier.Emit(events.EventError, events.StatusUpdate{
			Operation: string(domain.OpSwap),
			Stage:     "error",
			Message:   res.Message,
		})
	}
	c.record(ctx, req, res)
	return res
}

func (c *Coordinator) record(ctx context.Context, req domain.SwapRequest, res domain.OperationResult) {
	if c.journal == nil {
		return
	}
	rec := domain.OperationRecord{
		ID:        uuid.NewString(),
		Kind:      domain.OpSwap,
		Family:    req.Family,
		Side:      req.Side,
		Owner:     c.owner,
		Amount:    req.Amount,
		Success:   res.Success,
		TxHash:    res.TxHash,
		ErrorKind: res.ErrorKind,
		Message:   res.Message,
		CreatedAt: time.Now().UTC(),
	}
	if err := c.journal.Insert(ctx, rec); err != nil {
		c.logger.Warn("journal insert failed", slog.String("error", err.Error()))
	}
}

func (c *Coordinator) emit(stage, detail string) {
	c.notifier.Emit(events.EventOperation, events.StatusUpdate{
		Operation: string(domain.OpSwap),
		Stage:     stage,
		Message:   detail,
	})
}

func classifySwap(err error) domain.OperationResult {
	switch {
	case errors.Is(err, domain.ErrUserRejected):
		return domain.Fail(domain.ErrKindUserRejected, "declined in wallet: %v", err)
	case errors.Is(err, domain.ErrNoRoute):
		return domain.Fail(domain.ErrKindExternalService, "%v", err)
	default:
		return domain.Fail(domain.ErrKindTxFailed, "%v", err)
	}
}
