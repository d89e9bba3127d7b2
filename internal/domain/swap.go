package domain

import (
	"context"
	"math/big"
)

// SwapRequest is the ephemeral value object describing one desired trade.
// Amount is the human-decimal string exactly as the user typed it; it is
// converted to fixed-point on use.
type SwapRequest struct {
	Family TokenFamily
	Side   Side
	Action Action
	Amount string
}

// Route is an opaque swap route produced by the external routing service.
// TokenIn/TokenOut/AmountIn echo the request; AmountOut is the quote. Raw
// carries whatever the router implementation needs to execute the route and
// is never inspected by the coordinator.
type Route struct {
	TokenIn   string
	TokenOut  string
	AmountIn  *big.Int
	AmountOut *big.Int
	Raw       any
}

// SwapRouter is the external price-discovery and execution collaborator
// (CoW, Uniswap, Swapr, ... behind one interface). The lifecycle core
// implements no AMM math, slippage handling, or route-finding of its own;
// slippage and deadline policy belong entirely to the implementation.
type SwapRouter interface {
	// FetchRoute quotes a route for swapping amountIn of tokenIn into
	// tokenOut. Returns ErrNoRoute (possibly wrapped) when no route exists.
	FetchRoute(ctx context.Context, tokenIn, tokenOut string, amountIn *big.Int) (Route, error)
	// ExecuteRoute submits the swap transaction for a previously fetched
	// route.
	ExecuteRoute(ctx context.Context, route Route) (TxHandle, error)
}
