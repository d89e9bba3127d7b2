package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/futarchybot/internal/domain"
)

// UniswapV2-compatible router surface (Swapr/SushiSwap on Gnosis expose the
// same interface). Quoting is getAmountsOut on the contract itself; this
// adapter implements no AMM math of its own.
const univ2ABIJSON = `[
	{"name":"getAmountsOut","type":"function","stateMutability":"view","inputs":[{"name":"amountIn","type":"uint256"},{"name":"path","type":"address[]"}],"outputs":[{"name":"amounts","type":"uint256[]"}]},
	{"name":"swapExactTokensForTokens","type":"function","stateMutability":"nonpayable","inputs":[{"name":"amountIn","type":"uint256"},{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"outputs":[{"name":"amounts","type":"uint256[]"}]}
]`

var univ2ABI = mustParseABI(univ2ABIJSON)

// SwapRouterConfig holds the external swap router parameters. Slippage and
// deadline policy live here, at the collaborator boundary, not in the
// coordinator.
type SwapRouterConfig struct {
	// Address of the UniswapV2-compatible router contract.
	Address string
	// SlippageBps is the tolerated quote slippage in basis points.
	SlippageBps int64
	// Deadline bounds how long a submitted swap stays valid.
	Deadline time.Duration
}

// UniV2Router implements domain.SwapRouter against a UniswapV2-compatible
// AMM router contract.
type UniV2Router struct {
	client      *Client
	address     common.Address
	slippageBps int64
	deadline    time.Duration
}

// NewUniV2Router creates the router adapter.
func NewUniV2Router(client *Client, cfg SwapRouterConfig) (*UniV2Router, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("chain: swap router: %w: router address", domain.ErrConfigMissing)
	}
	slippage := cfg.SlippageBps
	if slippage <= 0 {
		slippage = 50 // 0.5%
	}
	deadline := cfg.Deadline
	if deadline <= 0 {
		deadline = 10 * time.Minute
	}
	return &UniV2Router{
		client:      client,
		address:     common.HexToAddress(cfg.Address),
		slippageBps: slippage,
		deadline:    deadline,
	}, nil
}

// FetchRoute quotes a direct-path swap via getAmountsOut.
func (r *UniV2Router) FetchRoute(ctx context.Context, tokenIn, tokenOut string, amountIn *big.Int) (domain.Route, error) {
	path := []common.Address{common.HexToAddress(tokenIn), common.HexToAddress(tokenOut)}
	vals, err := r.client.call(ctx, r.address, univ2ABI, "getAmountsOut", amountIn, path)
	if err != nil {
		return domain.Route{}, fmt.Errorf("%w: %v", domain.ErrNoRoute, err)
	}
	amounts, ok := vals[0].([]*big.Int)
	if !ok || len(amounts) < 2 {
		return domain.Route{}, fmt.Errorf("%w: malformed getAmountsOut result", domain.ErrNoRoute)
	}
	if amounts[len(amounts)-1].Sign() == 0 {
		return domain.Route{}, fmt.Errorf("%w: zero output for %s -> %s", domain.ErrNoRoute, tokenIn, tokenOut)
	}
	return domain.Route{
		TokenIn:   tokenIn,
		TokenOut:  tokenOut,
		AmountIn:  new(big.Int).Set(amountIn),
		AmountOut: amounts[len(amounts)-1],
		Raw:       path,
	}, nil
}

// ExecuteRoute submits swapExactTokensForTokens for a previously fetched
// route, applying the configured slippage tolerance and deadline.
func (r *UniV2Router) ExecuteRoute(ctx context.Context, route domain.Route) (domain.TxHandle, error) {
	path, ok := route.Raw.([]common.Address)
	if !ok {
		return nil, fmt.Errorf("chain: swap router: route was not produced by this router")
	}

	// amountOutMin = quote * (10000 - slippageBps) / 10000
	minOut := new(big.Int).Mul(route.AmountOut, big.NewInt(10_000-r.slippageBps))
	minOut.Div(minOut, big.NewInt(10_000))

	deadline := big.NewInt(time.Now().Add(r.deadline).Unix())
	data, err := univ2ABI.Pack("swapExactTokensForTokens",
		route.AmountIn, minOut, path, r.client.signer.Address(), deadline)
	if err != nil {
		return nil, fmt.Errorf("chain: packing swap: %w", err)
	}
	return r.client.transact(ctx, r.address, data)
}
