package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/futarchybot/internal/domain"
)

// Futarchy router surface. splitPosition locks collateral in the proposal
// and mints equal YES/NO conditional tokens; mergePositions is the inverse;
// redeemPositions pays out the winning side after resolution. Atomicity of
// the mint/burn is the contract's guarantee, not re-verified here.
const routerABIJSON = `[
	{"name":"splitPosition","type":"function","stateMutability":"nonpayable","inputs":[{"name":"proposal","type":"address"},{"name":"collateralToken","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
	{"name":"mergePositions","type":"function","stateMutability":"nonpayable","inputs":[{"name":"proposal","type":"address"},{"name":"collateralToken","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
	{"name":"redeemPositions","type":"function","stateMutability":"nonpayable","inputs":[{"name":"proposal","type":"address"},{"name":"collateralToken","type":"address"}],"outputs":[]}
]`

var routerABI = mustParseABI(routerABIJSON)

// routerTx packs a router method and submits it. All router calls share the
// same shape.
func (c *Client) routerTx(ctx context.Context, router, method string, args ...any) (domain.TxHandle, error) {
	if router == "" {
		return nil, fmt.Errorf("chain: %s: %w: router address", method, domain.ErrConfigMissing)
	}
	data, err := routerABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("chain: packing %s: %w", method, err)
	}
	return c.transact(ctx, common.HexToAddress(router), data)
}

// router is set once at wiring time via BindRouter.
func (c *Client) routerAddress() string {
	return c.router
}

// BindRouter points the client at the futarchy router contract. Must be
// called before any split/merge/redeem submission.
func (c *Client) BindRouter(address string) {
	c.router = address
}

// SplitPosition submits splitPosition(proposal, collateral, amount).
func (c *Client) SplitPosition(ctx context.Context, proposal, collateral string, amount *big.Int) (domain.TxHandle, error) {
	if proposal == "" || collateral == "" {
		return nil, fmt.Errorf("chain: split: %w: proposal or collateral address", domain.ErrConfigMissing)
	}
	return c.routerTx(ctx, c.routerAddress(), "splitPosition",
		common.HexToAddress(proposal), common.HexToAddress(collateral), amount)
}

// MergePositions submits mergePositions(proposal, collateral, amount).
func (c *Client) MergePositions(ctx context.Context, proposal, collateral string, amount *big.Int) (domain.TxHandle, error) {
	if proposal == "" || collateral == "" {
		return nil, fmt.Errorf("chain: merge: %w: proposal or collateral address", domain.ErrConfigMissing)
	}
	return c.routerTx(ctx, c.routerAddress(), "mergePositions",
		common.HexToAddress(proposal), common.HexToAddress(collateral), amount)
}

// RedeemPositions submits redeemPositions(proposal, collateral).
func (c *Client) RedeemPositions(ctx context.Context, proposal, collateral string) (domain.TxHandle, error) {
	if proposal == "" || collateral == "" {
		return nil, fmt.Errorf("chain: redeem: %w: proposal or collateral address", domain.ErrConfigMissing)
	}
	return c.routerTx(ctx, c.routerAddress(), "redeemPositions",
		common.HexToAddress(proposal), common.HexToAddress(collateral))
}
