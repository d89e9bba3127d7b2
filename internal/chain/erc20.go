package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/futarchybot/internal/domain"
)

// Minimal ERC-20 surface: the lifecycle core only reads balances and
// allowances and submits approvals.
const erc20ABIJSON = `[
	{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"allowance","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"approve","type":"function","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`

var erc20ABI = mustParseABI(erc20ABIJSON)

// TokenBalance returns balanceOf(owner) for the given token.
func (c *Client) TokenBalance(ctx context.Context, token, owner string) (*big.Int, error) {
	if token == "" {
		return nil, fmt.Errorf("chain: token balance: %w: token address", domain.ErrConfigMissing)
	}
	vals, err := c.call(ctx, common.HexToAddress(token), erc20ABI, "balanceOf", common.HexToAddress(owner))
	if err != nil {
		return nil, err
	}
	return asBigInt(vals, 0, "balanceOf")
}

// Allowance returns allowance(owner, spender) for the given token.
func (c *Client) Allowance(ctx context.Context, token, owner, spender string) (*big.Int, error) {
	if token == "" || spender == "" {
		return nil, fmt.Errorf("chain: allowance: %w: token or spender address", domain.ErrConfigMissing)
	}
	vals, err := c.call(ctx, common.HexToAddress(token), erc20ABI, "allowance",
		common.HexToAddress(owner), common.HexToAddress(spender))
	if err != nil {
		return nil, err
	}
	return asBigInt(vals, 0, "allowance")
}

// Approve submits approve(spender, amount) on the given token.
func (c *Client) Approve(ctx context.Context, token, spender string, amount *big.Int) (domain.TxHandle, error) {
	if token == "" || spender == "" {
		return nil, fmt.Errorf("chain: approve: %w: token or spender address", domain.ErrConfigMissing)
	}
	data, err := erc20ABI.Pack("approve", common.HexToAddress(spender), amount)
	if err != nil {
		return nil, fmt.Errorf("chain: packing approve: %w", err)
	}
	return c.transact(ctx, common.HexToAddress(token), data)
}

func asBigInt(vals []any, idx int, method string) (*big.Int, error) {
	if idx >= len(vals) {
		return nil, fmt.Errorf("chain: %s returned %d values", method, len(vals))
	}
	v, ok := vals[idx].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("chain: %s returned %T, want *big.Int", method, vals[idx])
	}
	return v, nil
}
