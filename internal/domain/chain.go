package domain

import (
	"context"
	"math/big"
)

// TxHandle is a submitted transaction. Wait blocks until the transaction is
// mined (or ctx is cancelled) and returns the receipt. Once a transaction has
// been handed to the wallet for signing it cannot be cancelled by this core.
type TxHandle interface {
	Hash() string
	Wait(ctx context.Context) (*Receipt, error)
}

// ChainReader provides read-only ERC-20 state. Implementations issue RPC
// calls; fakes back tests.
type ChainReader interface {
	// TokenBalance returns balanceOf(owner) for the given token.
	TokenBalance(ctx context.Context, token, owner string) (*big.Int, error)
	// Allowance returns allowance(owner, spender) for the given token.
	Allowance(ctx context.Context, token, owner, spender string) (*big.Int, error)
}

// ChainWriter submits state-changing transactions. Every method returns a
// TxHandle without waiting; confirmation is the caller's explicit step so the
// orchestrators control exactly when each transaction must be mined before
// the next begins.
type ChainWriter interface {
	// Approve submits an ERC-20 approve(spender, amount).
	Approve(ctx context.Context, token, spender string, amount *big.Int) (TxHandle, error)
	// SplitPosition locks amount of the collateral token in the proposal and
	// mints equal YES and NO conditional tokens to the caller.
	SplitPosition(ctx context.Context, proposal, collateral string, amount *big.Int) (TxHandle, error)
	// MergePositions burns amount of both conditional tokens and unlocks the
	// same amount of the collateral token.
	MergePositions(ctx context.Context, proposal, collateral string, amount *big.Int) (TxHandle, error)
	// RedeemPositions redeems the winning side after proposal resolution.
	RedeemPositions(ctx context.Context, proposal, collateral string) (TxHandle, error)
}

// ChainClient is the full chain surface the lifecycle core consumes.
type ChainClient interface {
	ChainReader
	ChainWriter
	// Owner is the address of the connected wallet.
	Owner() string
}
