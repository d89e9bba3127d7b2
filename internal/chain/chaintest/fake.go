// Package chaintest provides an in-memory domain.ChainClient for unit tests.
// It models ERC-20 balances and allowances and applies split/merge effects to
// its own state, so conservation properties can be asserted without a node.
package chaintest

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/alanyoungcy/futarchybot/internal/domain"
)

// Call records one submitted transaction.
type Call struct {
	Method     string
	Token      string
	Spender    string
	Proposal   string
	Collateral string
	Amount     *big.Int
}

// FakeClient implements domain.ChainClient in memory.
type FakeClient struct {
	mu sync.Mutex

	OwnerAddr string
	// Market ties collateral addresses to their conditional tokens so split
	// and merge can apply balance effects.
	Market domain.MarketConfig

	// Balances maps token address -> owner balance.
	Balances map[string]*big.Int
	// Allowances maps "token|spender" -> allowance.
	Allowances map[string]*big.Int

	// Calls lists submitted transactions in order.
	Calls []Call

	// SubmitErr makes the named method fail at submission.
	SubmitErr map[string]error
	// RevertMethod makes the named method mine with status 0.
	RevertMethod map[string]bool

	txSeq int
}

// NewFakeClient returns a FakeClient seeded with the market and owner.
func NewFakeClient(owner string, market domain.MarketConfig) *FakeClient {
	return &FakeClient{
		OwnerAddr:    owner,
		Market:       market,
		Balances:     make(map[string]*big.Int),
		Allowances:   make(map[string]*big.Int),
		SubmitErr:    make(map[string]error),
		RevertMethod: make(map[string]bool),
	}
}

func (f *FakeClient) Owner() string { return f.OwnerAddr }

// SetBalance sets the owner's balance for a token.
func (f *FakeClient) SetBalance(token string, amount *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Balances[token] = new(big.Int).Set(amount)
}

// Balance returns the owner's balance for a token as a string, for asserts.
func (f *FakeClient) Balance(token string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balance(token).String()
}

// SetAllowance sets allowance(owner, spender) for a token.
func (f *FakeClient) SetAllowance(token, spender string, amount *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Allowances[token+"|"+spender] = new(big.Int).Set(amount)
}

// CallMethods returns the submitted method names in order.
func (f *FakeClient) CallMethods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.Calls))
	for i, c := range f.Calls {
		out[i] = c.Method
	}
	return out
}

func (f *FakeClient) balance(token string) *big.Int {
	if b, ok := f.Balances[token]; ok {
		return b
	}
	zero := new(big.Int)
	f.Balances[token] = zero
	return zero
}

func (f *FakeClient) TokenBalance(_ context.Context, token, _ string) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.balance(token)), nil
}

func (f *FakeClient) Allowance(_ context.Context, token, _, spender string) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.Allowances[token+"|"+spender]; ok {
		return new(big.Int).Set(a), nil
	}
	return new(big.Int), nil
}

// submit records the call and returns a handle whose Wait applies effect (if
// the method is not configured to fail or revert).
func (f *FakeClient) submit(call Call, effect func()) (domain.TxHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.SubmitErr[call.Method]; err != nil {
		return nil, err
	}
	f.Calls = append(f.Calls, call)
	f.txSeq++

	receipt := &domain.Receipt{
		TxHash:      fmt.Sprintf("0xfake%04d", f.txSeq),
		Status:      1,
		BlockNumber: uint64(f.txSeq),
		GasUsed:     21000,
	}
	if f.RevertMethod[call.Method] {
		receipt.Status = 0
		effect = nil
	}
	return &fakeTx{fake: f, receipt: receipt, effect: effect}, nil
}

func (f *FakeClient) Approve(_ context.Context, token, spender string, amount *big.Int) (domain.TxHandle, error) {
	amt := new(big.Int).Set(amount)
	return f.submit(
		Call{Method: "approve", Token: token, Spender: spender, Amount: amt},
		func() { f.Allowances[token+"|"+spender] = amt },
	)
}

func (f *FakeClient) SplitPosition(_ context.Context, proposal, collateral string, amount *big.Int) (domain.TxHandle, error) {
	amt := new(big.Int).Set(amount)
	fam := f.familyFor(collateral)
	return f.submit(
		Call{Method: "splitPosition", Proposal: proposal, Collateral: collateral, Amount: amt},
		func() {
			f.balance(collateral).Sub(f.balance(collateral), amt)
			f.balance(fam.YesToken.Address).Add(f.balance(fam.YesToken.Address), amt)
			f.balance(fam.NoToken.Address).Add(f.balance(fam.NoToken.Address), amt)
		},
	)
}

func (f *FakeClient) MergePositions(_ context.Context, proposal, collateral string, amount *big.Int) (domain.TxHandle, error) {
	amt := new(big.Int).Set(amount)
	fam := f.familyFor(collateral)
	return f.submit(
		Call{Method: "mergePositions", Proposal: proposal, Collateral: collateral, Amount: amt},
		func() {
			f.balance(collateral).Add(f.balance(collateral), amt)
			f.balance(fam.YesToken.Address).Sub(f.balance(fam.YesToken.Address), amt)
			f.balance(fam.NoToken.Address).Sub(f.balance(fam.NoToken.Address), amt)
		},
	)
}

func (f *FakeClient) RedeemPositions(_ context.Context, proposal, collateral string) (domain.TxHandle, error) {
	return f.submit(
		Call{Method: "redeemPositions", Proposal: proposal, Collateral: collateral},
		nil,
	)
}

func (f *FakeClient) familyFor(collateral string) domain.FamilyTokens {
	if f.Market.Company.Base.Address == collateral {
		return f.Market.Company
	}
	return f.Market.Currency
}

type fakeTx struct {
	fake    *FakeClient
	receipt *domain.Receipt
	effect  func()
}

func (t *fakeTx) Hash() string { return t.receipt.TxHash }

func (t *fakeTx) Wait(ctx context.Context) (*domain.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t.effect != nil {
		t.fake.mu.Lock()
		t.effect()
		t.fake.mu.Unlock()
		t.effect = nil
	}
	return t.receipt, nil
}
