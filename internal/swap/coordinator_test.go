package swap

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/futarchybot/internal/approval"
	"github.com/alanyoungcy/futarchybot/internal/balance"
	"github.com/alanyoungcy/futarchybot/internal/chain/chaintest"
	"github.com/alanyoungcy/futarchybot/internal/collateral"
	"github.com/alanyoungcy/futarchybot/internal/domain"
	"github.com/alanyoungcy/futarchybot/internal/events"
)

const testOwner = "0x00000000000000000000000000000000000000aa"

func testMarket() domain.MarketConfig {
	return domain.MarketConfig{
		ID:          "prop-1",
		Proposal:    "0x1000000000000000000000000000000000000001",
		Router:      "0x1000000000000000000000000000000000000002",
		SwapSpender: "0x1000000000000000000000000000000000000003",
		Currency: domain.FamilyTokens{
			Base:     domain.TokenDescriptor{Address: "0xc0", Symbol: "SDAI", Decimals: 18},
			YesToken: domain.TokenDescriptor{Address: "0xc1", Symbol: "YES_SDAI", Decimals: 18},
			NoToken:  domain.TokenDescriptor{Address: "0xc2", Symbol: "NO_SDAI", Decimals: 18},
		},
		Company: domain.FamilyTokens{
			Base:     domain.TokenDescriptor{Address: "0xd0", Symbol: "GNO", Decimals: 18},
			YesToken: domain.TokenDescriptor{Address: "0xd1", Symbol: "YES_GNO", Decimals: 18},
			NoToken:  domain.TokenDescriptor{Address: "0xd2", Symbol: "NO_GNO", Decimals: 18},
		},
	}
}

type fetchCall struct {
	tokenIn  string
	tokenOut string
	amountIn *big.Int
}

// fakeRouter implements domain.SwapRouter with scripted outcomes.
type fakeRouter struct {
	mu       sync.Mutex
	fetches  []fetchCall
	executed []domain.Route

	fetchErr error
	execErr  error
	revert   bool
}

func (r *fakeRouter) FetchRoute(_ context.Context, tokenIn, tokenOut string, amountIn *big.Int) (domain.Route, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetches = append(r.fetches, fetchCall{tokenIn, tokenOut, new(big.Int).Set(amountIn)})
	if r.fetchErr != nil {
		return domain.Route{}, r.fetchErr
	}
	return domain.Route{
		TokenIn:   tokenIn,
		TokenOut:  tokenOut,
		AmountIn:  new(big.Int).Set(amountIn),
		AmountOut: new(big.Int).Set(amountIn), // quote is irrelevant here
		Raw:       []string{tokenIn, tokenOut},
	}, nil
}

func (r *fakeRouter) ExecuteRoute(_ context.Context, route domain.Route) (domain.TxHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.execErr != nil {
		return nil, r.execErr
	}
	r.executed = append(r.executed, route)
	status := uint64(1)
	if r.revert {
		status = 0
	}
	return routerTx{receipt: &domain.Receipt{TxHash: "0xswap01", Status: status, BlockNumber: 7}}, nil
}

type routerTx struct {
	receipt *domain.Receipt
}

func (t routerTx) Hash() string { return t.receipt.TxHash }

func (t routerTx) Wait(ctx context.Context) (*domain.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.receipt, nil
}

type memJournal struct {
	mu   sync.Mutex
	recs []domain.OperationRecord
}

func (j *memJournal) Insert(_ context.Context, rec domain.OperationRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.recs = append(j.recs, rec)
	return nil
}

func (j *memJournal) ListRecent(context.Context, int) ([]domain.OperationRecord, error) {
	return nil, nil
}

func (j *memJournal) ListBefore(context.Context, time.Time) ([]domain.OperationRecord, error) {
	return nil, nil
}

func (j *memJournal) DeleteBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

type fixture struct {
	coord    *Coordinator
	fake     *chaintest.FakeClient
	router   *fakeRouter
	balances *balance.Store
	journal  *memJournal
}

func setup(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	market := testMarket()
	fake := chaintest.NewFakeClient(testOwner, market)
	notifier := events.NewNotifier(logger)
	balances := balance.New(fake, market, testOwner, notifier, nil, logger)
	gate := approval.NewGate(fake, nil, logger)
	splitter := collateral.New(fake, gate, market, balances, notifier, nil, logger)
	router := &fakeRouter{}
	journal := &memJournal{}
	coord := New(gate, market, balances, splitter, router, notifier, journal, testOwner, logger)
	return &fixture{coord: coord, fake: fake, router: router, balances: balances, journal: journal}
}

// refresh populates the snapshot the coordinator reads availability from.
func (f *fixture) refresh(t *testing.T) {
	t.Helper()
	_, err := f.balances.Refresh(context.Background())
	require.NoError(t, err)
}

func tokens(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func buyYes(amt string) domain.SwapRequest {
	return domain.SwapRequest{
		Family: domain.FamilyCurrency,
		Side:   domain.SideYes,
		Action: domain.ActionBuy,
		Amount: amt,
	}
}

func TestSmartSwapNoTopUpWhenSufficient(t *testing.T) {
	f := setup(t)
	f.fake.SetBalance("0xc1", tokens(10))
	f.refresh(t)

	res := f.coord.SmartSwap(context.Background(), buyYes("10"))

	require.True(t, res.Success, res.Message)
	assert.NotContains(t, f.fake.CallMethods(), "splitPosition",
		"sufficient availability must not trigger a top-up")
	require.Len(t, f.router.executed, 1)
}

func TestSmartSwapTopsUpExactShortfall(t *testing.T) {
	f := setup(t)
	f.fake.SetBalance("0xc0", tokens(100))
	f.fake.SetBalance("0xc1", tokens(3))
	f.refresh(t)

	res := f.coord.SmartSwap(context.Background(), buyYes("10"))

	require.True(t, res.Success, res.Message)
	var split *chaintest.Call
	for i := range f.fake.Calls {
		if f.fake.Calls[i].Method == "splitPosition" {
			require.Nil(t, split, "exactly one top-up split")
			split = &f.fake.Calls[i]
		}
	}
	require.NotNil(t, split)
	assert.Equal(t, tokens(7).String(), split.Amount.String(),
		"top-up is amount minus available, never more, never less")

	// The split also minted 7 NO tokens as a byproduct.
	assert.Equal(t, tokens(7).String(), f.fake.Balance("0xc2"))
}

func TestSmartSwapTopUpConfirmsBeforeSwap(t *testing.T) {
	f := setup(t)
	f.fake.SetBalance("0xc0", tokens(100))
	f.fake.SetBalance("0xc1", tokens(3))
	f.refresh(t)

	res := f.coord.SmartSwap(context.Background(), buyYes("10"))

	require.True(t, res.Success)
	// By the time the route was fetched, the split had already applied its
	// balance effects, so the wallet held the full input amount.
	require.Len(t, f.router.fetches, 1)
	assert.Equal(t, tokens(10).String(), f.fake.Balance("0xc1"))
}

func TestSmartSwapPairMappingBuy(t *testing.T) {
	f := setup(t)
	f.fake.SetBalance("0xc1", tokens(5))
	f.refresh(t)

	res := f.coord.SmartSwap(context.Background(), buyYes("5"))

	require.True(t, res.Success, res.Message)
	require.Len(t, f.router.fetches, 1)
	assert.Equal(t, "0xc1", f.router.fetches[0].tokenIn, "buy spends the currency-side token")
	assert.Equal(t, "0xd1", f.router.fetches[0].tokenOut, "buy receives the company-side token")
	assert.Equal(t, tokens(5).String(), f.router.fetches[0].amountIn.String())
}

func TestSmartSwapPairMappingSell(t *testing.T) {
	f := setup(t)
	f.fake.SetBalance("0xd2", tokens(5))
	f.refresh(t)

	res := f.coord.SmartSwap(context.Background(), domain.SwapRequest{
		Family: domain.FamilyCompany,
		Side:   domain.SideNo,
		Action: domain.ActionSell,
		Amount: "5",
	})

	require.True(t, res.Success, res.Message)
	require.Len(t, f.router.fetches, 1)
	assert.Equal(t, "0xd2", f.router.fetches[0].tokenIn, "sell spends the company-side token")
	assert.Equal(t, "0xc2", f.router.fetches[0].tokenOut, "sell receives the currency-side token")
}

func TestSmartSwapApprovesSwapSpender(t *testing.T) {
	f := setup(t)
	f.fake.SetBalance("0xc1", tokens(5))
	f.refresh(t)

	res := f.coord.SmartSwap(context.Background(), buyYes("5"))

	require.True(t, res.Success)
	require.Equal(t, []string{"approve"}, f.fake.CallMethods())
	assert.Equal(t, "0xc1", f.fake.Calls[0].Token)
	assert.Equal(t, testMarket().SwapSpender, f.fake.Calls[0].Spender)
}

func TestSmartSwapInvalidRequests(t *testing.T) {
	f := setup(t)

	cases := map[string]domain.SwapRequest{
		"empty amount":     {Family: domain.FamilyCurrency, Side: domain.SideYes, Action: domain.ActionBuy, Amount: ""},
		"non-numeric":      {Family: domain.FamilyCurrency, Side: domain.SideYes, Action: domain.ActionBuy, Amount: "abc"},
		"zero":             {Family: domain.FamilyCurrency, Side: domain.SideYes, Action: domain.ActionBuy, Amount: "0"},
		"negative":         {Family: domain.FamilyCurrency, Side: domain.SideYes, Action: domain.ActionBuy, Amount: "-1"},
		"unknown side":     {Family: domain.FamilyCurrency, Side: "maybe", Action: domain.ActionBuy, Amount: "1"},
		"unknown action":   {Family: domain.FamilyCurrency, Side: domain.SideYes, Action: "hold", Amount: "1"},
		"family mismatch":  {Family: domain.FamilyCompany, Side: domain.SideYes, Action: domain.ActionBuy, Amount: "1"},
		"family mismatch2": {Family: domain.FamilyCurrency, Side: domain.SideNo, Action: domain.ActionSell, Amount: "1"},
	}
	for name, req := range cases {
		res := f.coord.SmartSwap(context.Background(), req)
		require.False(t, res.Success, name)
		assert.Equal(t, domain.ErrKindInvalidAmount, res.ErrorKind, name)
	}
	assert.Empty(t, f.router.fetches, "invalid requests never reach the router")
	assert.Empty(t, f.fake.Calls)
}

func TestSmartSwapTopUpFailureAborts(t *testing.T) {
	f := setup(t)
	// No base collateral to split from.
	f.fake.SetBalance("0xc1", tokens(3))
	f.refresh(t)

	res := f.coord.SmartSwap(context.Background(), buyYes("10"))

	require.False(t, res.Success)
	assert.Equal(t, domain.ErrKindInsufficientFunds, res.ErrorKind)
	assert.Empty(t, f.router.fetches, "a failed top-up must abort before routing")
}

func TestSmartSwapRouteFailure(t *testing.T) {
	f := setup(t)
	f.fake.SetBalance("0xc1", tokens(5))
	f.refresh(t)
	f.router.fetchErr = errors.New("router service unavailable")

	res := f.coord.SmartSwap(context.Background(), buyYes("5"))

	require.False(t, res.Success)
	assert.Equal(t, domain.ErrKindExternalService, res.ErrorKind)
	assert.Empty(t, f.router.executed)
}

func TestSmartSwapExecutionRejected(t *testing.T) {
	f := setup(t)
	f.fake.SetBalance("0xc1", tokens(5))
	f.refresh(t)
	f.router.execErr = domain.ErrUserRejected

	res := f.coord.SmartSwap(context.Background(), buyYes("5"))

	require.False(t, res.Success)
	assert.Equal(t, domain.ErrKindUserRejected, res.ErrorKind)
}

func TestSmartSwapRevertedExecution(t *testing.T) {
	f := setup(t)
	f.fake.SetBalance("0xc1", tokens(5))
	f.refresh(t)
	f.router.revert = true

	res := f.coord.SmartSwap(context.Background(), buyYes("5"))

	require.False(t, res.Success)
	assert.Equal(t, domain.ErrKindTxFailed, res.ErrorKind)
}

func TestSmartSwapJournaled(t *testing.T) {
	f := setup(t)
	f.fake.SetBalance("0xc1", tokens(5))
	f.refresh(t)

	res := f.coord.SmartSwap(context.Background(), buyYes("5"))

	require.True(t, res.Success)
	require.Len(t, f.journal.recs, 1)
	rec := f.journal.recs[0]
	assert.Equal(t, domain.OpSwap, rec.Kind)
	assert.Equal(t, domain.FamilyCurrency, rec.Family)
	assert.Equal(t, domain.SideYes, rec.Side)
	assert.Equal(t, "5", rec.Amount)
	assert.Equal(t, res.TxHash, rec.TxHash)
	assert.True(t, rec.Success)
}
