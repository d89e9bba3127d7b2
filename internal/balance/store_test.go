package balance

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

	"github.com/alanyoungcy/futarchybot/internal/domain"
	"github.com/alanyoungcy/futarchybot/internal/events"
)

const testOwner = "0x00000000000000000000000000000000000000aa"

func testMarket() domain.MarketConfig {
	return domain.MarketConfig{
		ID:       "prop-1",
		Proposal: "0x1000000000000000000000000000000000000001",
		Router:   "0x1000000000000000000000000000000000000002",
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

// fakeReader serves balances from a map; tokens in failing error instead.
type fakeReader struct {
	mu       sync.Mutex
	balances map[string]*big.Int
	failing  map[string]bool
	reads    int
}

func (f *fakeReader) TokenBalance(_ context.Context, token, _ string) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.failing[token] {
		return nil, errors.New("rpc timeout")
	}
	if b, ok := f.balances[token]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

func (f *fakeReader) Allowance(context.Context, string, string, string) (*big.Int, error) {
	return new(big.Int), nil
}

func newStore(t *testing.T, reader *fakeReader) (*Store, *events.Notifier) {
	t.Helper()
	n := events.NewNotifier(slog.New(slog.DiscardHandler))
	return New(reader, testMarket(), testOwner, n, nil, slog.New(slog.DiscardHandler)), n
}

func TestRefreshReadsAllSixSlots(t *testing.T) {
	reader := &fakeReader{balances: map[string]*big.Int{
		"0xc0": big.NewInt(10), "0xc1": big.NewInt(1), "0xc2": big.NewInt(2),
		"0xd0": big.NewInt(20), "0xd1": big.NewInt(3), "0xd2": big.NewInt(4),
	}}
	store, _ := newStore(t, reader)

	snap, err := store.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 6, reader.reads)
	assert.Equal(t, "10", snap.Currency.Wallet.String())
	assert.Equal(t, "1", snap.Currency.Positions.YesAmount.String())
	assert.Equal(t, "2", snap.Currency.Positions.NoAmount.String())
	assert.Equal(t, "20", snap.Company.Wallet.String())
	assert.Equal(t, "3", snap.Company.Positions.YesAmount.String())
	assert.Equal(t, "4", snap.Company.Positions.NoAmount.String())
}

func TestRefreshDegradesFailedSlotToZero(t *testing.T) {
	reader := &fakeReader{
		balances: map[string]*big.Int{"0xc0": big.NewInt(10), "0xc1": big.NewInt(5)},
		failing:  map[string]bool{"0xc2": true},
	}
	store, _ := newStore(t, reader)

	snap, err := store.Refresh(context.Background())
	require.NoError(t, err, "one failed slot must not abort the refresh")
	assert.Equal(t, "10", snap.Currency.Wallet.String())
	assert.Equal(t, "5", snap.Currency.Positions.YesAmount.String())
	assert.Equal(t, "0", snap.Currency.Positions.NoAmount.String())
}

func TestRefreshKeepsPreviousSnapshotOnAbort(t *testing.T) {
	reader := &fakeReader{balances: map[string]*big.Int{"0xc0": big.NewInt(42)}}
	store, _ := newStore(t, reader)

	_, err := store.Refresh(context.Background())
	require.NoError(t, err)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	snap, err := store.Refresh(cancelled)
	assert.Error(t, err)
	assert.Equal(t, "42", snap.Currency.Wallet.String(), "stale data beats zeroes")
	assert.Equal(t, "42", store.Snapshot().Currency.Wallet.String())
}

func TestRefreshEmitsBalancesUpdated(t *testing.T) {
	reader := &fakeReader{balances: map[string]*big.Int{}}
	store, notifier := newStore(t, reader)

	var got *domain.BalanceSnapshot
	notifier.On(events.EventBalancesUpdated, func(p any) {
		got, _ = p.(*domain.BalanceSnapshot)
	})

	snap, err := store.Refresh(context.Background())
	require.NoError(t, err)
	assert.Same(t, snap, got)
}

func TestSnapshotBeforeFirstRefreshIsEmpty(t *testing.T) {
	store, _ := newStore(t, &fakeReader{})
	snap := store.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, "0", snap.Currency.Wallet.String())
	assert.Equal(t, "0", snap.Company.Positions.YesAmount.String())
}

func TestStopPollingIsIdempotent(t *testing.T) {
	store, _ := newStore(t, &fakeReader{})
	store.StopPolling() // never started

	store.StartPolling(context.Background(), 10*time.Millisecond)
	store.StopPolling()
	store.StopPolling()
}

func TestPollingRefreshes(t *testing.T) {
	reader := &fakeReader{balances: map[string]*big.Int{}}
	store, _ := newStore(t, reader)

	store.StartPolling(context.Background(), time.Millisecond) // clamped to 1s
	defer store.StopPolling()

	// The clamp means no tick can have fired yet; reads only happen on tick.
	time.Sleep(20 * time.Millisecond)
	reader.mu.Lock()
	reads := reader.reads
	reader.mu.Unlock()
	assert.Zero(t, reads, "interval below the clamp must not hammer the reader")
}

func TestDerivedQuantities(t *testing.T) {
	pair := domain.PositionPair{YesAmount: big.NewInt(7), NoAmount: big.NewInt(3)}
	assert.Equal(t, "4", pair.NetPosition().String())
	assert.Equal(t, domain.SideYes, pair.SurplusSide())
	assert.Equal(t, "3", pair.AvailableForRedeem().String())

	inverted := domain.PositionPair{YesAmount: big.NewInt(1), NoAmount: big.NewInt(9)}
	assert.Equal(t, domain.SideNo, inverted.SurplusSide())
	assert.Equal(t, "1", inverted.AvailableForRedeem().String())

	fb := domain.FamilyBalance{Positions: pair}
	assert.Equal(t, "7", fb.AvailableForSwap(domain.SideYes).String())
	assert.Equal(t, "3", fb.AvailableForSwap(domain.SideNo).String())
}
