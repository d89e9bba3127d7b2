package approval

import (
	"context"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/futarchybot/internal/chain/chaintest"
	"github.com/alanyoungcy/futarchybot/internal/domain"
)

const (
	testOwner   = "0x00000000000000000000000000000000000000aa"
	testToken   = "0x00000000000000000000000000000000000000t0"
	testSpender = "0x00000000000000000000000000000000000000s0"
)

func newGate(t *testing.T) (*Gate, *chaintest.FakeClient) {
	t.Helper()
	fake := chaintest.NewFakeClient(testOwner, domain.MarketConfig{})
	return NewGate(fake, nil, slog.New(slog.DiscardHandler)), fake
}

type memJournal struct {
	recs []domain.OperationRecord
}

func (m *memJournal) Insert(_ context.Context, rec domain.OperationRecord) error {
	m.recs = append(m.recs, rec)
	return nil
}

func (m *memJournal) ListRecent(context.Context, int) ([]domain.OperationRecord, error) {
	return nil, nil
}

func (m *memJournal) ListBefore(context.Context, time.Time) ([]domain.OperationRecord, error) {
	return nil, nil
}

func (m *memJournal) DeleteBefore(context.Context, time.Time) (int64, error) { return 0, nil }

func TestFastPathSendsNoTransaction(t *testing.T) {
	gate, fake := newGate(t)
	fake.SetAllowance(testToken, testSpender, big.NewInt(1000))

	res := gate.EnsureAllowance(context.Background(), testToken, testSpender, big.NewInt(100))

	require.True(t, res.Success)
	assert.Empty(t, fake.Calls, "sufficient allowance must be side-effect free")
}

func TestZeroAllowanceSingleApproval(t *testing.T) {
	gate, fake := newGate(t)

	res := gate.EnsureAllowance(context.Background(), testToken, testSpender, big.NewInt(100))

	require.True(t, res.Success)
	require.Equal(t, []string{"approve"}, fake.CallMethods(), "zero allowance needs no reset step")
	assert.Equal(t, 0, fake.Calls[0].Amount.Cmp(domain.MaxUint256), "raise goes to max-uint256")

	got, err := fake.Allowance(context.Background(), testToken, testOwner, testSpender)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Cmp(domain.MaxUint256))
}

func TestNonzeroInsufficientAllowanceResetsThenRaises(t *testing.T) {
	gate, fake := newGate(t)
	fake.SetAllowance(testToken, testSpender, big.NewInt(50))

	res := gate.EnsureAllowance(context.Background(), testToken, testSpender, big.NewInt(100))

	require.True(t, res.Success)
	require.Equal(t, []string{"approve", "approve"}, fake.CallMethods())
	assert.Zero(t, fake.Calls[0].Amount.Sign(), "first approval resets to zero")
	assert.Equal(t, 0, fake.Calls[1].Amount.Cmp(domain.MaxUint256), "second raises to max")
}

func TestIdempotentAfterMaxRaise(t *testing.T) {
	gate, fake := newGate(t)

	first := gate.EnsureAllowance(context.Background(), testToken, testSpender, big.NewInt(100))
	require.True(t, first.Success)
	submitted := len(fake.Calls)

	second := gate.EnsureAllowance(context.Background(), testToken, testSpender, big.NewInt(100))
	require.True(t, second.Success)
	assert.Equal(t, submitted, len(fake.Calls), "second call must issue zero transactions")
}

func TestApprovalOutcomeJournaled(t *testing.T) {
	fake := chaintest.NewFakeClient(testOwner, domain.MarketConfig{})
	journal := &memJournal{}
	gate := NewGate(fake, journal, slog.New(slog.DiscardHandler))

	res := gate.EnsureAllowance(context.Background(), testToken, testSpender, big.NewInt(100))

	require.True(t, res.Success)
	require.Len(t, journal.recs, 1)
	got := journal.recs[0]
	assert.Equal(t, domain.OpApproval, got.Kind)
	assert.Equal(t, testOwner, got.Owner)
	assert.Equal(t, "100", got.Amount)
	assert.True(t, got.Success)
	assert.NotEmpty(t, got.TxHash)

	second := gate.EnsureAllowance(context.Background(), testToken, testSpender, big.NewInt(100))
	require.True(t, second.Success)
	assert.Len(t, journal.recs, 1, "the fast path records nothing")
}

func TestRejectedApprovalJournaled(t *testing.T) {
	fake := chaintest.NewFakeClient(testOwner, domain.MarketConfig{})
	fake.SubmitErr["approve"] = domain.ErrUserRejected
	journal := &memJournal{}
	gate := NewGate(fake, journal, slog.New(slog.DiscardHandler))

	res := gate.EnsureAllowance(context.Background(), testToken, testSpender, big.NewInt(100))

	require.False(t, res.Success)
	require.Len(t, journal.recs, 1)
	assert.False(t, journal.recs[0].Success)
	assert.Equal(t, domain.ErrKindApprovalRejected, journal.recs[0].ErrorKind)
}

func TestUserRejectionClassified(t *testing.T) {
	gate, fake := newGate(t)
	fake.SubmitErr["approve"] = domain.ErrUserRejected

	res := gate.EnsureAllowance(context.Background(), testToken, testSpender, big.NewInt(100))

	require.False(t, res.Success)
	assert.Equal(t, domain.ErrKindApprovalRejected, res.ErrorKind)
}

func TestRevertedApprovalClassified(t *testing.T) {
	gate, fake := newGate(t)
	fake.RevertMethod["approve"] = true

	res := gate.EnsureAllowance(context.Background(), testToken, testSpender, big.NewInt(100))

	require.False(t, res.Success)
	assert.Equal(t, domain.ErrKindApprovalFailed, res.ErrorKind)
}
