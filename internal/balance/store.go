// Package balance maintains the last-known wallet and position-token
// balances for both collateral families and refreshes them from the chain.
package balance

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/futarchybot/internal/domain"
	"github.com/alanyoungcy/futarchybot/internal/events"
)

// minPollInterval clamps StartPolling so a misconfigured interval cannot
// hammer the RPC endpoint.
const minPollInterval = time.Second

// Store owns the current BalanceSnapshot. It is the only mutable shared
// state in the lifecycle core: every refresh builds a fresh snapshot and
// replaces the stored one wholesale, so readers never observe a torn update.
type Store struct {
	chain    domain.ChainReader
	market   domain.MarketConfig
	owner    string
	notifier *events.Notifier
	cache    domain.SnapshotCache // optional
	logger   *slog.Logger

	mu   sync.RWMutex
	snap *domain.BalanceSnapshot

	pollMu   sync.Mutex
	pollStop chan struct{}
	pollDone chan struct{}
}

// New creates a Store seeded with an empty snapshot for the owner. cache may
// be nil.
func New(chain domain.ChainReader, market domain.MarketConfig, owner string, notifier *events.Notifier, cache domain.SnapshotCache, logger *slog.Logger) *Store {
	return &Store{
		chain:    chain,
		market:   market,
		owner:    owner,
		notifier: notifier,
		cache:    cache,
		logger:   logger.With(slog.String("component", "balance")),
		snap:     domain.EmptySnapshot(owner),
	}
}

// Snapshot returns the last-known snapshot. It never blocks on the network
// and never fails; before the first refresh it returns the empty snapshot.
func (s *Store) Snapshot() *domain.BalanceSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Refresh queries all six balances (two base tokens, two YES positions, two
// NO positions) concurrently and replaces the stored snapshot. A single
// failed read degrades to a zero balance for that slot rather than aborting
// the refresh: partial data beats total failure. A wholesale failure (e.g.
// context cancelled) retains the previous snapshot, since a transient RPC
// error must never render as "you have nothing".
func (s *Store) Refresh(ctx context.Context) (*domain.BalanceSnapshot, error) {
	next := &domain.BalanceSnapshot{
		Owner:   s.owner,
		TakenAt: time.Now().UTC(),
		Currency: domain.FamilyBalance{Positions: domain.PositionPair{
			YesAddress: s.market.Currency.YesToken.Address,
			NoAddress:  s.market.Currency.NoToken.Address,
		}},
		Company: domain.FamilyBalance{Positions: domain.PositionPair{
			YesAddress: s.market.Company.YesToken.Address,
			NoAddress:  s.market.Company.NoToken.Address,
		}},
	}

	g, gctx := errgroup.WithContext(ctx)
	read := func(token, slot string, dst **big.Int) {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			*dst = s.readSlot(gctx, token, slot)
			return nil
		})
	}

	read(s.market.Currency.Base.Address, "currency.wallet", &next.Currency.Wallet)
	read(s.market.Currency.YesToken.Address, "currency.yes", &next.Currency.Positions.YesAmount)
	read(s.market.Currency.NoToken.Address, "currency.no", &next.Currency.Positions.NoAmount)
	read(s.market.Company.Base.Address, "company.wallet", &next.Company.Wallet)
	read(s.market.Company.YesToken.Address, "company.yes", &next.Company.Positions.YesAmount)
	read(s.market.Company.NoToken.Address, "company.no", &next.Company.Positions.NoAmount)

	if err := g.Wait(); err != nil {
		s.logger.Warn("refresh aborted, keeping previous snapshot",
			slog.String("error", err.Error()),
		)
		return s.Snapshot(), fmt.Errorf("balance: refresh: %w", err)
	}

	s.mu.Lock()
	s.snap = next
	s.mu.Unlock()

	if s.cache != nil {
		if err := s.cache.SetSnapshot(ctx, next); err != nil {
			s.logger.Warn("snapshot cache write failed", slog.String("error", err.Error()))
		}
	}
	s.notifier.Emit(events.EventBalancesUpdated, next)
	return next, nil
}

// readSlot fetches one balance, degrading to zero on a missing address or a
// failed read.
func (s *Store) readSlot(ctx context.Context, token, slot string) *big.Int {
	if token == "" {
		s.logger.Debug("no token configured for slot, using zero", slog.String("slot", slot))
		return new(big.Int)
	}
	bal, err := s.chain.TokenBalance(ctx, token, s.owner)
	if err != nil {
		s.logger.Warn("balance read failed, using zero",
			slog.String("slot", slot),
			slog.String("token", token),
			slog.String("error", err.Error()),
		)
		return new(big.Int)
	}
	return bal
}

// StartPolling begins a recurring Refresh at the given interval, clamped to
// at least one second. Calling StartPolling while already polling restarts
// the loop with the new interval.
func (s *Store) StartPolling(ctx context.Context, interval time.Duration) {
	if interval < minPollInterval {
		interval = minPollInterval
	}

	s.pollMu.Lock()
	defer s.pollMu.Unlock()
	s.stopLocked()

	stop := make(chan struct{})
	done := make(chan struct{})
	s.pollStop = stop
	s.pollDone = done

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				if _, err := s.Refresh(ctx); err != nil {
					s.logger.Debug("poll refresh failed", slog.String("error", err.Error()))
				}
			}
		}
	}()

	s.logger.Info("balance polling started", slog.Duration("interval", interval))
}

// StopPolling halts the polling loop and waits for it to exit. Safe to call
// when not polling, and safe to call repeatedly.
func (s *Store) StopPolling() {
	s.pollMu.Lock()
	defer s.pollMu.Unlock()
	s.stopLocked()
}

func (s *Store) stopLocked() {
	if s.pollStop == nil {
		return
	}
	close(s.pollStop)
	<-s.pollDone
	s.pollStop = nil
	s.pollDone = nil
}
