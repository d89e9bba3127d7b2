// Package app wires the collateral lifecycle components to their
// infrastructure (chain client, database, redis, object storage, HTTP
// server) and manages the daemon's run loop.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/futarchybot/internal/approval"
	"github.com/alanyoungcy/futarchybot/internal/balance"
	"github.com/alanyoungcy/futarchybot/internal/collateral"
	"github.com/alanyoungcy/futarchybot/internal/config"
	"github.com/alanyoungcy/futarchybot/internal/domain"
	"github.com/alanyoungcy/futarchybot/internal/events"
	"github.com/alanyoungcy/futarchybot/internal/server"
	"github.com/alanyoungcy/futarchybot/internal/server/handler"
	"github.com/alanyoungcy/futarchybot/internal/server/ws"
	"github.com/alanyoungcy/futarchybot/internal/swap"
)

// busChannelPrefix namespaces lifecycle events on the signal bus.
const busChannelPrefix = "futarchy:"

// App is the root application object. It owns the configuration, logger, and
// cleanup functions run in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates an App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires the dependencies, starts balance polling, the websocket hub, the
// archiver, and the HTTP server, then blocks until the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting daemon", slog.String("log_level", a.cfg.LogLevel))

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, cleanup)

	notifier := events.NewNotifier(a.logger)
	owner := deps.Chain.Owner()

	balances := balance.New(deps.Chain, deps.Market, owner, notifier, deps.SnapshotCache, a.logger)
	gate := approval.NewGate(deps.Chain, deps.Journal, a.logger)
	orch := collateral.New(deps.Chain, gate, deps.Market, balances, notifier, deps.Journal, a.logger)

	var swaps *swap.Coordinator
	if deps.SwapRouter != nil {
		swaps = swap.New(gate, deps.Market, balances, orch, deps.SwapRouter, notifier, deps.Journal, owner, a.logger)
	}

	if deps.SignalBus != nil {
		a.bridgeEvents(ctx, notifier, deps.SignalBus)
	}

	a.logger.Info("lifecycle ready",
		slog.String("owner", owner),
		slog.String("market", deps.Market.ID),
		slog.Bool("journal", deps.Journal != nil),
		slog.Bool("signal_bus", deps.SignalBus != nil),
		slog.Bool("swap_router", deps.SwapRouter != nil),
		slog.Bool("archiver", deps.Archiver != nil),
	)

	g, gctx := errgroup.WithContext(ctx)

	// The first refresh is best-effort: the daemon starts with the empty
	// snapshot and the poll loop catches up.
	if _, err := balances.Refresh(gctx); err != nil {
		a.logger.Warn("initial balance refresh failed", slog.String("error", err.Error()))
	}
	balances.StartPolling(gctx, a.cfg.Balance.PollInterval.Duration)
	a.closers = append(a.closers, balances.StopPolling)

	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, a.logger, ws.Config{
			Owner:     owner,
			StartedAt: time.Now().UTC(),
		})
		g.Go(func() error {
			if err := hub.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	if deps.Archiver != nil {
		g.Go(func() error {
			deps.Archiver.Run(gctx, a.cfg.S3.ArchiveInterval.Duration, a.cfg.S3.Retention.Duration)
			return nil
		})
	}

	if a.cfg.Server.Enabled {
		srv := server.NewServer(
			server.Config{
				Port:        a.cfg.Server.Port,
				CORSOrigins: a.cfg.Server.CORSOrigins,
				APIKey:      a.cfg.Server.APIKey,
			},
			server.Handlers{
				Health:     handler.NewHealthHandler(a.logger, deps.Health),
				Balances:   handler.NewBalanceHandler(balances, deps.Market, a.logger),
				Operations: handler.NewOperationHandler(orch, swaps, deps.Market, deps.Journal, a.logger),
				Markets:    handler.NewMarketHandler(deps.Market, deps.MarketStore, a.logger),
			},
			hub,
			a.logger,
		)
		g.Go(srv.Start)
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	} else {
		g.Go(func() error {
			<-gctx.Done()
			return gctx.Err()
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close tears down all resources in reverse registration order. Safe to call
// multiple times.
func (a *App) Close() {
	a.logger.Info("shutting down daemon")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// bridgeEvents republishes in-process lifecycle events onto the signal bus so
// the websocket hub (and any other process) can observe them. Publish
// failures are logged, never propagated: listeners carry no control-flow
// authority over operations.
func (a *App) bridgeEvents(ctx context.Context, notifier *events.Notifier, bus domain.SignalBus) {
	forward := func(event string) {
		notifier.On(event, func(payload any) {
			body := payload
			if snap, ok := payload.(*domain.BalanceSnapshot); ok {
				body = snapshotPayload(snap)
			}
			data, err := json.Marshal(map[string]any{
				"type":    event,
				"payload": body,
			})
			if err != nil {
				a.logger.Warn("event encode failed", slog.String("event", event))
				return
			}
			if err := bus.Publish(ctx, busChannelPrefix+event, data); err != nil {
				a.logger.Warn("event publish failed",
					slog.String("event", event),
					slog.String("error", err.Error()),
				)
			}
		})
	}

	forward(events.EventBalancesUpdated)
	forward(events.EventOperation)
	forward(events.EventStatus)
	forward(events.EventError)
	forward(events.EventLoading)
}

// snapshotPayload renders a snapshot with string amounts; JSON numbers cannot
// carry uint256 values.
func snapshotPayload(snap *domain.BalanceSnapshot) map[string]any {
	family := func(b domain.FamilyBalance) map[string]string {
		str := func(v *big.Int) string {
			if v == nil {
				return "0"
			}
			return v.String()
		}
		return map[string]string{
			"wallet": str(b.Wallet),
			"yes":    str(b.Positions.YesAmount),
			"no":     str(b.Positions.NoAmount),
		}
	}
	return map[string]any{
		"owner":    snap.Owner,
		"takenAt":  snap.TakenAt,
		"currency": family(snap.Currency),
		"company":  family(snap.Company),
	}
}
