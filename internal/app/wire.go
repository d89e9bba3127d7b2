package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/futarchybot/internal/blob/s3"
	"github.com/alanyoungcy/futarchybot/internal/cache/redis"
	"github.com/alanyoungcy/futarchybot/internal/chain"
	"github.com/alanyoungcy/futarchybot/internal/config"
	"github.com/alanyoungcy/futarchybot/internal/domain"
	"github.com/alanyoungcy/futarchybot/internal/store/postgres"
)

// Dependencies bundles the infrastructure the daemon runs on. Optional
// components (database, redis, object storage) are nil when not configured;
// the lifecycle core works without them.
type Dependencies struct {
	Chain  *chain.Client
	Market domain.MarketConfig

	// Persistence (optional).
	MarketStore domain.MarketStore
	Journal     domain.OperationStore

	// Redis (optional).
	SnapshotCache domain.SnapshotCache
	SignalBus     domain.SignalBus

	// Object storage (optional, requires the journal).
	Archiver *s3blob.Archiver

	// Swap router (optional).
	SwapRouter domain.SwapRouter

	// Health maps configured dependencies to their connectivity probes,
	// surfaced by the health endpoint.
	Health map[string]func(context.Context) error
}

// Wire constructs the concrete infrastructure from configuration and returns
// it with a cleanup function to be called on shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Health: make(map[string]func(context.Context) error),
	}

	// --- Wallet and chain client ---
	key, err := chain.LoadKey(chain.KeySource{
		RawPrivateKey:    cfg.Wallet.PrivateKey,
		EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
		KeyPassword:      cfg.Wallet.KeyPassword,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("wire: wallet key: %w", err)
	}
	signer, err := chain.NewSigner(key, cfg.Chain.ChainID)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: signer: %w", err)
	}
	chainClient, err := chain.Dial(ctx, chain.Config{
		RPCURL:        cfg.Chain.RPCURL,
		Confirmations: cfg.Chain.Confirmations,
	}, signer, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: chain: %w", err)
	}
	closers = append(closers, chainClient.Close)
	deps.Chain = chainClient

	// --- PostgreSQL / Supabase ---
	if cfg.Supabase.Enabled() {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Supabase.DSN,
			Host:     cfg.Supabase.Host,
			Port:     cfg.Supabase.Port,
			Database: cfg.Supabase.Database,
			User:     cfg.Supabase.User,
			Password: cfg.Supabase.Password,
			SSLMode:  cfg.Supabase.SSLMode,
			MaxConns: cfg.Supabase.PoolMaxConns,
			MinConns: cfg.Supabase.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Supabase.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.MarketStore = postgres.NewMarketStore(pool)
		deps.Journal = postgres.NewOperationStore(pool)
		deps.Health["postgres"] = pgClient.Ping
	}

	// --- Market configuration ---
	market, err := resolveMarket(ctx, cfg, deps.MarketStore)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	deps.Market = market
	chainClient.BindRouter(market.Router)

	// --- Redis ---
	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.SnapshotCache = redis.NewSnapshotCache(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.Health["redis"] = redisClient.Ping
	}

	// --- S3 archival ---
	if cfg.S3.Enabled() {
		if deps.Journal == nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3 archival requires supabase (nothing to archive)")
		}
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), deps.Journal, logger)
		deps.Health["s3"] = s3Client.Health
	}

	// --- External swap router ---
	if cfg.Market.SwapRouter != "" {
		router, err := chain.NewUniV2Router(chainClient, chain.SwapRouterConfig{
			Address: cfg.Market.SwapRouter,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: swap router: %w", err)
		}
		deps.SwapRouter = router
	}

	return deps, cleanup, nil
}

// resolveMarket loads the active market from the store when market_id is set,
// otherwise from the inline TOML section. Either way the result must pass
// validation: there are no fallback addresses.
func resolveMarket(ctx context.Context, cfg *config.Config, store domain.MarketStore) (domain.MarketConfig, error) {
	var market domain.MarketConfig
	if cfg.Market.MarketID != "" {
		if store == nil {
			return domain.MarketConfig{}, fmt.Errorf("wire: market %q: %w: market store", cfg.Market.MarketID, domain.ErrConfigMissing)
		}
		m, err := store.Get(ctx, cfg.Market.MarketID)
		if err != nil {
			return domain.MarketConfig{}, fmt.Errorf("wire: loading market %q: %w", cfg.Market.MarketID, err)
		}
		market = m
	} else {
		market = cfg.Market.Domain()
	}
	if err := market.Validate(); err != nil {
		return domain.MarketConfig{}, fmt.Errorf("wire: %w", err)
	}
	return market, nil
}
