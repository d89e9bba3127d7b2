package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies FUTARCHY_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known FUTARCHY_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "FUTARCHY_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "FUTARCHY_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "FUTARCHY_WALLET_KEY_PASSWORD")

	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, "FUTARCHY_CHAIN_RPC_URL")
	setInt64(&cfg.Chain.ChainID, "FUTARCHY_CHAIN_ID")
	setInt(&cfg.Chain.Confirmations, "FUTARCHY_CHAIN_CONFIRMATIONS")

	// ── Market ──
	setStr(&cfg.Market.MarketID, "FUTARCHY_MARKET_ID")
	setStr(&cfg.Market.Proposal, "FUTARCHY_MARKET_PROPOSAL")
	setStr(&cfg.Market.Router, "FUTARCHY_MARKET_ROUTER")
	setStr(&cfg.Market.SwapRouter, "FUTARCHY_MARKET_SWAP_ROUTER")
	setStr(&cfg.Market.SwapSpender, "FUTARCHY_MARKET_SWAP_SPENDER")

	// ── Balance ──
	setDuration(&cfg.Balance.PollInterval, "FUTARCHY_BALANCE_POLL_INTERVAL")

	// ── Supabase ──
	setStr(&cfg.Supabase.DSN, "FUTARCHY_SUPABASE_DSN")
	setStr(&cfg.Supabase.DSN, "FUTARCHY_SUPABASE_URL") // compatibility alias
	setStr(&cfg.Supabase.Host, "FUTARCHY_SUPABASE_HOST")
	setInt(&cfg.Supabase.Port, "FUTARCHY_SUPABASE_PORT")
	setStr(&cfg.Supabase.Database, "FUTARCHY_SUPABASE_DATABASE")
	setStr(&cfg.Supabase.User, "FUTARCHY_SUPABASE_USER")
	setStr(&cfg.Supabase.Password, "FUTARCHY_SUPABASE_PASSWORD")
	setStr(&cfg.Supabase.SSLMode, "FUTARCHY_SUPABASE_SSLMODE")
	setInt(&cfg.Supabase.PoolMaxConns, "FUTARCHY_SUPABASE_POOL_MAX_CONNS")
	setInt(&cfg.Supabase.PoolMinConns, "FUTARCHY_SUPABASE_POOL_MIN_CONNS")
	setBool(&cfg.Supabase.RunMigrations, "FUTARCHY_SUPABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "FUTARCHY_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "FUTARCHY_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "FUTARCHY_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "FUTARCHY_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "FUTARCHY_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "FUTARCHY_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "FUTARCHY_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "FUTARCHY_S3_REGION")
	setStr(&cfg.S3.Bucket, "FUTARCHY_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "FUTARCHY_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "FUTARCHY_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "FUTARCHY_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "FUTARCHY_S3_FORCE_PATH_STYLE")
	setDuration(&cfg.S3.ArchiveInterval, "FUTARCHY_S3_ARCHIVE_INTERVAL")
	setDuration(&cfg.S3.Retention, "FUTARCHY_S3_RETENTION")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "FUTARCHY_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "FUTARCHY_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "FUTARCHY_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "FUTARCHY_SERVER_API_KEY")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "FUTARCHY_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		_ = dst.UnmarshalText([]byte(v))
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			*dst = out
		}
	}
}
