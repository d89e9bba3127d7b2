// Package config defines the top-level configuration for the futarchy
// collateral daemon and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/alanyoungcy/futarchybot/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by FUTARCHY_* environment
// variables.
type Config struct {
	Wallet   WalletConfig   `toml:"wallet"`
	Chain    ChainConfig    `toml:"chain"`
	Market   MarketConfig   `toml:"market"`
	Balance  BalanceConfig  `toml:"balance"`
	Supabase SupabaseConfig `toml:"supabase"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	LogLevel string         `toml:"log_level"`
}

// WalletConfig holds Ethereum wallet credentials. Either a raw private key or
// an encrypted key file plus password must be provided.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// ChainConfig holds RPC endpoint and chain parameters.
type ChainConfig struct {
	RPCURL        string `toml:"rpc_url"`
	ChainID       int64  `toml:"chain_id"`
	Confirmations int    `toml:"confirmations"`
}

// MarketConfig holds the per-proposal address book. When MarketID is set and
// Supabase is configured, the addresses are loaded from the market store
// instead and these inline fields are ignored.
type MarketConfig struct {
	MarketID    string       `toml:"market_id"`
	Proposal    string       `toml:"proposal"`
	Router      string       `toml:"router"`
	SwapRouter  string       `toml:"swap_router"`
	SwapSpender string       `toml:"swap_spender"`
	Currency    FamilyConfig `toml:"currency"`
	Company     FamilyConfig `toml:"company"`
}

// FamilyConfig holds the token addresses for one collateral family.
type FamilyConfig struct {
	Base     TokenConfig `toml:"base"`
	YesToken TokenConfig `toml:"yes_token"`
	NoToken  TokenConfig `toml:"no_token"`
	Pool     string      `toml:"pool"`
}

// TokenConfig describes one ERC-20 token.
type TokenConfig struct {
	Address  string `toml:"address"`
	Symbol   string `toml:"symbol"`
	Name     string `toml:"name"`
	Decimals int    `toml:"decimals"`
}

// BalanceConfig holds balance-polling parameters.
type BalanceConfig struct {
	PollInterval duration `toml:"poll_interval"`
}

// SupabaseConfig holds PostgreSQL / Supabase connection parameters. Leave
// DSN and Host empty to run without a database (no market store, no
// operation journal).
type SupabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// Enabled reports whether a database connection is configured.
func (c SupabaseConfig) Enabled() bool {
	return strings.TrimSpace(c.DSN) != "" || strings.TrimSpace(c.Host) != ""
}

// RedisConfig holds Redis connection parameters. Leave Addr empty to run
// without Redis (no snapshot cache, no signal bus, no websocket fan-out).
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// Enabled reports whether Redis is configured.
func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

// S3Config holds S3-compatible object storage parameters for the operation
// journal archiver. Leave Bucket empty to disable archival.
type S3Config struct {
	Endpoint        string   `toml:"endpoint"`
	Region          string   `toml:"region"`
	Bucket          string   `toml:"bucket"`
	AccessKey       string   `toml:"access_key"`
	SecretKey       string   `toml:"secret_key"`
	UseSSL          bool     `toml:"use_ssl"`
	ForcePathStyle  bool     `toml:"force_path_style"`
	ArchiveInterval duration `toml:"archive_interval"`
	Retention       duration `toml:"retention"`
}

// Enabled reports whether archival is configured.
func (c S3Config) Enabled() bool {
	return strings.TrimSpace(c.Bucket) != ""
}

// ServerConfig holds HTTP/websocket server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5s", "1m").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			RPCURL:        "https://rpc.gnosischain.com",
			ChainID:       100,
			Confirmations: 1,
		},
		Balance: BalanceConfig{
			PollInterval: duration{10 * time.Second},
		},
		Supabase: SupabaseConfig{
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Region:          "us-east-1",
			UseSSL:          false,
			ForcePathStyle:  true,
			ArchiveInterval: duration{6 * time.Hour},
			Retention:       duration{30 * 24 * time.Hour},
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found. There are deliberately no
// fallback addresses: a missing address is a configuration error, not an
// invitation to substitute a default deployment.
func (c *Config) Validate() error {
	var problems []string

	if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
		problems = append(problems, "wallet: private_key or encrypted_key_path required")
	}
	if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
		problems = append(problems, "wallet: key_password required with encrypted_key_path")
	}
	if c.Chain.RPCURL == "" {
		problems = append(problems, "chain: rpc_url required")
	}
	if c.Chain.ChainID <= 0 {
		problems = append(problems, "chain: chain_id must be positive")
	}
	if c.Chain.Confirmations < 1 {
		problems = append(problems, "chain: confirmations must be at least 1")
	}

	// When the market comes from the store only the ID is needed here; the
	// loaded MarketConfig is validated after the store fetch.
	if c.Market.MarketID == "" {
		if err := c.Market.Domain().Validate(); err != nil {
			problems = append(problems, err.Error())
		}
	} else if !c.Supabase.Enabled() {
		problems = append(problems, "market: market_id set but supabase is not configured")
	}

	if c.Server.Enabled && (c.Server.Port < 1 || c.Server.Port > 65535) {
		problems = append(problems, fmt.Sprintf("server: port %d out of range", c.Server.Port))
	}
	if !validLogLevels[c.LogLevel] {
		problems = append(problems, fmt.Sprintf("log_level %q not one of debug/info/warn/error", c.LogLevel))
	}

	if len(problems) > 0 {
		return fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Domain converts the TOML market section into the immutable
// domain.MarketConfig consumed by the lifecycle components.
func (m MarketConfig) Domain() domain.MarketConfig {
	return domain.MarketConfig{
		ID:          m.MarketID,
		Proposal:    m.Proposal,
		Router:      m.Router,
		SwapSpender: m.SwapSpender,
		Currency:    m.Currency.domain(),
		Company:     m.Company.domain(),
	}
}

func (f FamilyConfig) domain() domain.FamilyTokens {
	return domain.FamilyTokens{
		Base:     f.Base.domain(),
		YesToken: f.YesToken.domain(),
		NoToken:  f.NoToken.domain(),
		Pool:     f.Pool,
	}
}

func (t TokenConfig) domain() domain.TokenDescriptor {
	return domain.TokenDescriptor{
		Address:  t.Address,
		Symbol:   t.Symbol,
		Name:     t.Name,
		Decimals: t.Decimals,
	}
}
