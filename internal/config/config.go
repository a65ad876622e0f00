// Package config loads runtime configuration from the environment, an
// optional .env file and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"solana-autotrader/internal/dedup"
	"solana-autotrader/internal/engine"
	"solana-autotrader/internal/execution"
	"solana-autotrader/internal/execution/jupiter"
	"solana-autotrader/internal/execution/raydium"
	"solana-autotrader/internal/feed"
	"solana-autotrader/internal/monitor"
	"solana-autotrader/internal/notify"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// SecretEnvPrefix prefixes per-user base58 wallet secrets,
// e.g. TRADER_SECRET_ALICE.
const SecretEnvPrefix = "TRADER_SECRET_"

// Config is the full runtime configuration of the trader binary.
type Config struct {
	// Solana
	RPCEndpoint string

	// Storage. UseMemory ignores the DSNs.
	UseMemory     bool
	PostgresDSN   string
	ClickhouseDSN string
	RedisURL      string
	DedupTTL      time.Duration

	// Execution
	Sources     []string // enabled trade sources, in registration order
	JupiterURL  string
	RaydiumURL  string
	SlippageBps int

	// Market data
	DexScreenerURL string
	SearchQueries  []string
	StreamURL      string // empty disables the price stream

	// Engine
	ScanInterval    time.Duration
	RefreshInterval time.Duration
	MonitorInterval time.Duration
	CleanupInterval time.Duration
	FeeReserveSOL   float64
	ScanConcurrency int

	// Notifications
	TelegramToken string
	TelegramURL   string

	// Status API
	APIAddr string

	// Logging
	LogLevel string
	LogJSON  bool

	// Optional user registered at startup when the store has none.
	BootstrapUser     string
	BootstrapStrategy string // JSON StrategyConfig
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		RPCEndpoint:     "https://api.mainnet-beta.solana.com",
		DedupTTL:        dedup.DefaultTTL,
		Sources:         []string{jupiter.Name, raydium.Name},
		JupiterURL:      jupiter.DefaultBaseURL,
		RaydiumURL:      raydium.DefaultBaseURL,
		SlippageBps:     execution.DefaultSlippageBps,
		DexScreenerURL:  feed.DefaultDexScreenerURL,
		SearchQueries:   []string{feed.DefaultSearchQuery},
		ScanInterval:    engine.DefaultScanInterval,
		RefreshInterval: engine.DefaultRefreshInterval,
		MonitorInterval: monitor.DefaultInterval,
		CleanupInterval: engine.DefaultCleanupInterval,
		FeeReserveSOL:   engine.DefaultFeeReserveSOL,
		ScanConcurrency: engine.DefaultScanConcurrency,
		TelegramURL:     notify.DefaultTelegramURL,
		APIAddr:         ":8080",
		LogLevel:        "info",
	}
}

// LoadDotEnv loads path into the process environment without overriding
// variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// FromEnv returns Default overridden by environment variables.
func FromEnv() (Config, error) {
	return fromLookup(os.LookupEnv)
}

func fromLookup(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	r := envReader{lookup: lookup}

	r.str("SOLANA_RPC_ENDPOINT", &cfg.RPCEndpoint)
	r.boolean("USE_MEMORY", &cfg.UseMemory)
	r.str("POSTGRES_DSN", &cfg.PostgresDSN)
	r.str("CLICKHOUSE_DSN", &cfg.ClickhouseDSN)
	r.str("REDIS_URL", &cfg.RedisURL)
	r.duration("DEDUP_TTL", &cfg.DedupTTL)

	r.list("TRADE_SOURCES", &cfg.Sources)
	r.str("JUPITER_URL", &cfg.JupiterURL)
	r.str("RAYDIUM_URL", &cfg.RaydiumURL)
	r.integer("SLIPPAGE_BPS", &cfg.SlippageBps)

	r.str("DEXSCREENER_URL", &cfg.DexScreenerURL)
	r.list("DEXSCREENER_QUERIES", &cfg.SearchQueries)
	r.str("PRICE_STREAM_URL", &cfg.StreamURL)

	r.duration("SCAN_INTERVAL", &cfg.ScanInterval)
	r.duration("REFRESH_INTERVAL", &cfg.RefreshInterval)
	r.duration("MONITOR_INTERVAL", &cfg.MonitorInterval)
	r.duration("CLEANUP_INTERVAL", &cfg.CleanupInterval)
	r.float("FEE_RESERVE_SOL", &cfg.FeeReserveSOL)
	r.integer("SCAN_CONCURRENCY", &cfg.ScanConcurrency)

	r.str("TELEGRAM_BOT_TOKEN", &cfg.TelegramToken)
	r.str("TELEGRAM_API_URL", &cfg.TelegramURL)

	r.str("API_ADDR", &cfg.APIAddr)
	r.str("LOG_LEVEL", &cfg.LogLevel)
	r.boolean("LOG_JSON", &cfg.LogJSON)

	r.str("BOOTSTRAP_USER", &cfg.BootstrapUser)
	r.str("BOOTSTRAP_STRATEGY", &cfg.BootstrapStrategy)

	if len(r.errs) > 0 {
		return cfg, errors.Join(r.errs...)
	}
	return cfg, nil
}

// Validate checks the configuration for values the trader cannot run with.
func (c Config) Validate() error {
	if c.RPCEndpoint == "" {
		return fmt.Errorf("%w: rpc endpoint is required", ErrInvalidConfig)
	}
	if !c.UseMemory && c.PostgresDSN == "" {
		return fmt.Errorf("%w: postgres dsn is required (or use memory storage)", ErrInvalidConfig)
	}
	if len(c.Sources) == 0 {
		return fmt.Errorf("%w: at least one trade source is required", ErrInvalidConfig)
	}
	for _, s := range c.Sources {
		if s != jupiter.Name && s != raydium.Name {
			return fmt.Errorf("%w: unknown trade source %q", ErrInvalidConfig, s)
		}
	}
	if c.SlippageBps <= 0 || c.SlippageBps > 10_000 {
		return fmt.Errorf("%w: slippage must be within (0, 10000] bps", ErrInvalidConfig)
	}
	for name, d := range map[string]time.Duration{
		"scan interval":    c.ScanInterval,
		"refresh interval": c.RefreshInterval,
		"monitor interval": c.MonitorInterval,
		"cleanup interval": c.CleanupInterval,
		"dedup ttl":        c.DedupTTL,
	} {
		if d <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, name)
		}
	}
	if c.FeeReserveSOL < 0 {
		return fmt.Errorf("%w: fee reserve must be >= 0", ErrInvalidConfig)
	}
	return nil
}

// SecretKey maps a user ID to its environment suffix: upper case with every
// non-alphanumeric rune replaced by '_'.
func SecretKey(userID string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, userID)
}

// UserSecret returns the base58 wallet secret for userID, or "".
func UserSecret(lookup func(string) (string, bool), userID string) string {
	v, _ := lookup(SecretEnvPrefix + SecretKey(userID))
	return strings.TrimSpace(v)
}

// envReader collects parse errors so every malformed variable is reported.
type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (r *envReader) get(key string) (string, bool) {
	v, ok := r.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (r *envReader) str(key string, dst *string) {
	if v, ok := r.get(key); ok {
		*dst = v
	}
}

func (r *envReader) list(key string, dst *[]string) {
	v, ok := r.get(key)
	if !ok {
		return
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(strings.ToLower(p)); p != "" {
			out = append(out, p)
		}
	}
	*dst = out
}

func (r *envReader) boolean(key string, dst *bool) {
	if v, ok := r.get(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = b
	}
}

func (r *envReader) integer(key string, dst *int) {
	if v, ok := r.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}
}

func (r *envReader) float(key string, dst *float64) {
	if v, ok := r.get(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = f
	}
}

func (r *envReader) duration(key string, dst *time.Duration) {
	if v, ok := r.get(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = d
	}
}
