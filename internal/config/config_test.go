package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func TestDefault_IsValidWithMemory(t *testing.T) {
	cfg := Default()
	cfg.UseMemory = true
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, []string{"jupiter", "raydium"}, cfg.Sources)
	assert.Equal(t, 5*time.Second, cfg.ScanInterval)
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := fromLookup(lookupFrom(map[string]string{
		"SOLANA_RPC_ENDPOINT": "http://localhost:8899",
		"USE_MEMORY":          "true",
		"TRADE_SOURCES":       " Raydium , ",
		"SLIPPAGE_BPS":        "250",
		"SCAN_INTERVAL":       "3s",
		"FEE_RESERVE_SOL":     "0.01",
		"LOG_JSON":            "1",
		"DEXSCREENER_QUERIES": "sol,pump",
		"REDIS_URL":           "   ",
	}))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8899", cfg.RPCEndpoint)
	assert.True(t, cfg.UseMemory)
	assert.Equal(t, []string{"raydium"}, cfg.Sources)
	assert.Equal(t, 250, cfg.SlippageBps)
	assert.Equal(t, 3*time.Second, cfg.ScanInterval)
	assert.Equal(t, 0.01, cfg.FeeReserveSOL)
	assert.True(t, cfg.LogJSON)
	assert.Equal(t, []string{"sol", "pump"}, cfg.SearchQueries)
	assert.Empty(t, cfg.RedisURL, "blank values keep the default")
	assert.NoError(t, cfg.Validate())
}

func TestFromEnv_ReportsEveryMalformedValue(t *testing.T) {
	_, err := fromLookup(lookupFrom(map[string]string{
		"SCAN_INTERVAL": "often",
		"SLIPPAGE_BPS":  "lots",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SCAN_INTERVAL")
	assert.Contains(t, err.Error(), "SLIPPAGE_BPS")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"postgres required", func(c *Config) { c.UseMemory = false }},
		{"no sources", func(c *Config) { c.Sources = nil }},
		{"unknown source", func(c *Config) { c.Sources = []string{"orca"} }},
		{"slippage", func(c *Config) { c.SlippageBps = 0 }},
		{"interval", func(c *Config) { c.MonitorInterval = 0 }},
		{"fee reserve", func(c *Config) { c.FeeReserveSOL = -1 }},
		{"rpc", func(c *Config) { c.RPCEndpoint = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.UseMemory = true
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestUserSecret(t *testing.T) {
	lookup := lookupFrom(map[string]string{"TRADER_SECRET_TG_12345": " secret "})
	assert.Equal(t, "TG_12345", SecretKey("tg:12345"))
	assert.Equal(t, "secret", UserSecret(lookup, "tg:12345"))
	assert.Empty(t, UserSecret(lookup, "other"))
}

func TestLoadDotEnv(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("AUTOTRADER_TEST_A=from-file\nAUTOTRADER_TEST_B=from-file\n"), 0o600))
	t.Setenv("AUTOTRADER_TEST_B", "from-env")

	require.NoError(t, LoadDotEnv(path))
	t.Cleanup(func() { os.Unsetenv("AUTOTRADER_TEST_A") })

	assert.Equal(t, "from-file", os.Getenv("AUTOTRADER_TEST_A"))
	assert.Equal(t, "from-env", os.Getenv("AUTOTRADER_TEST_B"), "existing variables win")
}
