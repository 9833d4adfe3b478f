package config

import (
	"testing"
	"time"

	"github.com/aristath/divtrack/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8001, cfg.Port)
	assert.Equal(t, domain.CurrencyDKK, cfg.BaseCurrency)
	assert.Equal(t, domain.CurrencyUSD, cfg.FXDefaultCurrency)
	assert.Equal(t, time.Hour, cfg.FXRateTTL)
	assert.Equal(t, 4*time.Second, cfg.FXTimeout)
	assert.Equal(t, 8, cfg.ProviderConcurrency)
	assert.Equal(t, MissingPriceZero, cfg.MissingPricePolicy)
	assert.Equal(t, 30*time.Second, cfg.LiveInterval)
	assert.Equal(t, "0 */30 * * * *", cfg.Schedules.FXWarmup)
	assert.Empty(t, cfg.AuthJWTSecret)
	assert.False(t, cfg.Backup.Enabled())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("PORT", "9100")
	t.Setenv("BASE_CURRENCY", "eur")
	t.Setenv("FX_RATE_TTL", "30m")
	t.Setenv("FX_TIMEOUT", "2")
	t.Setenv("MISSING_PRICE_POLICY", "COST_BASIS")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("BACKUP_BUCKET", "ledger")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, domain.CurrencyEUR, cfg.BaseCurrency)
	assert.Equal(t, 30*time.Minute, cfg.FXRateTTL)
	assert.Equal(t, 2*time.Second, cfg.FXTimeout)
	assert.Equal(t, MissingPriceCostBasis, cfg.MissingPricePolicy)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
	assert.True(t, cfg.Backup.Enabled())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Port:                8001,
			BaseCurrency:        domain.CurrencyDKK,
			FXDefaultCurrency:   domain.CurrencyUSD,
			FXRateTTL:           time.Hour,
			FXTimeout:           time.Second,
			ProviderTimeout:     time.Second,
			ProviderConcurrency: 1,
			MissingPricePolicy:  MissingPriceZero,
			LiveInterval:        time.Second,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"unsupported base", func(c *Config) { c.BaseCurrency = "XYZ" }, true},
		{"unsupported default", func(c *Config) { c.FXDefaultCurrency = "XYZ" }, true},
		{"zero ttl", func(c *Config) { c.FXRateTTL = 0 }, true},
		{"zero timeout", func(c *Config) { c.FXTimeout = 0 }, true},
		{"zero concurrency", func(c *Config) { c.ProviderConcurrency = 0 }, true},
		{"negative rate limit", func(c *Config) { c.ProviderRateLimit = -1 }, true},
		{"unknown policy", func(c *Config) { c.MissingPricePolicy = "guess" }, true},
		{"zero live interval", func(c *Config) { c.LiveInterval = 0 }, true},
		{"bad port", func(c *Config) { c.Port = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
