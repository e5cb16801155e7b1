package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/aitrader/market"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.NotNil(t, cfg)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 3, cfg.Gateway.Retry.MaxAttempts)
	require.Len(t, cfg.Models, 2)
	assert.Equal(t, 10000.0, cfg.Models[0].InitialCash)
	assert.True(t, cfg.Models[0].IsEnabled())
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "missing journal dir",
			mutate:  func(c *Config) { c.Journal.Dir = "" },
			wantErr: true,
			errMsg:  "journal.dir is required",
		},
		{
			name:    "missing prices",
			mutate:  func(c *Config) { c.Market.Prices = "" },
			wantErr: true,
			errMsg:  "market.prices is required",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Log.Level = "loud" },
			wantErr: true,
			errMsg:  "log.level",
		},
		{
			name:    "zero attempts",
			mutate:  func(c *Config) { c.Gateway.Retry.MaxAttempts = 0 },
			wantErr: true,
			errMsg:  "gateway.retry.max_attempts must be at least 1",
		},
		{
			name:    "bad call timeout",
			mutate:  func(c *Config) { c.Gateway.CallTimeout = "soon" },
			wantErr: true,
			errMsg:  "gateway.call_timeout is not a duration",
		},
		{
			name:    "no models",
			mutate:  func(c *Config) { c.Models = nil },
			wantErr: true,
			errMsg:  "models must list at least one model",
		},
		{
			name:    "duplicate signature",
			mutate:  func(c *Config) { c.Models[1].Signature = c.Models[0].Signature },
			wantErr: true,
			errMsg:  "models[1].signature duplicates",
		},
		{
			name:    "non-positive cash",
			mutate:  func(c *Config) { c.Models[0].InitialCash = 0 },
			wantErr: true,
			errMsg:  "models[0].initial_cash must be positive",
		},
		{
			name:    "zero steps",
			mutate:  func(c *Config) { c.Models[0].MaxStepsPerDay = 0 },
			wantErr: true,
			errMsg:  "models[0].max_steps_per_day must be positive",
		},
		{
			name:    "inverted date range",
			mutate:  func(c *Config) { c.Models[0].DateRange = DateRange{Start: "2025-10-31", End: "2025-10-01"} },
			wantErr: true,
			errMsg:  "models[0].date_range",
		},
		{
			name:    "unknown decision type",
			mutate:  func(c *Config) { c.Models[0].Decision.Type = "oracle" },
			wantErr: true,
			errMsg:  "models[0].decision.type",
		},
		{
			name:    "openai without model",
			mutate:  func(c *Config) { c.Models[0].Decision.Model = "" },
			wantErr: true,
			errMsg:  "models[0].decision.model is required",
		},
		{
			name:    "fraction above one",
			mutate:  func(c *Config) { c.Models[1].Decision.Fraction = 1.5 },
			wantErr: true,
			errMsg:  "models[1].decision.fraction",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalid)
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name string
		ext  string
	}{
		{"json format", ".json"},
		{"yaml format", ".yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			path := filepath.Join(tmpDir, "test"+tt.ext)

			err := cfg.SaveToFile(path)
			require.NoError(t, err)

			_, err = os.Stat(path)
			require.NoError(t, err)

			loaded, err := LoadFromFile(path)
			require.NoError(t, err)

			assert.Equal(t, cfg.Journal, loaded.Journal)
			assert.Equal(t, cfg.Market, loaded.Market)
			assert.Equal(t, cfg.Gateway, loaded.Gateway)
			assert.Equal(t, cfg.Models, loaded.Models)
		})
	}
}

func TestLoadInvalidFile(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path.yaml")
	assert.Error(t, err)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("journal:\n  dir: out\n"), 0644))

	_, err := LoadFromFile(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestLoadYAML(t *testing.T) {
	doc := `
journal:
  dir: ./out
market:
  prices: ./prices/*.csv
  symbols: [AAPL]
gateway:
  rate_per_minute: 60
  call_timeout: 2s
  retry:
    max_attempts: 4
    initial_backoff: 100ms
    max_backoff: 1s
    multiplier: 3
run:
  parallelism: 2
  day_timeout: 30s
models:
  - signature: holder
    enabled: false
    initial_cash: 5000
    max_steps_per_day: 5
    date_range: {start: "2025-10-01", end: "2025-10-03"}
    decision: {type: hold}
`
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.Gateway.CallTimeoutDuration())
	assert.Equal(t, 30*time.Second, cfg.Run.DayTimeoutDuration())

	p := cfg.Gateway.Retry.Policy()
	assert.Equal(t, 4, p.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, p.InitialBackoff)
	assert.Equal(t, time.Second, p.MaxBackoff)
	assert.Equal(t, 3.0, p.Multiplier)

	require.Len(t, cfg.Models, 1)
	m := cfg.Models[0]
	assert.False(t, m.IsEnabled())
	r, err := m.DateRange.Range()
	require.NoError(t, err)
	assert.Equal(t, []market.Day{"2025-10-01", "2025-10-02", "2025-10-03"}, r.Days())
}

func TestAPIKeyFromEnv(t *testing.T) {
	t.Setenv("AITRADER_TEST_KEY", "sk-test")

	d := DecisionConfig{APIKeyEnv: "AITRADER_TEST_KEY"}
	assert.Equal(t, "sk-test", d.APIKey())
	assert.Empty(t, DecisionConfig{}.APIKey())
}
