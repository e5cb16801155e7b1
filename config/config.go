package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/aitrader/market"
	"github.com/rustyeddy/aitrader/retry"
)

// Decision capability types.
const (
	DecisionOpenAI     = "openai"
	DecisionHold       = "hold"
	DecisionBuyAndHold = "buy_and_hold"
)

// ErrInvalid is matched by every validation error.
var ErrInvalid = errors.New("invalid config")

// Error names the offending field of an invalid configuration.
type Error struct {
	Field string
	Msg   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Msg)
}

func (e *Error) Is(target error) bool { return target == ErrInvalid }

func invalid(field, format string, args ...any) error {
	return &Error{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// Config represents the complete run configuration
type Config struct {
	Log     LogConfig     `json:"log" yaml:"log"`
	Journal JournalConfig `json:"journal" yaml:"journal"`
	Market  MarketConfig  `json:"market" yaml:"market"`
	Gateway GatewayConfig `json:"gateway" yaml:"gateway"`
	Run     RunConfig     `json:"run" yaml:"run"`
	Models  []ModelConfig `json:"models" yaml:"models"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // console or json
}

// JournalConfig says where results are written. SQLitePath is optional.
type JournalConfig struct {
	Dir        string `json:"dir" yaml:"dir"`
	SQLitePath string `json:"sqlite_path,omitempty" yaml:"sqlite_path,omitempty"`
}

// MarketConfig locates the price files. An empty Symbols list trades every
// symbol found in the files.
type MarketConfig struct {
	Prices  string   `json:"prices" yaml:"prices"` // doublestar glob
	Symbols []string `json:"symbols,omitempty" yaml:"symbols,omitempty"`
}

type GatewayConfig struct {
	RatePerMinute float64     `json:"rate_per_minute" yaml:"rate_per_minute"`
	Burst         int         `json:"burst" yaml:"burst"`
	CallTimeout   string      `json:"call_timeout" yaml:"call_timeout"`
	Retry         RetryConfig `json:"retry" yaml:"retry"`
	Jina          JinaConfig  `json:"jina" yaml:"jina"`
}

type RetryConfig struct {
	MaxAttempts    int     `json:"max_attempts" yaml:"max_attempts"`
	InitialBackoff string  `json:"initial_backoff" yaml:"initial_backoff"`
	MaxBackoff     string  `json:"max_backoff" yaml:"max_backoff"`
	Multiplier     float64 `json:"multiplier" yaml:"multiplier"`
}

// JinaConfig enables context lookups. An empty BaseURL uses the hosted
// reader.
type JinaConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	BaseURL   string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	APIKeyEnv string `json:"api_key_env,omitempty" yaml:"api_key_env,omitempty"`
}

// RunConfig bounds the orchestrator. Parallelism 0 runs every model at once.
type RunConfig struct {
	Parallelism int    `json:"parallelism" yaml:"parallelism"`
	DayTimeout  string `json:"day_timeout" yaml:"day_timeout"`
}

// ModelConfig is one model run.
type ModelConfig struct {
	Signature      string         `json:"signature" yaml:"signature"`
	Enabled        *bool          `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	InitialCash    float64        `json:"initial_cash" yaml:"initial_cash"`
	MaxStepsPerDay int            `json:"max_steps_per_day" yaml:"max_steps_per_day"`
	DateRange      DateRange      `json:"date_range" yaml:"date_range"`
	Decision       DecisionConfig `json:"decision" yaml:"decision"`
}

type DateRange struct {
	Start string `json:"start" yaml:"start"`
	End   string `json:"end" yaml:"end"`
}

// DecisionConfig selects the capability. Symbol and Fraction apply to
// buy_and_hold only.
type DecisionConfig struct {
	Type        string  `json:"type" yaml:"type"`
	BaseURL     string  `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Model       string  `json:"model,omitempty" yaml:"model,omitempty"`
	APIKeyEnv   string  `json:"api_key_env,omitempty" yaml:"api_key_env,omitempty"`
	Timeout     string  `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Temperature float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	Symbol      string  `json:"symbol,omitempty" yaml:"symbol,omitempty"`
	Fraction    float64 `json:"fraction,omitempty" yaml:"fraction,omitempty"`
}

// IsEnabled defaults to true when the flag is omitted.
func (m ModelConfig) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// Range parses the date range.
func (d DateRange) Range() (market.Range, error) {
	start, err := market.ParseDay(d.Start)
	if err != nil {
		return market.Range{}, err
	}
	end, err := market.ParseDay(d.End)
	if err != nil {
		return market.Range{}, err
	}
	r := market.Range{Start: start, End: end}
	return r, r.Validate()
}

// APIKey reads the key from the named environment variable.
func (d DecisionConfig) APIKey() string {
	if d.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(d.APIKeyEnv)
}

func (j JinaConfig) APIKey() string {
	if j.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(j.APIKeyEnv)
}

// TimeoutDuration is the per-call bound on the capability; 0 means none.
func (d DecisionConfig) TimeoutDuration() time.Duration { return duration(d.Timeout) }

func (g GatewayConfig) CallTimeoutDuration() time.Duration { return duration(g.CallTimeout) }

func (r RunConfig) DayTimeoutDuration() time.Duration { return duration(r.DayTimeout) }

// Policy converts the retry settings.
func (r RetryConfig) Policy() retry.Policy {
	return retry.Policy{
		MaxAttempts:    r.MaxAttempts,
		InitialBackoff: duration(r.InitialBackoff),
		MaxBackoff:     duration(r.MaxBackoff),
		Multiplier:     r.Multiplier,
	}
}

func duration(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, _ := time.ParseDuration(s)
	return d
}

// LoadFromFile loads configuration from a file (YAML or JSON)
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}

	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid. Every error matches
// ErrInvalid.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return invalid("log.level", "must be one of debug, info, warn, error")
	}
	switch c.Log.Format {
	case "", "console", "json":
	default:
		return invalid("log.format", "must be 'console' or 'json'")
	}

	if c.Journal.Dir == "" {
		return invalid("journal.dir", "is required")
	}
	if c.Market.Prices == "" {
		return invalid("market.prices", "is required")
	}
	for i, s := range c.Market.Symbols {
		if strings.TrimSpace(s) == "" {
			return invalid(fmt.Sprintf("market.symbols[%d]", i), "is empty")
		}
	}

	g := c.Gateway
	if g.RatePerMinute < 0 {
		return invalid("gateway.rate_per_minute", "must not be negative")
	}
	if g.Burst < 0 {
		return invalid("gateway.burst", "must not be negative")
	}
	if err := checkDuration("gateway.call_timeout", g.CallTimeout); err != nil {
		return err
	}
	if g.Retry.MaxAttempts < 1 {
		return invalid("gateway.retry.max_attempts", "must be at least 1")
	}
	if g.Retry.Multiplier != 0 && g.Retry.Multiplier < 1 {
		return invalid("gateway.retry.multiplier", "must be at least 1")
	}
	if err := checkDuration("gateway.retry.initial_backoff", g.Retry.InitialBackoff); err != nil {
		return err
	}
	if err := checkDuration("gateway.retry.max_backoff", g.Retry.MaxBackoff); err != nil {
		return err
	}

	if c.Run.Parallelism < 0 {
		return invalid("run.parallelism", "must not be negative")
	}
	if err := checkDuration("run.day_timeout", c.Run.DayTimeout); err != nil {
		return err
	}

	if len(c.Models) == 0 {
		return invalid("models", "must list at least one model")
	}
	seen := make(map[string]bool, len(c.Models))
	for i, m := range c.Models {
		if err := m.validate(fmt.Sprintf("models[%d]", i)); err != nil {
			return err
		}
		if seen[m.Signature] {
			return invalid(fmt.Sprintf("models[%d].signature", i), "duplicates %q", m.Signature)
		}
		seen[m.Signature] = true
	}
	return nil
}

func (m ModelConfig) validate(field string) error {
	if strings.TrimSpace(m.Signature) == "" {
		return invalid(field+".signature", "is required")
	}
	if !(m.InitialCash > 0) {
		return invalid(field+".initial_cash", "must be positive")
	}
	if m.MaxStepsPerDay < 1 {
		return invalid(field+".max_steps_per_day", "must be positive")
	}
	if _, err := m.DateRange.Range(); err != nil {
		return invalid(field+".date_range", "%v", err)
	}

	d := m.Decision
	switch d.Type {
	case DecisionOpenAI:
		if d.Model == "" {
			return invalid(field+".decision.model", "is required for type openai")
		}
	case DecisionHold:
	case DecisionBuyAndHold:
		if d.Fraction < 0 || d.Fraction > 1 {
			return invalid(field+".decision.fraction", "must be between 0 and 1")
		}
	default:
		return invalid(field+".decision.type", "must be one of openai, hold, buy_and_hold")
	}
	if d.Temperature < 0 || d.Temperature > 2 {
		return invalid(field+".decision.temperature", "must be between 0 and 2")
	}
	return checkDuration(field+".decision.timeout", d.Timeout)
}

func checkDuration(field, s string) error {
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return invalid(field, "is not a duration: %v", err)
	}
	if d < 0 {
		return invalid(field, "must not be negative")
	}
	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "console"},
		Journal: JournalConfig{
			Dir: "./data/agent_data",
		},
		Market: MarketConfig{
			Prices:  "./data/prices/*.csv",
			Symbols: []string{"AAPL", "MSFT", "NVDA"},
		},
		Gateway: GatewayConfig{
			RatePerMinute: 600,
			Burst:         5,
			CallTimeout:   "10s",
			Retry: RetryConfig{
				MaxAttempts:    3,
				InitialBackoff: "200ms",
				MaxBackoff:     "2s",
				Multiplier:     2,
			},
			Jina: JinaConfig{APIKeyEnv: "JINA_API_KEY"},
		},
		Run: RunConfig{DayTimeout: "5m"},
		Models: []ModelConfig{
			{
				Signature:      "gpt-4o",
				InitialCash:    10000,
				MaxStepsPerDay: 30,
				DateRange:      DateRange{Start: "2025-10-01", End: "2025-10-31"},
				Decision: DecisionConfig{
					Type:        DecisionOpenAI,
					Model:       "gpt-4o",
					APIKeyEnv:   "OPENAI_API_KEY",
					Timeout:     "60s",
					Temperature: 0.2,
				},
			},
			{
				Signature:      "buy-and-hold",
				InitialCash:    10000,
				MaxStepsPerDay: 3,
				DateRange:      DateRange{Start: "2025-10-01", End: "2025-10-31"},
				Decision:       DecisionConfig{Type: DecisionBuyAndHold, Symbol: "AAPL", Fraction: 1},
			},
		},
	}
}
