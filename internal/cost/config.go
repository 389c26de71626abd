package cost

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds cost budgeting configuration
type Config struct {
	// Enabled controls whether the budget is enforced
	// Default: true
	Enabled bool `yaml:"enabled" json:"enabled"`

	// MaxCostPerRun is the maximum estimated spend in USD for one audit run.
	// Remaining LLM batches are skipped once it is reached.
	// 0.0 = unlimited
	// Default: 5.00
	MaxCostPerRun float64 `yaml:"max_cost_per_run" json:"max_cost_per_run"`

	// MaxTokensPerRun is the maximum number of tokens (prompt + completion) per run
	// 0 = unlimited
	// Default: 0
	MaxTokensPerRun int64 `yaml:"max_tokens_per_run" json:"max_tokens_per_run"`

	// AlertThreshold is the fraction of budget that triggers a warning
	// Default: 0.80 (80%)
	AlertThreshold float64 `yaml:"alert_threshold" json:"alert_threshold"`

	// Pricing overrides the built-in price table, keyed by model prefix.
	Pricing map[string]Pricing `yaml:"pricing,omitempty" json:"pricing,omitempty"`
}

// DefaultConfig returns default cost budgeting configuration
func DefaultConfig() Config {
	return Config{
		Enabled:         true,
		MaxCostPerRun:   5.00,
		MaxTokensPerRun: 0,
		AlertThreshold:  0.80,
	}
}

// ApplyEnv overlays CODEAUDIT_COST_* environment variables onto cfg.
// Invalid values are reported rather than silently ignored.
func ApplyEnv(cfg Config) (Config, error) {
	if val := os.Getenv("CODEAUDIT_COST_ENABLED"); val != "" {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return cfg, fmt.Errorf("invalid CODEAUDIT_COST_ENABLED: %w", err)
		}
		cfg.Enabled = b
	}

	if val := os.Getenv("CODEAUDIT_COST_MAX_COST_PER_RUN"); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid CODEAUDIT_COST_MAX_COST_PER_RUN: %w", err)
		}
		cfg.MaxCostPerRun = f
	}

	if val := os.Getenv("CODEAUDIT_COST_MAX_TOKENS_PER_RUN"); val != "" {
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid CODEAUDIT_COST_MAX_TOKENS_PER_RUN: %w", err)
		}
		cfg.MaxTokensPerRun = n
	}

	if val := os.Getenv("CODEAUDIT_COST_ALERT_THRESHOLD"); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid CODEAUDIT_COST_ALERT_THRESHOLD: %w", err)
		}
		cfg.AlertThreshold = f
	}

	return cfg, cfg.Validate()
}

// Validate checks that the configuration has safe and reasonable values
func (c Config) Validate() error {
	if c.MaxCostPerRun < 0 {
		return fmt.Errorf("max_cost_per_run must be non-negative, got %.2f", c.MaxCostPerRun)
	}

	if c.MaxTokensPerRun < 0 {
		return fmt.Errorf("max_tokens_per_run must be non-negative, got %d", c.MaxTokensPerRun)
	}

	if c.AlertThreshold <= 0 || c.AlertThreshold > 1.0 {
		return fmt.Errorf("alert_threshold must be between 0 and 1, got %.2f", c.AlertThreshold)
	}

	for model, p := range c.Pricing {
		if p.InputPerMillion < 0 || p.CachedPerMillion < 0 || p.OutputPerMillion < 0 {
			return fmt.Errorf("pricing for %q must be non-negative", model)
		}
	}

	return nil
}
