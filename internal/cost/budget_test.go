package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/codeaudit/internal/types"
)

func record(model string, prompt, cached, completion int64, cost float64) types.CostRecord {
	return types.CostRecord{
		Provider:         "xai",
		Model:            model,
		Operation:        "file_audit",
		PromptTokens:     prompt,
		CachedTokens:     cached,
		CompletionTokens: completion,
		EstimatedCost:    cost,
	}
}

func TestBudgetStatusString(t *testing.T) {
	tests := []struct {
		status   BudgetStatus
		expected string
	}{
		{BudgetHealthy, "HEALTHY"},
		{BudgetWarning, "WARNING"},
		{BudgetExceeded, "EXCEEDED"},
		{BudgetStatus(99), "UNKNOWN(99)"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.status.String())
		})
	}
}

func TestBudgetStatus(t *testing.T) {
	tests := []struct {
		name     string
		config   func(*Config)
		ledger   Ledger
		expected BudgetStatus
	}{
		{
			name:     "empty ledger is healthy",
			ledger:   Ledger{},
			expected: BudgetHealthy,
		},
		{
			name:     "under threshold",
			ledger:   Ledger{}.Append(record("grok-4-fast", 1000, 0, 100, 1.00)),
			expected: BudgetHealthy,
		},
		{
			name:     "at alert threshold",
			ledger:   Ledger{}.Append(record("grok-4-fast", 1000, 0, 100, 4.00)),
			expected: BudgetWarning,
		},
		{
			name:     "cost exceeded",
			ledger:   Ledger{}.Append(record("a", 1, 0, 1, 3.00), record("a", 1, 0, 1, 2.50)),
			expected: BudgetExceeded,
		},
		{
			name: "token limit exceeded",
			config: func(c *Config) {
				c.MaxCostPerRun = 0
				c.MaxTokensPerRun = 1000
			},
			ledger:   Ledger{}.Append(record("a", 900, 0, 200, 0)),
			expected: BudgetExceeded,
		},
		{
			name: "disabled never exceeds",
			config: func(c *Config) {
				c.Enabled = false
			},
			ledger:   Ledger{}.Append(record("a", 1, 0, 1, 100)),
			expected: BudgetHealthy,
		},
		{
			name: "unlimited",
			config: func(c *Config) {
				c.MaxCostPerRun = 0
			},
			ledger:   Ledger{}.Append(record("a", 1, 0, 1, 100)),
			expected: BudgetHealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			if tt.config != nil {
				tt.config(&cfg)
			}
			b, err := NewBudget(cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, b.Status(tt.ledger))
		})
	}
}

func TestCanProceed(t *testing.T) {
	b, err := NewBudget(DefaultConfig())
	require.NoError(t, err)

	ok, reason := b.CanProceed(Ledger{})
	assert.True(t, ok)
	assert.Empty(t, reason)

	ok, reason = b.CanProceed(Ledger{}.Append(record("a", 1, 0, 1, 6)))
	assert.False(t, ok)
	assert.Contains(t, reason, "run budget exceeded")
}

func TestNewBudgetRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AlertThreshold = 1.5
	_, err := NewBudget(cfg)
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "default", mutate: func(*Config) {}},
		{name: "negative cost", mutate: func(c *Config) { c.MaxCostPerRun = -1 }, wantErr: "max_cost_per_run"},
		{name: "negative tokens", mutate: func(c *Config) { c.MaxTokensPerRun = -1 }, wantErr: "max_tokens_per_run"},
		{name: "zero threshold", mutate: func(c *Config) { c.AlertThreshold = 0 }, wantErr: "alert_threshold"},
		{
			name: "negative pricing",
			mutate: func(c *Config) {
				c.Pricing = map[string]Pricing{"custom": {InputPerMillion: -1}}
			},
			wantErr: "pricing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("CODEAUDIT_COST_ENABLED", "false")
	t.Setenv("CODEAUDIT_COST_MAX_COST_PER_RUN", "1.25")
	t.Setenv("CODEAUDIT_COST_MAX_TOKENS_PER_RUN", "50000")
	t.Setenv("CODEAUDIT_COST_ALERT_THRESHOLD", "0.5")

	cfg, err := ApplyEnv(DefaultConfig())
	require.NoError(t, err)
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 1.25, cfg.MaxCostPerRun)
	assert.Equal(t, int64(50000), cfg.MaxTokensPerRun)
	assert.Equal(t, 0.5, cfg.AlertThreshold)
}

func TestApplyEnvInvalid(t *testing.T) {
	t.Setenv("CODEAUDIT_COST_MAX_COST_PER_RUN", "lots")
	_, err := ApplyEnv(DefaultConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CODEAUDIT_COST_MAX_COST_PER_RUN")
}
