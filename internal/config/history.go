package config

import "fmt"

// HistoryConfig controls the run history database.
type HistoryConfig struct {
	// Enabled records each run, its tasks and its LLM spend.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the sqlite file. Relative paths resolve against the target root.
	// Default: .codeaudit/history.db
	Path string `yaml:"path"`

	// RetentionDays is how long runs are kept before pruning.
	// Default: 90, Range: 1-3650
	RetentionDays int `yaml:"retention_days"`

	// MaxRuns caps the number of runs kept regardless of age.
	// Default: 500, Range: 0 (unlimited) or 10-100000
	MaxRuns int `yaml:"max_runs"`
}

// DefaultHistoryConfig returns the default history configuration
func DefaultHistoryConfig() HistoryConfig {
	return HistoryConfig{
		Enabled:       true,
		Path:          ".codeaudit/history.db",
		RetentionDays: 90,
		MaxRuns:       500,
	}
}

// Validate checks if the configuration has valid values
func (c HistoryConfig) Validate() error {
	if c.Enabled && c.Path == "" {
		return fmt.Errorf("path is required when history is enabled")
	}
	if c.RetentionDays < 1 || c.RetentionDays > 3650 {
		return fmt.Errorf("retention_days must be between 1 and 3650 (got %d)", c.RetentionDays)
	}
	if c.MaxRuns < 0 {
		return fmt.Errorf("max_runs cannot be negative (got %d)", c.MaxRuns)
	}
	if c.MaxRuns > 0 && c.MaxRuns < 10 {
		return fmt.Errorf("max_runs must be 0 (unlimited) or >= 10 (got %d)", c.MaxRuns)
	}
	if c.MaxRuns > 100000 {
		return fmt.Errorf("max_runs too large (got %d, max 100000)", c.MaxRuns)
	}
	return nil
}
