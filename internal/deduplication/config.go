package deduplication

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds configuration for the deduplicator
type Config struct {
	// IgnoreLine drops the line number from the dedup key.
	// Default: false (tasks on different lines are distinct)
	IgnoreLine bool `yaml:"ignore_line"`

	// MinMessageLength is the minimum normalized message length to merge on.
	// Very short messages ("fix", "todo") collide too easily across a file.
	// Default: 0 (always merge)
	MinMessageLength int `yaml:"min_message_length"`
}

// DefaultConfig returns the default deduplication configuration
func DefaultConfig() Config {
	return Config{
		IgnoreLine:       false,
		MinMessageLength: 0,
	}
}

// Validate checks if the configuration has valid values
func (c Config) Validate() error {
	if c.MinMessageLength < 0 {
		return fmt.Errorf("min_message_length cannot be negative (got %d)", c.MinMessageLength)
	}
	if c.MinMessageLength > 500 {
		return fmt.Errorf("min_message_length too large (got %d, max 500)", c.MinMessageLength)
	}
	return nil
}

// ConfigFromEnv overlays CODEAUDIT_DEDUP_* environment variables onto cfg.
func ConfigFromEnv(cfg Config) (Config, error) {
	if val := os.Getenv("CODEAUDIT_DEDUP_IGNORE_LINE"); val != "" {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return cfg, fmt.Errorf("invalid CODEAUDIT_DEDUP_IGNORE_LINE: %w", err)
		}
		cfg.IgnoreLine = b
	}
	if val := os.Getenv("CODEAUDIT_DEDUP_MIN_MESSAGE_LENGTH"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return cfg, fmt.Errorf("invalid CODEAUDIT_DEDUP_MIN_MESSAGE_LENGTH: %w", err)
		}
		cfg.MinMessageLength = n
	}
	return cfg, cfg.Validate()
}
