package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/steveyegge/codeaudit/internal/cost"
	"github.com/steveyegge/codeaudit/internal/deduplication"
)

// ApplyEnv overlays CODEAUDIT_* environment variables onto cfg.
//
// Environment variables:
//   - CODEAUDIT_SCAN_WORKERS: scanner worker count (0 = one per CPU)
//   - CODEAUDIT_SCAN_MAX_FILE_SIZE: largest file analyzed, in bytes
//   - CODEAUDIT_SCAN_DISABLED_RULES: comma-separated rule IDs
//   - CODEAUDIT_TAGS_EXCLUDE: comma-separated exclusion globs
//   - CODEAUDIT_TASKS_HOTSPOT_THRESHOLD: issue count above which low findings become tasks
//   - CODEAUDIT_LLM_PROVIDER: xai, openai, anthropic or gemini
//   - CODEAUDIT_LLM_MODEL, CODEAUDIT_LLM_BASE_URL
//   - CODEAUDIT_LLM_COMPRESS: gzip request bodies
//   - CODEAUDIT_LLM_CACHE: reuse audits of unchanged files
//   - CODEAUDIT_LLM_TIMEOUT, CODEAUDIT_LLM_RUN_TIMEOUT: durations ("300s", "1h")
//   - CODEAUDIT_LLM_MAX_RETRIES, CODEAUDIT_LLM_MAX_FILES, CODEAUDIT_LLM_BATCH_SIZE
//   - CODEAUDIT_LLM_CONCURRENCY, CODEAUDIT_LLM_REQUESTS_PER_MINUTE
//   - CODEAUDIT_HISTORY_ENABLED, CODEAUDIT_HISTORY_PATH
//   - CODEAUDIT_COST_*: see cost.ApplyEnv
//   - CODEAUDIT_DEDUP_*: see deduplication.ConfigFromEnv
//
// AUDIT_DEBUG_DIR is honored as an alias for llm.debug_dir.
//
// Returns an error if any environment variable has an invalid value.
func ApplyEnv(cfg Config) (Config, error) {
	ints := []struct {
		key  string
		dest *int
	}{
		{"CODEAUDIT_SCAN_WORKERS", &cfg.Scan.Workers},
		{"CODEAUDIT_TASKS_HOTSPOT_THRESHOLD", &cfg.Tasks.HotspotThreshold},
		{"CODEAUDIT_LLM_MAX_RETRIES", &cfg.LLM.MaxRetries},
		{"CODEAUDIT_LLM_MAX_FILES", &cfg.LLM.MaxFiles},
		{"CODEAUDIT_LLM_BATCH_SIZE", &cfg.LLM.BatchSize},
		{"CODEAUDIT_LLM_CONCURRENCY", &cfg.LLM.Concurrency},
		{"CODEAUDIT_LLM_REQUESTS_PER_MINUTE", &cfg.LLM.RequestsPerMinute},
	}
	for _, e := range ints {
		if err := parseEnvInt(e.key, e.dest); err != nil {
			return cfg, err
		}
	}

	if err := parseEnvInt64("CODEAUDIT_SCAN_MAX_FILE_SIZE", &cfg.Scan.MaxFileSize); err != nil {
		return cfg, err
	}
	if err := parseEnvList("CODEAUDIT_SCAN_DISABLED_RULES", &cfg.Scan.DisabledRules); err != nil {
		return cfg, err
	}
	if err := parseEnvList("CODEAUDIT_TAGS_EXCLUDE", &cfg.Tags.Exclude); err != nil {
		return cfg, err
	}
	if err := parseEnvString("CODEAUDIT_LLM_PROVIDER", &cfg.LLM.Provider); err != nil {
		return cfg, err
	}
	if err := parseEnvString("CODEAUDIT_LLM_MODEL", &cfg.LLM.Model); err != nil {
		return cfg, err
	}
	if err := parseEnvString("CODEAUDIT_LLM_BASE_URL", &cfg.LLM.BaseURL); err != nil {
		return cfg, err
	}
	if err := parseEnvBool("CODEAUDIT_LLM_COMPRESS", &cfg.LLM.Compress); err != nil {
		return cfg, err
	}
	if err := parseEnvBool("CODEAUDIT_LLM_CACHE", &cfg.LLM.Cache); err != nil {
		return cfg, err
	}
	if err := parseEnvDuration("CODEAUDIT_LLM_TIMEOUT", &cfg.LLM.Timeout); err != nil {
		return cfg, err
	}
	if err := parseEnvDuration("CODEAUDIT_LLM_RUN_TIMEOUT", &cfg.LLM.RunTimeout); err != nil {
		return cfg, err
	}
	if err := parseEnvString("AUDIT_DEBUG_DIR", &cfg.LLM.DebugDir); err != nil {
		return cfg, err
	}
	if err := parseEnvBool("CODEAUDIT_HISTORY_ENABLED", &cfg.History.Enabled); err != nil {
		return cfg, err
	}
	if err := parseEnvString("CODEAUDIT_HISTORY_PATH", &cfg.History.Path); err != nil {
		return cfg, err
	}

	var err error
	if cfg.Cost, err = cost.ApplyEnv(cfg.Cost); err != nil {
		return cfg, err
	}
	if cfg.Tasks.Dedup, err = deduplication.ConfigFromEnv(cfg.Tasks.Dedup); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration from environment: %w", err)
	}
	return cfg, nil
}

// parseEnvInt parses an int from an environment variable
func parseEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

func parseEnvInt64(key string, dest *int64) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvBool parses a bool from an environment variable
func parseEnvBool(key string, dest *bool) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvString parses a string from an environment variable
func parseEnvString(key string, dest *string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	*dest = value
	return nil
}

func parseEnvDuration(key string, dest *Duration) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := parseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = Duration(parsed)
	return nil
}

// parseEnvList splits a comma-separated list, dropping blanks.
func parseEnvList(key string, dest *[]string) error {
	value, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	out := []string{}
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dest = out
	return nil
}
