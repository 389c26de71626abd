// Package config loads codeaudit settings from .codeaudit.yaml and
// CODEAUDIT_* environment variables.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/steveyegge/codeaudit/internal/ai"
	"github.com/steveyegge/codeaudit/internal/cost"
	"github.com/steveyegge/codeaudit/internal/deduplication"
	"github.com/steveyegge/codeaudit/internal/prompt"
	"github.com/steveyegge/codeaudit/internal/scanner"
	"github.com/steveyegge/codeaudit/internal/tags"
	"github.com/steveyegge/codeaudit/internal/tasks"
	"github.com/steveyegge/codeaudit/internal/types"
)

// FileName is the per-project config file looked up at the target root.
const FileName = ".codeaudit.yaml"

// Config is the full codeaudit configuration.
type Config struct {
	Scan    ScanConfig    `yaml:"scan"`
	Tags    TagsConfig    `yaml:"tags"`
	Tasks   TasksConfig   `yaml:"tasks"`
	LLM     LLMConfig     `yaml:"llm"`
	Cost    cost.Config   `yaml:"cost"`
	History HistoryConfig `yaml:"history"`
}

// ScanConfig controls file enumeration and the static rule set.
type ScanConfig struct {
	Workers       int      `yaml:"workers"`                  // 0 = one per CPU
	MaxFileSize   int64    `yaml:"max_file_size"`            // bytes; larger files are skipped
	SkipDirs      []string `yaml:"skip_dirs"`                // doublestar globs
	DisabledRules []string `yaml:"disabled_rules,omitempty"` // rule IDs
}

// TagsConfig controls which files the tag scanner ignores.
type TagsConfig struct {
	Exclude []string `yaml:"exclude"`
}

// TasksConfig is the severity filter plus deduplication settings.
type TasksConfig struct {
	// Admissions maps a severity to always, critical-path, hotspot or never.
	// Severities left out keep their default admission.
	Admissions          map[string]string    `yaml:"admissions"`
	CriticalPathMarkers []string             `yaml:"critical_path_markers"`
	EntryPoints         []string             `yaml:"entry_points"`
	HotspotThreshold    int                  `yaml:"hotspot_threshold"`
	Dedup               deduplication.Config `yaml:"dedup"`
}

// LLMConfig controls the optional LLM review.
type LLMConfig struct {
	Provider          string   `yaml:"provider"`
	Model             string   `yaml:"model"`
	BaseURL           string   `yaml:"base_url"`
	Compress          bool     `yaml:"compress"`
	Timeout           Duration `yaml:"timeout"` // per attempt
	RunTimeout        Duration `yaml:"run_timeout"`
	MaxRetries        int      `yaml:"max_retries"`
	MaxFiles          int      `yaml:"max_files"`
	BatchSize         int      `yaml:"batch_size"`
	Concurrency       int      `yaml:"concurrency"`
	RequestsPerMinute int      `yaml:"requests_per_minute"`
	MaxTokens         int      `yaml:"max_tokens"`
	Temperature       float64  `yaml:"temperature"`
	MaxExcerptBytes   int      `yaml:"max_excerpt_bytes"`
	Guidance          string   `yaml:"guidance"`
	DebugDir          string   `yaml:"debug_dir"`
	// Cache reuses audits of unchanged files from run history.
	Cache bool `yaml:"cache"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	walk := scanner.DefaultWalkOptions()
	policy := tasks.DefaultPolicy()
	retry := ai.DefaultRetryConfig()
	client := ai.DefaultClientConfig()
	orch := ai.DefaultOrchestratorConfig()

	admissions := make(map[string]string, len(policy.Admissions))
	for sev, a := range policy.Admissions {
		admissions[string(sev)] = a.String()
	}

	return Config{
		Scan: ScanConfig{
			Workers:     0,
			MaxFileSize: walk.MaxFileSize,
			SkipDirs:    append([]string(nil), walk.SkipDirs...),
		},
		Tags: TagsConfig{
			Exclude: tags.DefaultPolicy().Patterns(),
		},
		Tasks: TasksConfig{
			Admissions:          admissions,
			CriticalPathMarkers: policy.CriticalPathMarkers,
			EntryPoints:         policy.EntryPoints,
			HotspotThreshold:    policy.HotspotThreshold,
			Dedup:               deduplication.DefaultConfig(),
		},
		LLM: LLMConfig{
			Provider:          ai.ProviderXAI,
			Compress:          true,
			Timeout:           Duration(retry.Timeout),
			RunTimeout:        Duration(30 * time.Minute),
			MaxRetries:        retry.MaxRetries,
			MaxFiles:          20,
			BatchSize:         orch.BatchSize,
			Concurrency:       orch.Concurrency,
			RequestsPerMinute: 0,
			MaxTokens:         client.MaxTokens,
			Temperature:       client.Temperature,
			MaxExcerptBytes:   prompt.DefaultOptions().MaxExcerptBytes,
			Cache:             true,
		},
		Cost:    cost.DefaultConfig(),
		History: DefaultHistoryConfig(),
	}
}

// Validate checks if the configuration has valid values
func (c Config) Validate() error {
	if c.Scan.Workers < 0 {
		return fmt.Errorf("scan.workers cannot be negative (got %d)", c.Scan.Workers)
	}
	if c.Scan.MaxFileSize <= 0 {
		return fmt.Errorf("scan.max_file_size must be positive (got %d)", c.Scan.MaxFileSize)
	}
	if _, err := scanner.FilterRules(scanner.DefaultRules(), c.Scan.DisabledRules); err != nil {
		return fmt.Errorf("scan.disabled_rules: %w", err)
	}
	if _, err := tags.NewGlobPolicy(c.Tags.Exclude); err != nil {
		return fmt.Errorf("tags.exclude: %w", err)
	}
	if _, err := c.TaskPolicy(); err != nil {
		return fmt.Errorf("tasks: %w", err)
	}
	if err := c.Tasks.Dedup.Validate(); err != nil {
		return fmt.Errorf("tasks.dedup: %w", err)
	}
	if err := c.LLM.validate(); err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	if err := c.Cost.Validate(); err != nil {
		return fmt.Errorf("cost: %w", err)
	}
	if err := c.History.Validate(); err != nil {
		return fmt.Errorf("history: %w", err)
	}
	return nil
}

func (l LLMConfig) validate() error {
	if _, err := ai.NormalizeProvider(l.Provider); err != nil {
		return err
	}
	if l.MaxFiles < 1 || l.MaxFiles > 500 {
		return fmt.Errorf("max_files must be between 1 and 500 (got %d)", l.MaxFiles)
	}
	if l.BatchSize < 1 || l.BatchSize > 50 {
		return fmt.Errorf("batch_size must be between 1 and 50 (got %d)", l.BatchSize)
	}
	if l.Concurrency < 1 || l.Concurrency > 32 {
		return fmt.Errorf("concurrency must be between 1 and 32 (got %d)", l.Concurrency)
	}
	if l.RequestsPerMinute < 0 {
		return fmt.Errorf("requests_per_minute cannot be negative (got %d)", l.RequestsPerMinute)
	}
	if l.MaxTokens < 1 {
		return fmt.Errorf("max_tokens must be positive (got %d)", l.MaxTokens)
	}
	if l.Temperature < 0 || l.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2 (got %g)", l.Temperature)
	}
	if l.RunTimeout < 0 {
		return fmt.Errorf("run_timeout cannot be negative (got %s)", l.RunTimeout)
	}
	if _, err := l.RetryConfig(); err != nil {
		return err
	}
	return nil
}

// WalkOptions returns the scanner enumeration settings.
func (c Config) WalkOptions() scanner.WalkOptions {
	opts := scanner.WalkOptions{
		Workers:     c.Scan.Workers,
		MaxFileSize: c.Scan.MaxFileSize,
		SkipDirs:    c.Scan.SkipDirs,
	}
	if opts.Workers == 0 {
		opts.Workers = runtime.NumCPU()
	}
	return opts
}

// Rules returns the static rule set with disabled rules removed.
func (c Config) Rules() ([]scanner.Rule, error) {
	return scanner.FilterRules(scanner.DefaultRules(), c.Scan.DisabledRules)
}

// ExclusionPolicy returns the tag scanner's exclusion predicate.
func (c Config) ExclusionPolicy() (tags.ExclusionPolicy, error) {
	return tags.NewGlobPolicy(c.Tags.Exclude)
}

// TaskPolicy converts the admissions table into a tasks.Policy.
func (c Config) TaskPolicy() (tasks.Policy, error) {
	policy := tasks.DefaultPolicy()
	for key, value := range c.Tasks.Admissions {
		sev, err := types.ParseSeverity(key)
		if err != nil {
			return policy, err
		}
		a, err := tasks.ParseAdmission(value)
		if err != nil {
			return policy, fmt.Errorf("admission for %s: %w", sev, err)
		}
		policy.Admissions[sev] = a
	}
	if c.Tasks.CriticalPathMarkers != nil {
		policy.CriticalPathMarkers = lower(c.Tasks.CriticalPathMarkers)
	}
	if c.Tasks.EntryPoints != nil {
		policy.EntryPoints = c.Tasks.EntryPoints
	}
	policy.HotspotThreshold = c.Tasks.HotspotThreshold
	return policy, policy.Validate()
}

// ProviderConfig returns the settings for ai.NewProvider.
func (l LLMConfig) ProviderConfig() ai.ProviderConfig {
	return ai.ProviderConfig{
		Name:     l.Provider,
		Model:    l.Model,
		BaseURL:  l.BaseURL,
		Compress: l.Compress,
		Timeout:  time.Duration(l.Timeout),
	}
}

// RetryConfig returns the retry policy with the configured bounds applied.
func (l LLMConfig) RetryConfig() (ai.RetryConfig, error) {
	cfg := ai.DefaultRetryConfig()
	cfg.MaxRetries = l.MaxRetries
	cfg.Timeout = time.Duration(l.Timeout)
	cfg.MaxConcurrentCalls = l.Concurrency
	return cfg, cfg.Validate()
}

// ClientConfig returns the per-call client settings.
func (l LLMConfig) ClientConfig() (ai.ClientConfig, error) {
	retry, err := l.RetryConfig()
	if err != nil {
		return ai.ClientConfig{}, err
	}
	return ai.ClientConfig{
		MaxTokens:         l.MaxTokens,
		Temperature:       l.Temperature,
		RequestsPerMinute: l.RequestsPerMinute,
		Retry:             retry,
	}, nil
}

// OrchestratorConfig returns the batching settings.
func (l LLMConfig) OrchestratorConfig() ai.OrchestratorConfig {
	return ai.OrchestratorConfig{BatchSize: l.BatchSize, Concurrency: l.Concurrency}
}

// PromptOptions returns the context builder bounds.
func (l LLMConfig) PromptOptions() prompt.Options {
	opts := prompt.DefaultOptions()
	if l.MaxExcerptBytes > 0 {
		opts.MaxExcerptBytes = l.MaxExcerptBytes
	}
	opts.Guidance = l.Guidance
	return opts
}

func lower(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
