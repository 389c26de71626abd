package ai

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

// Request is one completion request. System is the cacheable prefix and
// User the per-batch part.
type Request struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}

// Completion is a shape-valid provider response.
type Completion struct {
	Text  string
	Model string
	Usage Usage
	// Path names the ContentPaths entry that yielded Text.
	Path string
}

// Provider sends one request. Implementations return *StatusError for non-2xx
// responses and *ShapeError when no content path matches.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (Completion, error)
}

// ProviderConfig selects and configures a provider.
type ProviderConfig struct {
	Name     string        `yaml:"provider"`
	Model    string        `yaml:"model"`
	APIKey   string        `yaml:"-"`
	BaseURL  string        `yaml:"base_url"`
	Compress bool          `yaml:"compress"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Provider names.
const (
	ProviderXAI       = "xai"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// DefaultModels is the model used when none is configured.
var DefaultModels = map[string]string{
	ProviderXAI:       "grok-4-fast-reasoning",
	ProviderOpenAI:    "gpt-4o-mini",
	ProviderAnthropic: "claude-sonnet-4-5",
	ProviderGemini:    "gemini-2.5-flash",
}

var credentialEnv = map[string][]string{
	ProviderXAI:       {"XAI_API_KEY", "GROK_API_KEY"},
	ProviderOpenAI:    {"OPENAI_API_KEY"},
	ProviderAnthropic: {"ANTHROPIC_API_KEY"},
	ProviderGemini:    {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
}

// NormalizeProvider maps aliases onto provider names.
func NormalizeProvider(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "xai", "grok":
		return ProviderXAI, nil
	case "openai", "gpt":
		return ProviderOpenAI, nil
	case "anthropic", "claude":
		return ProviderAnthropic, nil
	case "gemini", "google":
		return ProviderGemini, nil
	default:
		return "", fmt.Errorf("unknown LLM provider %q", name)
	}
}

// ResolveAPIKey returns the configured key or the first non-empty provider
// environment variable.
func ResolveAPIKey(provider, configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	for _, env := range credentialEnv[provider] {
		if v := os.Getenv(env); v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: set %s", ErrMissingCredentials, strings.Join(credentialEnv[provider], " or "))
}

// NewProvider builds the configured provider. Credentials are checked here so
// a run fails before any scanning work.
func NewProvider(ctx context.Context, cfg ProviderConfig) (Provider, error) {
	name, err := NormalizeProvider(cfg.Name)
	if err != nil {
		return nil, err
	}
	cfg.Name = name
	key, err := ResolveAPIKey(name, cfg.APIKey)
	if err != nil {
		return nil, err
	}
	cfg.APIKey = key
	if cfg.Model == "" {
		cfg.Model = DefaultModels[name]
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRetryConfig().Timeout
	}

	switch name {
	case ProviderAnthropic:
		return NewAnthropicProvider(cfg), nil
	case ProviderGemini:
		return NewGeminiProvider(ctx, cfg)
	default:
		return NewChatProvider(cfg), nil
	}
}
