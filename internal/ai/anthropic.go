package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider calls the Messages API. The static prompt is sent as a
// cache_control system block so repeated batches read it from the cache.
type AnthropicProvider struct {
	client anthropic.Client
	model  string
}

// NewAnthropicProvider builds a provider. Retries are disabled in the SDK
// because the Client owns the retry policy.
func NewAnthropicProvider(cfg ProviderConfig) *AnthropicProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(cfg.Timeout),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Compress {
		opts = append(opts, option.WithMiddleware(gzipMiddleware))
	}
	return &AnthropicProvider{
		client: anthropic.NewClient(opts...),
		model:  cfg.Model,
	}
}

func gzipMiddleware(req *http.Request, next option.MiddlewareNext) (*http.Response, error) {
	if err := compressRequest(req); err != nil {
		return nil, err
	}
	return next(req)
}

func (p *AnthropicProvider) Name() string { return ProviderAnthropic }

func (p *AnthropicProvider) Complete(ctx context.Context, req Request) (Completion, error) {
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 8192
	}
	resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: req.System, CacheControl: anthropic.NewCacheControlEphemeralParam()},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.User)),
		},
		Temperature: anthropic.Float(req.Temperature),
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return Completion{}, &StatusError{Provider: ProviderAnthropic, Code: apiErr.StatusCode, Body: apiErr.Error()}
		}
		return Completion{}, fmt.Errorf("anthropic request failed: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return Completion{}, &ShapeError{Reason: "no text block in anthropic response", Raw: []byte(resp.RawJSON()), Dump: DumpResponseStructure}
	}

	cached := resp.Usage.CacheReadInputTokens
	return Completion{
		Text:  sb.String(),
		Model: p.model,
		Usage: Usage{
			PromptTokens:     resp.Usage.InputTokens + cached + resp.Usage.CacheCreationInputTokens,
			CachedTokens:     cached,
			CompletionTokens: resp.Usage.OutputTokens,
		},
		Path: "anthropic-messages",
	}, nil
}
