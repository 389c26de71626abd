package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
)

// Default endpoints for OpenAI-compatible chat completions.
const (
	OpenAIBaseURL = "https://api.openai.com/v1"
	XAIBaseURL    = "https://api.x.ai/v1"
)

// ChatProvider speaks the OpenAI chat completions protocol, which xAI also
// serves.
type ChatProvider struct {
	name     string
	model    string
	apiKey   string
	baseURL  string
	compress bool
	client   *resty.Client
}

// NewChatProvider builds a provider for openai or xai.
func NewChatProvider(cfg ProviderConfig) *ChatProvider {
	base := cfg.BaseURL
	if base == "" {
		base = XAIBaseURL
		if cfg.Name == ProviderOpenAI {
			base = OpenAIBaseURL
		}
	}
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &ChatProvider{
		name:     cfg.Name,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		baseURL:  strings.TrimRight(base, "/"),
		compress: cfg.Compress,
		client:   client,
	}
}

func (p *ChatProvider) Name() string { return p.name }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	Temperature    float64           `json:"temperature"`
	Stream         bool              `json:"stream"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

// Complete posts to /chat/completions. The static system message comes first
// so provider-side prefix caching can reuse it across batches.
func (p *ChatProvider) Complete(ctx context.Context, req Request) (Completion, error) {
	payload, err := json.Marshal(chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		MaxTokens:      req.MaxTokens,
		Temperature:    req.Temperature,
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return Completion{}, fmt.Errorf("encode chat request: %w", err)
	}

	r := p.client.R().SetContext(ctx).SetAuthToken(p.apiKey)
	if p.compress {
		zipped, err := gzipBytes(payload)
		if err != nil {
			return Completion{}, err
		}
		r.SetHeader("Content-Encoding", "gzip").SetBody(zipped)
	} else {
		r.SetBody(payload)
	}

	resp, err := r.Post(p.baseURL + "/chat/completions")
	if err != nil {
		return Completion{}, fmt.Errorf("%s request failed: %w", p.name, err)
	}
	body := resp.Body()
	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return Completion{}, &StatusError{Provider: p.name, Code: resp.StatusCode(), Body: string(body)}
	}

	text, path, ok := ExtractContent(body)
	if !ok {
		return Completion{}, &ShapeError{Reason: "no recognized content path in " + p.name + " response", Raw: body, Dump: DumpResponseStructure}
	}
	return Completion{
		Text:  text,
		Model: p.model,
		Usage: usageFromEnvelope(body),
		Path:  path,
	}, nil
}
