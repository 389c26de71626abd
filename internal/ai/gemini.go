package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"
)

// GeminiProvider calls GenerateContent through the genai SDK.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

// NewGeminiProvider builds a provider. Request bodies go through gzipTransport
// when compression is on.
func NewGeminiProvider(ctx context.Context, cfg ProviderConfig) (*GeminiProvider, error) {
	httpClient := &http.Client{Timeout: cfg.Timeout}
	if cfg.Compress {
		httpClient.Transport = &gzipTransport{base: http.DefaultTransport}
	}
	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiProvider{client: client, model: cfg.Model}, nil
}

func (p *GeminiProvider) Name() string { return ProviderGemini }

func (p *GeminiProvider) Complete(ctx context.Context, req Request) (Completion, error) {
	temp := float32(req.Temperature)
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.System, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		Temperature:       &temp,
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(req.User), cfg)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return Completion{}, &StatusError{Provider: ProviderGemini, Code: apiErr.Code, Body: apiErr.Message}
		}
		return Completion{}, fmt.Errorf("gemini request failed: %w", err)
	}

	// Re-encode so the shared content paths decide shape validity.
	body, err := json.Marshal(resp)
	if err != nil {
		return Completion{}, &ShapeError{Reason: "gemini response not encodable: " + err.Error()}
	}
	text, path, ok := ExtractContent(body)
	if !ok {
		return Completion{}, &ShapeError{Reason: "no recognized content path in gemini response", Raw: body, Dump: DumpResponseStructure}
	}

	var usage Usage
	if m := resp.UsageMetadata; m != nil {
		usage = Usage{
			PromptTokens:     int64(m.PromptTokenCount),
			CachedTokens:     int64(m.CachedContentTokenCount),
			CompletionTokens: int64(m.CandidatesTokenCount),
		}
	}
	return Completion{Text: text, Model: p.model, Usage: usage, Path: path}, nil
}
