package ai

import (
	"strings"

	"github.com/tidwall/gjson"
)

// ContentPath locates the completion text inside one provider envelope.
type ContentPath struct {
	Name string
	// Since is the ContentPaths version that introduced the path.
	Since int
	Path  string
}

// ContentPathsVersion is bumped whenever a path is appended.
const ContentPathsVersion = 2

// ContentPaths is append-only. A response is shape-valid when any path yields
// non-empty text.
var ContentPaths = []ContentPath{
	{Name: "openai-chat", Since: 1, Path: "choices.0.message.content"},
	{Name: "anthropic-messages", Since: 1, Path: `content.#(type=="text")#.text`},
	{Name: "gemini-candidates", Since: 1, Path: "candidates.0.content.parts.#.text"},
	{Name: "xai-responses", Since: 2, Path: `output.#(type=="message").content.#(type=="output_text")#.text`},
	{Name: "openai-legacy-completion", Since: 2, Path: "choices.0.text"},
}

// UsagePaths reads token counts from an envelope. Providers differ in whether
// prompt counts include cached tokens; see usageFromEnvelope.
type UsagePaths struct {
	Prompt     []string
	Cached     []string
	Completion []string
}

var envelopeUsage = UsagePaths{
	Prompt: []string{
		"usage.prompt_tokens",
		"usage.input_tokens",
		"usageMetadata.promptTokenCount",
		"usage_metadata.prompt_token_count",
	},
	Cached: []string{
		"usage.prompt_tokens_details.cached_tokens",
		"usage.input_tokens_details.cached_tokens",
		"usage.cache_read_input_tokens",
		"usageMetadata.cachedContentTokenCount",
		"usage_metadata.cached_content_token_count",
	},
	Completion: []string{
		"usage.completion_tokens",
		"usage.output_tokens",
		"usageMetadata.candidatesTokenCount",
		"usage_metadata.candidates_token_count",
	},
}

// ExtractContent returns the completion text and the name of the content path
// that matched. ok is false when the envelope is not shape-valid.
func ExtractContent(body []byte) (text string, path string, ok bool) {
	if !gjson.ValidBytes(body) {
		return "", "", false
	}
	for _, cp := range ContentPaths {
		res := gjson.GetBytes(body, cp.Path)
		if !res.Exists() {
			continue
		}
		var s string
		if res.IsArray() {
			var parts []string
			for _, part := range res.Array() {
				if part.Type == gjson.String {
					parts = append(parts, part.String())
				}
			}
			s = strings.Join(parts, "")
		} else if res.Type == gjson.String {
			s = res.String()
		}
		if strings.TrimSpace(s) != "" {
			return s, cp.Name, true
		}
	}
	return "", "", false
}

// Usage is what one response reports about token consumption. Prompt
// includes Cached.
type Usage struct {
	PromptTokens     int64
	CachedTokens     int64
	CompletionTokens int64
}

func firstInt(body []byte, paths []string) int64 {
	for _, p := range paths {
		if r := gjson.GetBytes(body, p); r.Exists() {
			return r.Int()
		}
	}
	return 0
}

// usageFromEnvelope reads token counts. Anthropic reports input_tokens
// without cache reads, so those are added back to keep Prompt inclusive.
func usageFromEnvelope(body []byte) Usage {
	u := Usage{
		PromptTokens:     firstInt(body, envelopeUsage.Prompt),
		CachedTokens:     firstInt(body, envelopeUsage.Cached),
		CompletionTokens: firstInt(body, envelopeUsage.Completion),
	}
	if gjson.GetBytes(body, "usage.cache_read_input_tokens").Exists() {
		u.PromptTokens += u.CachedTokens + gjson.GetBytes(body, "usage.cache_creation_input_tokens").Int()
	}
	return u
}
