// Package ai talks to LLM providers: it sends audit prompts, retries transient
// failures, and turns whatever the model returned into FileAudit records.
package ai

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/steveyegge/codeaudit/internal/types"
)

// Pre-compiled regular expressions for performance.
var (
	// Matches: ```json\n{...}\n```, ```{...}```, ``` json{...}```, etc.
	codeFenceStartRegex = regexp.MustCompile(`(?s)^` + "`" + `{3}(?:json|javascript|js)?\s*\n?([\s\S]*?)\n?` + "`" + `{3}\s*$`)
	codeFenceAnyRegex   = regexp.MustCompile(`(?s)` + "`" + `{3}(?:json|javascript|js)?\s*\n?([\s\S]*?)\n?` + "`" + `{3}`)

	// JSON cleanup patterns
	trailingCommaRegex     = regexp.MustCompile(`,(\s*[}\]])`)
	singleLineCommentRegex = regexp.MustCompile(`(?m)^\s*//.*$`)
	multiLineCommentRegex  = regexp.MustCompile(`(?s)/\*.*?\*/`)

	// Greedy to capture nested structures
	objectRegex = regexp.MustCompile(`(?s)\{[\s\S]*\}`)
)

// errNoMatch means a format did not recognize the text at all, as opposed to
// recognizing it and finding it malformed.
var errNoMatch = errors.New("format does not match")

// ResponseFormat is one recognized shape of a questionnaire response.
type ResponseFormat struct {
	Name string
	// Since is the ResponseFormats version that introduced the format.
	Since int
	Parse func(text string) ([]types.FileAudit, error)
}

// ResponseFormatsVersion is bumped whenever a format is appended.
const ResponseFormatsVersion = 2

// ResponseFormats is tried in order; the first success wins. The table is
// append-only: new provider quirks get a new entry and a version bump so
// existing fixtures keep parsing exactly as before.
var ResponseFormats = []ResponseFormat{
	{Name: "wrapped", Since: 1, Parse: parseWrapped},
	{Name: "array", Since: 1, Parse: parseArray},
	{Name: "fenced-wrapped", Since: 1, Parse: fenced(parseWrapped)},
	{Name: "fenced-array", Since: 1, Parse: fenced(parseArray)},
	{Name: "embedded-wrapped", Since: 2, Parse: parseEmbedded},
}

// ParseError lists why each format rejected the text.
type ParseError struct {
	Attempts map[string]error
}

func (e *ParseError) Error() string {
	var parts []string
	for _, f := range ResponseFormats {
		if err, ok := e.Attempts[f.Name]; ok {
			parts = append(parts, fmt.Sprintf("%s: %v", f.Name, err))
		}
	}
	return "no response format matched (" + strings.Join(parts, "; ") + ")"
}

// ParseFileAudits runs text through ResponseFormats and returns the audits
// with the name of the format that accepted them.
func ParseFileAudits(text string) ([]types.FileAudit, string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, "", &ParseError{Attempts: map[string]error{"empty": errors.New("empty input")}}
	}
	attempts := make(map[string]error, len(ResponseFormats))
	for _, f := range ResponseFormats {
		audits, err := f.Parse(trimmed)
		if err == nil {
			if audits == nil {
				audits = []types.FileAudit{}
			}
			return audits, f.Name, nil
		}
		attempts[f.Name] = err
	}
	return nil, "", &ParseError{Attempts: attempts}
}

type wrappedResponse struct {
	FileAudits *[]types.FileAudit `json:"file_audits"`
}

func parseWrapped(text string) ([]types.FileAudit, error) {
	if !strings.HasPrefix(text, "{") {
		return nil, errNoMatch
	}
	var w wrappedResponse
	if err := strictUnmarshal(text, &w); err != nil {
		return nil, err
	}
	if w.FileAudits == nil {
		return nil, errors.New("missing file_audits")
	}
	return *w.FileAudits, nil
}

func parseArray(text string) ([]types.FileAudit, error) {
	if !strings.HasPrefix(text, "[") {
		return nil, errNoMatch
	}
	var audits []types.FileAudit
	if err := strictUnmarshal(text, &audits); err != nil {
		return nil, err
	}
	return audits, nil
}

// fenced strips a markdown code fence before handing the body to inner.
func fenced(inner func(string) ([]types.FileAudit, error)) func(string) ([]types.FileAudit, error) {
	return func(text string) ([]types.FileAudit, error) {
		body, ok := removeCodeFences(text)
		if !ok {
			return nil, errNoMatch
		}
		return inner(body)
	}
}

// parseEmbedded finds a wrapped object inside prose and tolerates the usual
// LLM JSON slips (trailing commas, comments).
func parseEmbedded(text string) ([]types.FileAudit, error) {
	match := objectRegex.FindString(text)
	if match == "" {
		return nil, errNoMatch
	}
	return parseWrapped(cleanupJSON(match))
}

// strictUnmarshal rejects trailing data after the JSON value.
func strictUnmarshal(text string, v any) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data after JSON value")
	}
	return nil
}

// removeCodeFences strips markdown code fences from text. It reports false
// when no fence was present.
func removeCodeFences(text string) (string, bool) {
	if m := codeFenceStartRegex.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	if m := codeFenceAnyRegex.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	return "", false
}

// cleanupJSON fixes common JSON formatting issues.
// - Removes trailing commas before closing braces/brackets
// - Removes // and /* */ comments
//
// Note: Does NOT convert single quotes to double quotes, as this would break
// valid JSON containing apostrophes (e.g., {"message": "I'm valid"}).
func cleanupJSON(text string) string {
	cleaned := strings.TrimSpace(text)
	cleaned = singleLineCommentRegex.ReplaceAllString(cleaned, "")
	cleaned = multiLineCommentRegex.ReplaceAllString(cleaned, "")
	cleaned = trailingCommaRegex.ReplaceAllString(cleaned, "$1")
	return strings.TrimSpace(cleaned)
}

// truncate truncates a string to maxLen bytes.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
