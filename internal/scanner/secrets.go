package scanner

import (
	"math"
	"regexp"
	"strings"

	"github.com/steveyegge/codeaudit/internal/types"
)

var (
	// credentialAssignRegex matches key = "value" style credentials. Group 1 is
	// the key, group 2 the quoted value.
	credentialAssignRegex = regexp.MustCompile(`(?i)\b((?:[a-z0-9]+[_-])*(?:api[_-]?key|apikey|secret(?:[_-]?key)?|password|passwd|pwd|access[_-]?token|auth[_-]?token|client[_-]?secret|private[_-]?key))["']?\s*(?::=|[:=]|=>)\s*["']([^"'\s]{8,})["']`)

	tokenPrefixRegexes = []*regexp.Regexp{
		regexp.MustCompile(`\bghp_[A-Za-z0-9]{36}\b`),
		regexp.MustCompile(`\bgithub_pat_[A-Za-z0-9_]{40,}\b`),
		regexp.MustCompile(`\bsk-(?:proj-|ant-)?[A-Za-z0-9_-]{20,}`),
		regexp.MustCompile(`\bxox[bpas]-[A-Za-z0-9-]{10,}`),
		regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`),
		regexp.MustCompile(`-----BEGIN (?:RSA |EC |DSA |OPENSSH |PGP )?PRIVATE KEY(?: BLOCK)?-----`),
	}

	placeholderMarkers = []string{"example", "changeme", "change_me", "xxx", "your_", "your-", "dummy", "placeholder", "redacted", "replace_me", "todo"}
)

// minSecretEntropy is the Shannon entropy (bits per char) a credential value
// must reach before it is reported.
const minSecretEntropy = 3.0

// RedactedText replaces secret values in excerpts.
const RedactedText = "[REDACTED]"

// secretRule reports credentials in any file category. Findings are always
// critical.
type secretRule struct{}

func (secretRule) ID() string { return "hardcoded-secret" }

func (secretRule) Applies(*File) bool { return true }

func (r secretRule) Check(f *File) []types.Issue {
	var issues []types.Issue
	for i, line := range f.Lines {
		if isCommentLine(line) && hasPlaceholder(line) {
			continue
		}
		if msg, ok := detectSecret(line); ok {
			issues = append(issues, types.Issue{
				File:       f.Path,
				Line:       i + 1,
				Severity:   types.SeverityCritical,
				Category:   types.IssueSecurity,
				Message:    msg,
				RuleID:     r.ID(),
				Suggestion: "move the credential to an environment variable or secret manager and rotate it",
			})
		}
	}
	return issues
}

func detectSecret(line string) (string, bool) {
	for _, re := range tokenPrefixRegexes {
		if re.MatchString(line) {
			return "hardcoded credential with a known token format", true
		}
	}
	for _, m := range credentialAssignRegex.FindAllStringSubmatch(line, -1) {
		value := m[2]
		if isPlaceholderValue(value) {
			continue
		}
		if shannonEntropy(value) < minSecretEntropy {
			continue
		}
		return "hardcoded secret assigned to " + strings.ToLower(m[1]), true
	}
	return "", false
}

func hasPlaceholder(line string) bool {
	lower := strings.ToLower(line)
	for _, marker := range placeholderMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return strings.Contains(line, "${") || (strings.Contains(line, "<") && strings.Contains(line, ">"))
}

func isPlaceholderValue(v string) bool {
	if strings.HasPrefix(v, "$") || strings.HasPrefix(v, "<") || strings.HasPrefix(v, "{{") || strings.HasPrefix(v, "%") {
		return true
	}
	lower := strings.ToLower(v)
	for _, marker := range placeholderMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	if strings.Trim(lower, "*x.-_") == "" {
		return true
	}
	return false
}

func shannonEntropy(s string) float64 {
	if s == "" {
		return 0
	}
	counts := make(map[rune]int)
	total := 0
	for _, r := range s {
		counts[r]++
		total++
	}
	var h float64
	for _, c := range counts {
		p := float64(c) / float64(total)
		h -= p * math.Log2(p)
	}
	return h
}

// RedactSecrets masks credential values and known token formats in text.
// Keys stay visible so the reader still sees what was assigned.
func RedactSecrets(text string) string {
	for _, re := range tokenPrefixRegexes {
		text = re.ReplaceAllString(text, RedactedText)
	}
	return credentialAssignRegex.ReplaceAllStringFunc(text, func(match string) string {
		sub := credentialAssignRegex.FindStringSubmatch(match)
		if len(sub) < 3 || isPlaceholderValue(sub[2]) {
			return match
		}
		return strings.Replace(match, sub[2], RedactedText, 1)
	})
}
