package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/codeaudit/internal/types"
)

const auditItems = `[
  {"file": "cmd/server/main.go", "reachable": true, "compliance_issues": [], "incomplete": false, "suggested_tags": [], "improvement": "split the handler"},
  {"file": "internal/old/legacy.go", "reachable": false, "compliance_issues": ["no context on network call"], "incomplete": true, "suggested_tags": ["@audit-todo: wire up retries"], "improvement": ""}
]`

var expectedAudits = []types.FileAudit{
	{
		File:             "cmd/server/main.go",
		Reachable:        true,
		ComplianceIssues: types.ComplianceList{},
		SuggestedTags:    []string{},
		Improvement:      "split the handler",
	},
	{
		File:             "internal/old/legacy.go",
		Reachable:        false,
		ComplianceIssues: types.ComplianceList{"no context on network call"},
		Incomplete:       true,
		SuggestedTags:    []string{"@audit-todo: wire up retries"},
	},
}

func TestParseFileAuditsFormats(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		format string
	}{
		{
			name:   "wrapped object",
			input:  `{"file_audits": ` + auditItems + `}`,
			format: "wrapped",
		},
		{
			name:   "bare array",
			input:  auditItems,
			format: "array",
		},
		{
			name:   "fenced wrapped object",
			input:  "```json\n{\"file_audits\": " + auditItems + "}\n```",
			format: "fenced-wrapped",
		},
		{
			name:   "fenced bare array",
			input:  "Here is the audit:\n```\n" + auditItems + "\n```\nLet me know if you need more.",
			format: "fenced-array",
		},
		{
			name:   "wrapped object inside prose with trailing comma",
			input:  "Sure! {\"file_audits\": " + auditItems + ",} Hope this helps.",
			format: "embedded-wrapped",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			audits, format, err := ParseFileAudits(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.format, format)
			assert.Equal(t, expectedAudits, audits)
		})
	}
}

func TestParseFileAuditsUnrecognized(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"I reviewed the files and everything looks fine.",
		`{"results": []}`,
		`<audit><file>main.go</file></audit>`,
		"```yaml\nfile_audits: []\n```",
	}

	for _, in := range inputs {
		audits, format, err := ParseFileAudits(in)
		require.Error(t, err, "input %q", in)
		var perr *ParseError
		assert.ErrorAs(t, err, &perr)
		assert.Empty(t, audits)
		assert.Empty(t, format)
	}
}

func TestParseFileAuditsEmptyList(t *testing.T) {
	audits, format, err := ParseFileAudits(`{"file_audits": []}`)
	require.NoError(t, err)
	assert.Equal(t, "wrapped", format)
	assert.NotNil(t, audits)
	assert.Empty(t, audits)
}

func TestParseFileAuditsStructuredCompliance(t *testing.T) {
	in := `{"file_audits": [{"file": "a.go", "compliance_issues": [{"type": "Security", "description": "token logged"}]}]}`
	audits, _, err := ParseFileAudits(in)
	require.NoError(t, err)
	require.Len(t, audits, 1)
	assert.True(t, audits[0].Reachable, "missing reachable defaults to true")
	assert.Equal(t, types.ComplianceList{"[security] token logged"}, audits[0].ComplianceIssues)
}

func TestResponseFormatsTable(t *testing.T) {
	seen := map[string]bool{}
	last := 0
	for _, f := range ResponseFormats {
		assert.False(t, seen[f.Name], "duplicate format %s", f.Name)
		seen[f.Name] = true
		assert.GreaterOrEqual(t, f.Since, last, "formats are append-only")
		assert.LessOrEqual(t, f.Since, ResponseFormatsVersion)
		last = f.Since
	}
}

func TestCleanupJSON(t *testing.T) {
	in := "{\n  // note\n  \"a\": [1, 2,],\n  /* block */ \"b\": 1,\n}"
	assert.JSONEq(t, `{"a": [1, 2], "b": 1}`, cleanupJSON(in))
}

func TestRemoveCodeFences(t *testing.T) {
	body, ok := removeCodeFences("```json\n{\"a\":1}\n```")
	assert.True(t, ok)
	assert.Equal(t, `{"a":1}`, body)

	_, ok = removeCodeFences(`{"a":1}`)
	assert.False(t, ok)
}
