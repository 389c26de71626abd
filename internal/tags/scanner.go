// Package tags extracts audit annotations from source comments.
package tags

import (
	"regexp"
	"strings"

	"github.com/steveyegge/codeaudit/internal/types"
)

// contextRadius is the number of lines captured on each side of a tag.
const contextRadius = 2

type marker struct {
	tagType types.TagType
	pattern *regexp.Regexp
}

// markers is evaluated in order; a line matching several yields one tag per
// marker in this order. Group 1 is the message.
var markers = []marker{
	{types.TagTodo, regexp.MustCompile(`(?:@audit-todo:|\bTODO\b(?:\([^)]*\))?:?)[ \t]*(.*)`)},
	{types.TagFixme, regexp.MustCompile(`(?:@audit-fixme:|\bFIXME\b(?:\([^)]*\))?:?)[ \t]*(.*)`)},
	{types.TagFreeze, regexp.MustCompile(`(?:@audit-freeze|@freeze)\b:?[ \t]*(.*)`)},
	{types.TagSecurity, regexp.MustCompile(`(?:@audit-security:|\bSECURITY:)[ \t]*(.*)`)},
	{types.TagReview, regexp.MustCompile(`(?:@audit-review:|\bREVIEW:)[ \t]*(.*)`)},
	{types.TagHack, regexp.MustCompile(`\bHACK\b:?[ \t]*(.*)`)},
	{types.TagNote, regexp.MustCompile(`\bNOTE:[ \t]*(.*)`)},
	{types.TagGeneric, regexp.MustCompile(`@audit-tag:[ \t]*(.*)`)},
}

var commentLeaders = []string{"//", "#", "/*", "*", "--", "<!--", ";"}

var commentClosers = []string{"*/", "-->"}

// Scanner finds audit tags line by line.
type Scanner struct {
	policy ExclusionPolicy
}

// NewScanner creates a scanner. A nil policy means DefaultPolicy.
func NewScanner(policy ExclusionPolicy) *Scanner {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &Scanner{policy: policy}
}

// Scan returns the tags in lines, in line order. Excluded paths yield none.
func (s *Scanner) Scan(path string, lines []string) []types.AuditTag {
	return s.ScanAt(path, path, lines)
}

// ScanAt is Scan with a second path checked for exclusion. location should
// keep every directory that identifies the file, such as a repository-relative
// or absolute path, so that scanning a fixture directory directly is excluded
// just like scanning its parent. Tags report path.
func (s *Scanner) ScanAt(location, path string, lines []string) []types.AuditTag {
	if s.policy.Excluded(path) || (location != path && s.policy.Excluded(location)) {
		return nil
	}
	var out []types.AuditTag
	for i, line := range lines {
		for _, m := range markers {
			loc := m.pattern.FindStringSubmatchIndex(line)
			if loc == nil || !commentBefore(line, loc[0]) {
				continue
			}
			out = append(out, types.AuditTag{
				Type:    m.tagType,
				File:    path,
				Line:    i + 1,
				Message: cleanMessage(line[loc[2]:loc[3]]),
				Context: window(lines, i),
			})
		}
	}
	return out
}

// ScanText is Scan over unsplit content.
func (s *Scanner) ScanText(path, content string) []types.AuditTag {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	return s.Scan(path, strings.Split(content, "\n"))
}

// commentBefore reports whether a comment leader starts before col.
func commentBefore(line string, col int) bool {
	prefix := line[:col]
	for _, leader := range commentLeaders {
		if strings.Contains(prefix, leader) {
			return true
		}
	}
	return false
}

func cleanMessage(msg string) string {
	msg = strings.TrimSpace(msg)
	for _, closer := range commentClosers {
		msg = strings.TrimSpace(strings.TrimSuffix(msg, closer))
	}
	return msg
}

func window(lines []string, i int) string {
	start := i - contextRadius
	if start < 0 {
		start = 0
	}
	end := i + contextRadius + 1
	if end > len(lines) {
		end = len(lines)
	}
	return strings.Join(lines[start:end], "\n")
}
