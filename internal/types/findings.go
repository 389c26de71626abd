// Package types holds the data model shared by the scanners, the task
// generator and the LLM layer.
package types

import (
	"fmt"
	"strings"
)

// FileCategory is the coarse classification of a scanned file.
type FileCategory string

const (
	CategorySource         FileCategory = "source"
	CategoryTest           FileCategory = "test"
	CategoryInfrastructure FileCategory = "infrastructure"
	CategoryDocumentation  FileCategory = "documentation"
)

// IsValid checks if the category value is valid
func (c FileCategory) IsValid() bool {
	switch c {
	case CategorySource, CategoryTest, CategoryInfrastructure, CategoryDocumentation:
		return true
	}
	return false
}

// Severity ranks a static-analysis finding. Critical > High > Medium > Low > Info.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// AllSeverities lists severities from most to least severe.
var AllSeverities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo}

// IsValid checks if the severity value is valid
func (s Severity) IsValid() bool {
	return s.Rank() >= 0
}

// Rank returns 0 for critical through 4 for info, -1 for unknown values.
func (s Severity) Rank() int {
	for i, v := range AllSeverities {
		if v == s {
			return i
		}
	}
	return -1
}

// ParseSeverity converts a case-insensitive name into a Severity.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToLower(strings.TrimSpace(s)))
	if !sev.IsValid() {
		return "", fmt.Errorf("invalid severity: %q", s)
	}
	return sev, nil
}

// IssueCategory describes what kind of problem an Issue is.
type IssueCategory string

const (
	IssueSecurity        IssueCategory = "security"
	IssueQuality         IssueCategory = "quality"
	IssuePerformance     IssueCategory = "performance"
	IssueReliability     IssueCategory = "reliability"
	IssueMaintainability IssueCategory = "maintainability"
)

// Issue is a single static-analysis finding. Severity is assigned by the rule
// that produced it and is never changed afterwards.
type Issue struct {
	File       string        `json:"file"`
	Line       int           `json:"line"`
	Severity   Severity      `json:"severity"`
	Category   IssueCategory `json:"category"`
	Message    string        `json:"message"`
	RuleID     string        `json:"rule_id,omitempty"`
	Suggestion string        `json:"suggestion,omitempty"`
}

// TagType identifies an audit annotation marker.
type TagType string

const (
	TagTodo     TagType = "todo"
	TagFixme    TagType = "fixme"
	TagFreeze   TagType = "freeze"
	TagSecurity TagType = "security"
	TagReview   TagType = "review"
	TagHack     TagType = "hack"
	TagNote     TagType = "note"
	TagGeneric  TagType = "tag"
)

// IsValid checks if the tag type value is valid
func (t TagType) IsValid() bool {
	switch t {
	case TagTodo, TagFixme, TagFreeze, TagSecurity, TagReview, TagHack, TagNote, TagGeneric:
		return true
	}
	return false
}

// AuditTag is a structured annotation extracted from a comment.
// Context is the window of source lines around the tag, captured at scan time.
type AuditTag struct {
	Type    TagType `json:"type"`
	File    string  `json:"file"`
	Line    int     `json:"line"`
	Message string  `json:"message"`
	Context string  `json:"context,omitempty"`
}

// FileAnalysis is the result of scanning one file.
type FileAnalysis struct {
	Path     string       `json:"path"`
	Category FileCategory `json:"category"`
	Lines    int          `json:"lines"`
	Issues   []Issue      `json:"issues"`
	Tags     []AuditTag   `json:"tags"`
}

// HasTag reports whether the file carries at least one tag of the given type.
func (fa *FileAnalysis) HasTag(t TagType) bool {
	for _, tag := range fa.Tags {
		if tag.Type == t {
			return true
		}
	}
	return false
}

// IsFrozen reports whether the file is marked as frozen.
func (fa *FileAnalysis) IsFrozen() bool {
	return fa.HasTag(TagFreeze)
}

// CountBySeverity tallies the file's issues per severity.
func (fa *FileAnalysis) CountBySeverity() map[Severity]int {
	counts := make(map[Severity]int, len(AllSeverities))
	for _, issue := range fa.Issues {
		counts[issue.Severity]++
	}
	return counts
}

// MaxSeverity returns the most severe issue in the file, or "" if it has none.
func (fa *FileAnalysis) MaxSeverity() Severity {
	best := Severity("")
	for _, issue := range fa.Issues {
		if best == "" || issue.Severity.Rank() < best.Rank() {
			best = issue.Severity
		}
	}
	return best
}
