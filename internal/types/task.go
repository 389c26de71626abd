package types

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Priority is the urgency of a generated Task.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// AllPriorities lists priorities from most to least urgent.
var AllPriorities = []Priority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow}

// Rank returns 0 for critical through 3 for low, -1 for unknown values.
func (p Priority) Rank() int {
	for i, v := range AllPriorities {
		if v == p {
			return i
		}
	}
	return -1
}

// IsValid checks if the priority value is valid
func (p Priority) IsValid() bool {
	return p.Rank() >= 0
}

// Higher reports whether p is strictly more urgent than other.
func (p Priority) Higher(other Priority) bool {
	if !other.IsValid() {
		return p.IsValid()
	}
	return p.IsValid() && p.Rank() < other.Rank()
}

// PriorityForSeverity maps an issue severity onto a task priority.
func PriorityForSeverity(s Severity) Priority {
	switch s {
	case SeverityCritical:
		return PriorityCritical
	case SeverityHigh:
		return PriorityHigh
	case SeverityMedium:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// TaskSource records where a task came from.
type TaskSource string

const (
	SourceTag             TaskSource = "tag"
	SourceIssue           TaskSource = "issue"
	SourceFrozenViolation TaskSource = "frozen-violation"
	SourceLLM             TaskSource = "llm"
)

// Task is the unit of actionable output.
type Task struct {
	ID          string     `json:"id"`
	Priority    Priority   `json:"priority"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Source      TaskSource `json:"source"`
	Labels      []string   `json:"labels"`
	File        string     `json:"file"`
	Line        int        `json:"line,omitempty"`
	// Message is the raw text the dedup key is derived from.
	Message string `json:"message"`
}

// Validate checks if the task has valid field values
func (t *Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("id is required")
	}
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if !t.Priority.IsValid() {
		return fmt.Errorf("invalid priority: %s", t.Priority)
	}
	switch t.Source {
	case SourceTag, SourceIssue, SourceFrozenViolation, SourceLLM:
	default:
		return fmt.Errorf("invalid source: %s", t.Source)
	}
	return nil
}

// HasLabel reports whether the task carries the given label.
func (t *Task) HasLabel(label string) bool {
	for _, l := range t.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// MergeLabels returns the sorted union of two label sets.
func MergeLabels(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for _, l := range a {
		seen[l] = struct{}{}
	}
	for _, l := range b {
		seen[l] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for l := range seen {
		if l != "" {
			out = append(out, l)
		}
	}
	sort.Strings(out)
	return out
}

// SortTasks orders tasks by priority, then file, line and ID.
func SortTasks(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if a.Priority.Rank() != b.Priority.Rank() {
			return a.Priority.Rank() < b.Priority.Rank()
		}
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.ID < b.ID
	})
}

// FileAudit is one per-file record returned by the LLM reviewer.
type FileAudit struct {
	File             string         `json:"file"`
	Reachable        bool           `json:"reachable"`
	ComplianceIssues ComplianceList `json:"compliance_issues"`
	Incomplete       bool           `json:"incomplete"`
	SuggestedTags    []string       `json:"suggested_tags"`
	Improvement      string         `json:"improvement"`
}

// UnmarshalJSON treats a missing "reachable" field as reachable.
func (a *FileAudit) UnmarshalJSON(data []byte) error {
	type plain FileAudit
	p := plain{Reachable: true}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*a = FileAudit(p)
	return nil
}

// ComplianceList accepts compliance issues either as plain strings or as
// objects with a description and an optional type.
type ComplianceList []string

// UnmarshalJSON implements json.Unmarshaler.
func (c *ComplianceList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(ComplianceList, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
			continue
		}
		var obj struct {
			Type        string `json:"type"`
			Description string `json:"description"`
		}
		if err := json.Unmarshal(item, &obj); err != nil {
			return fmt.Errorf("compliance issue: %w", err)
		}
		if obj.Type != "" {
			out = append(out, fmt.Sprintf("[%s] %s", strings.ToLower(obj.Type), obj.Description))
		} else {
			out = append(out, obj.Description)
		}
	}
	*c = out
	return nil
}

// CostRecord captures token usage and estimated spend for one LLM call.
type CostRecord struct {
	Provider         string    `json:"provider"`
	Model            string    `json:"model"`
	Operation        string    `json:"operation"`
	PromptTokens     int64     `json:"prompt_tokens"`
	CachedTokens     int64     `json:"cached_tokens"`
	CompletionTokens int64     `json:"completion_tokens"`
	EstimatedCost    float64   `json:"estimated_cost"`
	RecordedAt       time.Time `json:"recorded_at"`
}

// TotalTokens is prompt plus completion tokens.
func (r CostRecord) TotalTokens() int64 {
	return r.PromptTokens + r.CompletionTokens
}
