package deduplication

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/steveyegge/codeaudit/internal/types"
)

// Deduplicator merges tasks that describe the same problem.
type Deduplicator struct {
	config Config
}

// New creates a deduplicator. The config is validated.
func New(cfg Config) (*Deduplicator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dedup config: %w", err)
	}
	return &Deduplicator{config: cfg}, nil
}

// DuplicatePair records that Dropped was merged into Kept.
type DuplicatePair struct {
	Kept    string `json:"kept"`
	Dropped string `json:"dropped"`
}

// Stats summarizes one deduplication pass.
type Stats struct {
	TotalCandidates int `json:"total_candidates"`
	UniqueCount     int `json:"unique_count"`
	DuplicateCount  int `json:"duplicate_count"`
}

// Result is the outcome of Deduplicate.
type Result struct {
	// Tasks is sorted by priority, file, line and ID.
	Tasks          []types.Task    `json:"tasks"`
	DuplicatePairs []DuplicatePair `json:"duplicate_pairs,omitempty"`
	Stats          Stats           `json:"stats"`
}

type dedupKey struct {
	file    string
	line    int
	message string
}

// Deduplicate collapses tasks with the same key. The input slice is not
// modified.
func (d *Deduplicator) Deduplicate(tasks []types.Task) *Result {
	result := &Result{Stats: Stats{TotalCandidates: len(tasks)}}

	groups := make(map[dedupKey]int, len(tasks))
	kept := make([]types.Task, 0, len(tasks))

	for _, task := range tasks {
		task.Labels = types.MergeLabels(task.Labels, nil)
		msg := NormalizeMessage(task.Message)
		if len(msg) < d.config.MinMessageLength || msg == "" {
			kept = append(kept, task)
			continue
		}
		key := dedupKey{file: task.File, line: task.Line, message: msg}
		if d.config.IgnoreLine {
			key.line = 0
		}
		idx, seen := groups[key]
		if !seen {
			groups[key] = len(kept)
			kept = append(kept, task)
			continue
		}
		winner, loser := pick(kept[idx], task)
		winner.Labels = types.MergeLabels(winner.Labels, loser.Labels)
		kept[idx] = winner
		result.DuplicatePairs = append(result.DuplicatePairs, DuplicatePair{Kept: winner.ID, Dropped: loser.ID})
	}

	types.SortTasks(kept)
	result.Tasks = kept
	result.Stats.UniqueCount = len(kept)
	result.Stats.DuplicateCount = len(tasks) - len(kept)
	return result
}

// pick returns the survivor and the task merged into it.
func pick(a, b types.Task) (types.Task, types.Task) {
	if b.Priority.Higher(a.Priority) {
		return b, a
	}
	if a.Priority.Higher(b.Priority) {
		return a, b
	}
	if b.ID < a.ID {
		return b, a
	}
	return a, b
}

// NormalizeMessage lower-cases s, collapses whitespace and trims trailing
// punctuation.
func NormalizeMessage(s string) string {
	fields := strings.Fields(strings.ToLower(s))
	return strings.TrimRightFunc(strings.Join(fields, " "), unicode.IsPunct)
}
