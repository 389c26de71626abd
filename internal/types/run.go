package types

import (
	"fmt"
	"time"
)

// RunMode distinguishes static-only runs from runs with an LLM review.
type RunMode string

const (
	ModeStatic RunMode = "static"
	ModeLLM    RunMode = "llm"
)

// RunStatus is the outcome of an audit run.
type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	// RunPartial means some LLM batches failed, were skipped for budget or
	// were cut off by cancellation.
	RunPartial RunStatus = "partial"
	RunFailed  RunStatus = "failed"
)

// Run is one recorded audit of a target directory.
type Run struct {
	ID         string    `json:"id"`
	Target     string    `json:"target"`
	Branch     string    `json:"branch,omitempty"`
	Commit     string    `json:"commit,omitempty"`
	Mode       RunMode   `json:"mode"`
	Status     RunStatus `json:"status"`
	Files      int       `json:"files"`
	TaskCount  int       `json:"task_count"`
	LLMCalls   int       `json:"llm_calls"`
	Cost       float64   `json:"cost"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Validate checks if the run has valid field values
func (r *Run) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("id is required")
	}
	if r.Target == "" {
		return fmt.Errorf("target is required")
	}
	switch r.Mode {
	case ModeStatic, ModeLLM:
	default:
		return fmt.Errorf("invalid mode: %s", r.Mode)
	}
	switch r.Status {
	case RunCompleted, RunPartial, RunFailed:
	default:
		return fmt.Errorf("invalid status: %s", r.Status)
	}
	if r.StartedAt.IsZero() {
		return fmt.Errorf("started_at is required")
	}
	if !r.FinishedAt.IsZero() && r.FinishedAt.Before(r.StartedAt) {
		return fmt.Errorf("finished_at (%s) is before started_at (%s)",
			r.FinishedAt.Format(time.RFC3339), r.StartedAt.Format(time.RFC3339))
	}
	return nil
}

// Duration is the wall time of the run, zero while unfinished.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
