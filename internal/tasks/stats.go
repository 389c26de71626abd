package tasks

import "github.com/steveyegge/codeaudit/internal/types"

// Stats counts tasks by priority and source.
type Stats struct {
	Total      int                      `json:"total"`
	ByPriority map[types.Priority]int   `json:"by_priority"`
	BySource   map[types.TaskSource]int `json:"by_source"`
}

// ComputeStats tallies tasks.
func ComputeStats(tasks []types.Task) Stats {
	s := Stats{
		Total:      len(tasks),
		ByPriority: make(map[types.Priority]int, len(types.AllPriorities)),
		BySource:   make(map[types.TaskSource]int),
	}
	for _, t := range tasks {
		s.ByPriority[t.Priority]++
		s.BySource[t.Source]++
	}
	return s
}
