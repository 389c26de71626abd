package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

func writeCSV(w io.Writer, r *Report) error {
	cw := csv.NewWriter(w)

	var rows [][]string
	switch r.Kind {
	case KindStatic:
		rows = append(rows, []string{"file", "line", "severity", "category", "rule_id", "message"})
		for _, issue := range Issues(r.Files) {
			rows = append(rows, []string{
				issue.File, strconv.Itoa(issue.Line), string(issue.Severity),
				string(issue.Category), issue.RuleID, issue.Message,
			})
		}
	case KindTags:
		rows = append(rows, []string{"file", "line", "type", "message"})
		for _, tag := range r.Tags {
			rows = append(rows, []string{tag.File, strconv.Itoa(tag.Line), string(tag.Type), tag.Message})
		}
	case KindTasks, KindAudit:
		rows = append(rows, []string{"id", "priority", "source", "file", "line", "title", "labels"})
		for _, t := range taskList(r) {
			line := ""
			if t.Line > 0 {
				line = strconv.Itoa(t.Line)
			}
			rows = append(rows, []string{
				t.ID, string(t.Priority), string(t.Source), t.File, line, t.Title,
				strings.Join(t.Labels, ";"),
			})
		}
	default:
		return fmt.Errorf("unknown report kind: %s", r.Kind)
	}

	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("writing csv report: %w", err)
	}
	return nil
}
