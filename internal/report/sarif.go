package report

import (
	"fmt"
	"io"

	"github.com/owenrumney/go-sarif/v2/sarif"

	"github.com/steveyegge/codeaudit/internal/types"
)

const (
	toolName = "codeaudit"
	toolURI  = "https://github.com/steveyegge/codeaudit"
)

func writeSARIF(w io.Writer, r *Report) error {
	report, err := sarif.New(sarif.Version210)
	if err != nil {
		return fmt.Errorf("failed to create SARIF report: %w", err)
	}

	run := sarif.NewRunWithInformationURI(toolName, toolURI)
	switch r.Kind {
	case KindStatic:
		addIssues(run, r.Files)
	case KindTags:
		addTags(run, r.Tags)
	case KindTasks, KindAudit:
		addTasks(run, taskList(r))
	default:
		return fmt.Errorf("unknown report kind: %s", r.Kind)
	}
	report.AddRun(run)

	if err := report.PrettyWrite(w); err != nil {
		return fmt.Errorf("writing sarif report: %w", err)
	}
	return nil
}

func addIssues(run *sarif.Run, files []types.FileAnalysis) {
	for _, issue := range Issues(files) {
		ruleID := issue.RuleID
		if ruleID == "" {
			ruleID = string(issue.Category)
		}
		level := severityLevel(issue.Severity)
		run.AddRule(ruleID).
			WithDescription(string(issue.Category)).
			WithDefaultConfiguration(&sarif.ReportingConfiguration{Level: level})

		result := sarif.NewRuleResult(ruleID).
			WithMessage(sarif.NewTextMessage(issue.Message)).
			WithLevel(level).
			WithLocations([]*sarif.Location{location(issue.File, issue.Line)})
		run.AddResult(result)
	}
}

func addTags(run *sarif.Run, tags []types.AuditTag) {
	for _, tag := range tags {
		ruleID := "tag/" + string(tag.Type)
		run.AddRule(ruleID).WithDescription(fmt.Sprintf("%s annotation", tag.Type))

		msg := tag.Message
		if msg == "" {
			msg = fmt.Sprintf("%s tag without a message", tag.Type)
		}
		result := sarif.NewRuleResult(ruleID).
			WithMessage(sarif.NewTextMessage(msg)).
			WithLevel("note").
			WithLocations([]*sarif.Location{location(tag.File, tag.Line)})
		run.AddResult(result)
	}
}

func addTasks(run *sarif.Run, list []types.Task) {
	for _, t := range list {
		ruleID := "task/" + string(t.Source)
		run.AddRule(ruleID).WithDescription(fmt.Sprintf("%s task", t.Source))

		result := sarif.NewRuleResult(ruleID).
			WithMessage(sarif.NewTextMessage(t.Title)).
			WithLevel(priorityLevel(t.Priority)).
			WithLocations([]*sarif.Location{location(t.File, t.Line)})
		result.PartialFingerprints = map[string]interface{}{"codeaudit/v1": t.ID}
		run.AddResult(result)
	}
}

func location(file string, line int) *sarif.Location {
	region := sarif.NewRegion()
	if line > 0 {
		region.WithStartLine(line)
	}
	return sarif.NewLocation().WithPhysicalLocation(
		sarif.NewPhysicalLocation().
			WithArtifactLocation(sarif.NewArtifactLocation().WithUri(file)).
			WithRegion(region),
	)
}

func severityLevel(s types.Severity) string {
	switch s {
	case types.SeverityCritical, types.SeverityHigh:
		return "error"
	case types.SeverityMedium:
		return "warning"
	default:
		return "note"
	}
}

func priorityLevel(p types.Priority) string {
	return severityLevel(types.Severity(p))
}
