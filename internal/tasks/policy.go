package tasks

import (
	"fmt"
	"path"
	"strings"

	"github.com/steveyegge/codeaudit/internal/types"
)

// Admission decides whether an issue of a given severity becomes a task.
type Admission int

const (
	// AdmitAlways turns every issue into a task.
	AdmitAlways Admission = iota
	// AdmitOnCriticalPath admits issues in files matching a critical-path marker.
	AdmitOnCriticalPath
	// AdmitInHotspot admits issues in files with more issues than the hotspot threshold.
	AdmitInHotspot
	// AdmitNever drops the issue.
	AdmitNever
)

func (a Admission) String() string {
	switch a {
	case AdmitAlways:
		return "always"
	case AdmitOnCriticalPath:
		return "critical-path"
	case AdmitInHotspot:
		return "hotspot"
	case AdmitNever:
		return "never"
	default:
		return "unknown"
	}
}

// ParseAdmission converts a config value into an Admission.
func ParseAdmission(s string) (Admission, error) {
	for _, a := range []Admission{AdmitAlways, AdmitOnCriticalPath, AdmitInHotspot, AdmitNever} {
		if a.String() == strings.ToLower(strings.TrimSpace(s)) {
			return a, nil
		}
	}
	return 0, fmt.Errorf("invalid admission %q (want always, critical-path, hotspot or never)", s)
}

// DefaultCriticalPathMarkers are path fragments that mark code whose medium
// findings still deserve a task.
var DefaultCriticalPathMarkers = []string{
	"auth",
	"security",
	"crypto",
	"payment",
	"billing",
	"kill_switch",
	"circuit_breaker",
	"risk",
	"execution",
}

// DefaultEntryPoints are file names treated as critical wherever they live.
var DefaultEntryPoints = []string{"main.go", "main.rs", "main.py"}

// DefaultHotspotThreshold is the issue count a file must exceed before its
// low and info findings are admitted.
const DefaultHotspotThreshold = 5

// Policy is the severity filter applied in the issue pass.
type Policy struct {
	Admissions          map[types.Severity]Admission
	CriticalPathMarkers []string
	EntryPoints         []string
	HotspotThreshold    int
}

// DefaultPolicy returns the standard severity table.
func DefaultPolicy() Policy {
	return Policy{
		Admissions: map[types.Severity]Admission{
			types.SeverityCritical: AdmitAlways,
			types.SeverityHigh:     AdmitAlways,
			types.SeverityMedium:   AdmitOnCriticalPath,
			types.SeverityLow:      AdmitInHotspot,
			types.SeverityInfo:     AdmitInHotspot,
		},
		CriticalPathMarkers: append([]string(nil), DefaultCriticalPathMarkers...),
		EntryPoints:         append([]string(nil), DefaultEntryPoints...),
		HotspotThreshold:    DefaultHotspotThreshold,
	}
}

// Validate rejects tables that would let critical or high issues go
// untracked.
func (p Policy) Validate() error {
	for _, sev := range []types.Severity{types.SeverityCritical, types.SeverityHigh} {
		a, ok := p.Admissions[sev]
		if !ok {
			return fmt.Errorf("no admission rule for %s issues", sev)
		}
		if a != AdmitAlways {
			return fmt.Errorf("%s issues must always be admitted (got %s)", sev, a)
		}
	}
	for sev := range p.Admissions {
		if !sev.IsValid() {
			return fmt.Errorf("unknown severity in admission table: %q", sev)
		}
	}
	if p.HotspotThreshold < 0 {
		return fmt.Errorf("hotspot_threshold cannot be negative (got %d)", p.HotspotThreshold)
	}
	return nil
}

// Admit reports whether issue, found in fa, becomes a task.
func (p Policy) Admit(issue types.Issue, fa *types.FileAnalysis) bool {
	a, ok := p.Admissions[issue.Severity]
	if !ok {
		a = AdmitNever
	}
	switch a {
	case AdmitAlways:
		return true
	case AdmitOnCriticalPath:
		return p.IsCriticalPath(fa.Path)
	case AdmitInHotspot:
		return len(fa.Issues) > p.HotspotThreshold
	default:
		return false
	}
}

// IsCriticalPath reports whether p matches a marker or names an entry point.
func (p Policy) IsCriticalPath(filePath string) bool {
	lower := strings.ToLower(filePath)
	for _, m := range p.CriticalPathMarkers {
		if m != "" && strings.Contains(lower, strings.ToLower(m)) {
			return true
		}
	}
	base := path.Base(strings.ReplaceAll(lower, "\\", "/"))
	for _, e := range p.EntryPoints {
		if base == strings.ToLower(e) {
			return true
		}
	}
	return false
}

// tagPriorities maps tag types to task priorities. Freeze is absent: it is
// handled by the frozen-violation pass and never yields a task of its own.
var tagPriorities = map[types.TagType]types.Priority{
	types.TagSecurity: types.PriorityCritical,
	types.TagFixme:    types.PriorityHigh,
	types.TagReview:   types.PriorityMedium,
	types.TagTodo:     types.PriorityMedium,
	types.TagHack:     types.PriorityMedium,
	types.TagNote:     types.PriorityLow,
	types.TagGeneric:  types.PriorityLow,
}

// TagPriority returns the priority for a tag, and false if the tag does not
// produce a task.
func TagPriority(t types.TagType, message string) (types.Priority, bool) {
	if t == types.TagGeneric && strings.Contains(strings.ToLower(message), "incomplete") {
		return types.PriorityHigh, true
	}
	p, ok := tagPriorities[t]
	return p, ok
}
