package ai

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"go.uber.org/zap"
)

// DebugDirEnv names the directory that receives unusable responses.
const DebugDirEnv = "AUDIT_DEBUG_DIR"

const (
	// DumpFailedResponse holds completion text no response format accepted.
	DumpFailedResponse = "questionnaire-failed-response"
	// DumpResponseStructure holds an envelope with no recognized content path.
	DumpResponseStructure = "llm-response-structure"
	// DumpErrorResponse holds the body of a non-2xx response.
	DumpErrorResponse = "llm-error-response"
)

// Diagnostics writes raw provider output to disk for later inspection. A zero
// directory disables it.
type Diagnostics struct {
	dir    string
	seq    atomic.Int64
	logger *zap.Logger
}

// NewDiagnostics returns a writer rooted at dir.
func NewDiagnostics(dir string, logger *zap.Logger) *Diagnostics {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Diagnostics{dir: dir, logger: logger}
}

// DiagnosticsFromEnv reads AUDIT_DEBUG_DIR.
func DiagnosticsFromEnv(logger *zap.Logger) *Diagnostics {
	return NewDiagnostics(os.Getenv(DebugDirEnv), logger)
}

// Enabled reports whether dumps are written.
func (d *Diagnostics) Enabled() bool {
	return d != nil && d.dir != ""
}

// Dir is the dump directory.
func (d *Diagnostics) Dir() string {
	if d == nil {
		return ""
	}
	return d.dir
}

// Dump writes content to <dir>/<kind>-<n>.txt and returns the path. Concurrent
// calls never share a file. Failures are logged and returned but callers treat
// them as non-fatal.
func (d *Diagnostics) Dump(kind string, content []byte) (string, error) {
	if !d.Enabled() {
		return "", nil
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		d.logger.Warn("failed to create debug dir", zap.String("dir", d.dir), zap.Error(err))
		return "", fmt.Errorf("create debug dir: %w", err)
	}
	n := d.seq.Add(1)
	path := filepath.Join(d.dir, fmt.Sprintf("%s-%03d.txt", kind, n))
	if err := os.WriteFile(path, content, 0o644); err != nil {
		d.logger.Warn("failed to save debug response", zap.String("path", path), zap.Error(err))
		return "", fmt.Errorf("write debug dump: %w", err)
	}
	d.logger.Warn("saved unusable LLM response",
		zap.String("path", path),
		zap.Int("bytes", len(content)),
		zap.String("preview", truncate(string(content), 500)))
	return path, nil
}
