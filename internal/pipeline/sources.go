package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/steveyegge/codeaudit/internal/prompt"
	"github.com/steveyegge/codeaudit/internal/scanner"
)

// readSources loads the selected files for the LLM prompt, redacting
// secrets. Files that vanished or became unreadable since the scan are
// skipped and counted.
func readSources(root string, paths []string) ([]prompt.Source, int) {
	out := make([]prompt.Source, 0, len(paths))
	missing := 0
	for _, rel := range paths {
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			missing++
			continue
		}
		out = append(out, prompt.Source{Path: rel, Content: scanner.RedactSecrets(string(data))})
	}
	return out, missing
}

// scanRoot is the directory that scanned paths are relative to.
func scanRoot(target string) (string, error) {
	info, err := os.Stat(target)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", target, err)
	}
	if info.IsDir() {
		return target, nil
	}
	return filepath.Dir(target), nil
}
