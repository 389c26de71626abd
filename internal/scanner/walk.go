package scanner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/steveyegge/codeaudit/internal/types"
)

// binarySniffLen is how much of a file is checked for NUL bytes.
const binarySniffLen = 8 * 1024

// DefaultSkipDirs are directory globs never descended into.
var DefaultSkipDirs = []string{
	"**/.git",
	"**/.hg",
	"**/.svn",
	"**/node_modules",
	"**/vendor",
	"**/target",
	"**/dist",
	"**/.venv",
	"**/venv",
	"**/__pycache__",
	"**/.idea",
	"**/.vscode",
	"**/.codeaudit",
}

// WalkOptions controls file enumeration and loading.
type WalkOptions struct {
	Workers     int
	MaxFileSize int64
	SkipDirs    []string
}

// DefaultWalkOptions returns sensible defaults for a local checkout.
func DefaultWalkOptions() WalkOptions {
	return WalkOptions{
		Workers:     runtime.NumCPU(),
		MaxFileSize: 1 << 20,
		SkipDirs:    DefaultSkipDirs,
	}
}

// SkipStats counts files that were not analyzed.
type SkipStats struct {
	Binary     int `json:"binary"`
	TooLarge   int `json:"too_large"`
	Unreadable int `json:"unreadable"`
}

// Total is the number of skipped files.
func (s SkipStats) Total() int {
	return s.Binary + s.TooLarge + s.Unreadable
}

// WalkResult is the outcome of one walk.
type WalkResult struct {
	Files   []types.FileAnalysis
	Skipped SkipStats
}

// AnalyzeFunc turns a loaded file into its analysis. It is called from
// several goroutines at once and must not share mutable state.
type AnalyzeFunc func(f *File) types.FileAnalysis

// Walker enumerates files under a root and analyzes them on a bounded pool.
type Walker struct {
	opts   WalkOptions
	logger *zap.Logger
}

// NewWalker creates a walker. A nil logger is replaced by a no-op logger.
func NewWalker(opts WalkOptions, logger *zap.Logger) *Walker {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Walker{opts: opts, logger: logger}
}

type skipKind int

const (
	notSkipped skipKind = iota
	skipBinary
	skipTooLarge
	skipUnreadable
)

// Walk analyzes every eligible file under root. Results are sorted by path,
// so the output does not depend on scheduling.
func (w *Walker) Walk(ctx context.Context, root string, analyze AnalyzeFunc) (*WalkResult, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}

	var paths []string
	var skipped SkipStats
	if !info.IsDir() {
		root, paths = filepath.Dir(root), []string{filepath.Base(root)}
	} else {
		paths, skipped.Unreadable, err = w.enumerate(root)
		if err != nil {
			return nil, err
		}
	}

	results := make([]types.FileAnalysis, len(paths))
	kinds := make([]skipKind, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.opts.Workers)
	for i, rel := range paths {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			content, kind := w.load(filepath.Join(root, filepath.FromSlash(rel)))
			if kind != notSkipped {
				kinds[i] = kind
				return nil
			}
			results[i] = analyze(NewFile(rel, content))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}

	out := &WalkResult{Files: make([]types.FileAnalysis, 0, len(paths)), Skipped: skipped}
	for i := range paths {
		switch kinds[i] {
		case skipBinary:
			out.Skipped.Binary++
		case skipTooLarge:
			out.Skipped.TooLarge++
		case skipUnreadable:
			out.Skipped.Unreadable++
		default:
			out.Files = append(out.Files, results[i])
		}
	}
	sort.Slice(out.Files, func(i, j int) bool {
		return out.Files[i].Path < out.Files[j].Path
	})

	w.logger.Debug("scan complete",
		zap.String("root", root),
		zap.Int("files", len(out.Files)),
		zap.Int("skipped", out.Skipped.Total()))
	return out, nil
}

// enumerate lists regular files under root as slash-separated relative
// paths. Unreadable directories are counted and skipped.
func (w *Walker) enumerate(root string) ([]string, int, error) {
	var paths []string
	unreadable := 0
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root {
				return err
			}
			unreadable++
			w.logger.Debug("skipping unreadable path", zap.String("path", p), zap.Error(err))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if rel != "." && w.skipDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("walk %s: %w", root, err)
	}
	return paths, unreadable, nil
}

func (w *Walker) skipDir(rel string) bool {
	for _, pattern := range w.opts.SkipDirs {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// load reads a file, classifying it as skipped when it is too large, binary
// or unreadable.
func (w *Walker) load(p string) ([]byte, skipKind) {
	f, err := os.Open(p)
	if err != nil {
		return nil, skipUnreadable
	}
	defer f.Close()

	if w.opts.MaxFileSize > 0 {
		info, err := f.Stat()
		if err != nil {
			return nil, skipUnreadable
		}
		if info.Size() > w.opts.MaxFileSize {
			return nil, skipTooLarge
		}
	}

	content, err := io.ReadAll(f)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, skipUnreadable
	}
	sniff := content
	if len(sniff) > binarySniffLen {
		sniff = sniff[:binarySniffLen]
	}
	if bytes.IndexByte(sniff, 0) >= 0 {
		return nil, skipBinary
	}
	return content, notSkipped
}
