package pipeline

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// GitInfo is repository metadata recorded with a run.
type GitInfo struct {
	Root   string `json:"root"`
	Branch string `json:"branch,omitempty"`
	Commit string `json:"commit,omitempty"`
	// Subfolder is the audited directory relative to Root, "" for the root.
	Subfolder string `json:"subfolder,omitempty"`
}

// DetectGit finds the repository containing dir. It returns (nil, nil) when
// dir is not inside a git work tree.
func DetectGit(dir string) (*GitInfo, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", dir, err)
	}

	repo, err := git.PlainOpenWithOptions(abs, &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}

	info := &GitInfo{}
	if wt, err := repo.Worktree(); err == nil {
		info.Root = wt.Filesystem.Root()
		if rel, err := filepath.Rel(info.Root, abs); err == nil && rel != "." {
			info.Subfolder = filepath.ToSlash(rel)
		}
	}

	head, err := repo.Head()
	switch {
	case errors.Is(err, plumbing.ErrReferenceNotFound):
		// Fresh repository without commits.
		return info, nil
	case err != nil:
		return info, fmt.Errorf("failed to read HEAD: %w", err)
	}
	if head.Name().IsBranch() {
		info.Branch = head.Name().Short()
	}
	info.Commit = head.Hash().String()
	return info, nil
}
