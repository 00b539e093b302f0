// Package gitinfo reads lightweight repository state for prompt context.
package gitinfo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrNotGitRepo indicates the directory is not a Git repository.
	ErrNotGitRepo = errors.New("not a git repository")
)

// Branch reads the current branch from .git/HEAD. A detached HEAD
// reports "detached". The engine only needs the name for prompt
// context, so shelling out to git is avoided.
func Branch(dir string) (string, error) {
	gitDir := filepath.Join(dir, ".git")
	if _, err := os.Stat(gitDir); os.IsNotExist(err) {
		return "", fmt.Errorf("%w: %s", ErrNotGitRepo, dir)
	}

	content, err := os.ReadFile(filepath.Join(gitDir, "HEAD"))
	if err != nil {
		return "", fmt.Errorf("reading HEAD: %w", err)
	}

	head := strings.TrimSpace(string(content))
	if ref, ok := strings.CutPrefix(head, "ref: refs/heads/"); ok && ref != "" {
		return ref, nil
	}
	return "detached", nil
}

// Describe returns a one-line summary of the working directory for
// inclusion in backend prompts, degrading to the bare path when the
// directory is not a repository.
func Describe(dir string) string {
	branch, err := Branch(dir)
	if err != nil {
		return dir
	}
	return fmt.Sprintf("%s (branch %s)", dir, branch)
}
