package gitinfo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeHead(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".git", "HEAD"), []byte(content), 0o644))
}

func TestBranch(t *testing.T) {
	dir := t.TempDir()
	writeHead(t, dir, "ref: refs/heads/feature/parser\n")

	branch, err := Branch(dir)
	require.NoError(t, err)
	assert.Equal(t, "feature/parser", branch)
}

func TestBranchDetached(t *testing.T) {
	dir := t.TempDir()
	writeHead(t, dir, "4f2d9c0a8b1e3d5f7a9c1e3b5d7f9a1c3e5b7d9f\n")

	branch, err := Branch(dir)
	require.NoError(t, err)
	assert.Equal(t, "detached", branch)
}

func TestBranchNotARepo(t *testing.T) {
	_, err := Branch(t.TempDir())
	assert.ErrorIs(t, err, ErrNotGitRepo)
}

func TestDescribe(t *testing.T) {
	dir := t.TempDir()
	writeHead(t, dir, "ref: refs/heads/main\n")
	assert.Contains(t, Describe(dir), "branch main")

	plain := t.TempDir()
	assert.Equal(t, plain, Describe(plain))
}
