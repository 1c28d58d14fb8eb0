package gitops

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var author = Author{Name: "Test Author", Email: "test@example.com"}

func gitLog(t *testing.T, dir, format string) string {
	t.Helper()
	cmd := exec.Command("git", "log", "--format="+format, "-1")
	cmd.Dir = dir
	out, err := cmd.Output()
	require.NoError(t, err)
	return string(out)
}

func TestInit(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, IsRepo(dir), "empty dir should not be a repo")

	_, err := Init(context.Background(), dir)
	require.NoError(t, err)
	assert.True(t, IsRepo(dir), "initialized dir should be a repo")
}

func TestCommit_All(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	repo, err := Init(ctx, dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.txt"), []byte("hello"), 0o644))

	hash, err := repo.Commit(ctx, "init: test commit", author)
	require.NoError(t, err)
	assert.NotEmpty(t, hash)

	assert.Contains(t, gitLog(t, dir, "%s"), "init: test commit")
	assert.Contains(t, gitLog(t, dir, "%an <%ae>"), "Test Author <test@example.com>")

	head, err := repo.Head(ctx)
	require.NoError(t, err)
	assert.Equal(t, hash, head)
}

func TestCommit_Paths(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	repo, err := Init(ctx, dir)
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "ledger"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ledger", "bank.csv"), []byte("id\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scratch.txt"), []byte("x"), 0o644))

	_, err = repo.Commit(ctx, "reconcile: 2024-08-001", author, filepath.Join(dir, "ledger"))
	require.NoError(t, err)

	status := exec.Command("git", "status", "--porcelain")
	status.Dir = dir
	out, err := status.Output()
	require.NoError(t, err)
	assert.Contains(t, string(out), "scratch.txt")
	assert.NotContains(t, string(out), "bank.csv")
}

func TestCommit_NothingToCommit(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	repo, err := Init(ctx, dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644))
	_, err = repo.Commit(ctx, "first", author)
	require.NoError(t, err)

	_, err = repo.Commit(ctx, "second", author)
	assert.ErrorIs(t, err, ErrNothingToCommit)
}
