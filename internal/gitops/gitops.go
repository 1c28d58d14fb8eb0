package gitops

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrNothingToCommit is returned when the staged paths carry no changes.
var ErrNothingToCommit = errors.New("nothing to commit")

// Author identifies who a commit is attributed to.
type Author struct {
	Name  string
	Email string
}

func (a Author) String() string {
	return fmt.Sprintf("%s <%s>", a.Name, a.Email)
}

// Repo runs git against one working tree.
type Repo struct {
	Dir string
}

// Open returns a Repo for dir. It does not check that dir is a repository.
func Open(dir string) *Repo {
	return &Repo{Dir: dir}
}

// Init initializes a new git repository at dir.
func Init(ctx context.Context, dir string) (*Repo, error) {
	r := Open(dir)
	if _, err := r.git(ctx, "init", "--quiet"); err != nil {
		return nil, err
	}
	return r, nil
}

// IsRepo reports whether dir is the root of a git repository.
func IsRepo(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}

// Commit stages paths (all changes when none are given) and commits them.
// Returns the short commit hash.
func (r *Repo) Commit(ctx context.Context, message string, author Author, paths ...string) (string, error) {
	add := []string{"add", "-A", "--"}
	if len(paths) == 0 {
		add = append(add, ".")
	}
	for _, p := range paths {
		if filepath.IsAbs(p) {
			rel, err := filepath.Rel(r.Dir, p)
			if err != nil {
				return "", fmt.Errorf("resolving %s: %w", p, err)
			}
			p = rel
		}
		add = append(add, p)
	}
	if _, err := r.git(ctx, add...); err != nil {
		return "", err
	}

	// git diff --cached --quiet exits 1 when something is staged.
	if _, err := r.git(ctx, "diff", "--cached", "--quiet"); err == nil {
		return "", ErrNothingToCommit
	}

	if _, err := r.git(ctx, "commit", "--quiet", "-m", message, "--author", author.String()); err != nil {
		return "", err
	}
	return r.Head(ctx)
}

// Head returns the short hash of HEAD.
func (r *Repo) Head(ctx context.Context) (string, error) {
	out, err := r.git(ctx, "rev-parse", "--short", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (r *Repo) git(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.Dir
	// Commits need a committer identity even on bare CI machines.
	cmd.Env = append(os.Environ(),
		"GIT_COMMITTER_NAME=recon",
		"GIT_COMMITTER_EMAIL=recon@localhost",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %s: %w", args[0], strings.TrimSpace(stderr.String()), err)
	}
	return stdout.String(), nil
}
