package store

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/fleetbooks/recon/internal/config"
	"github.com/fleetbooks/recon/internal/gitops"
)

// Open returns the backend cfg selects for the books directory at root.
func Open(ctx context.Context, root string, cfg *config.Config, log *zap.Logger) (Store, error) {
	switch cfg.Store.Backend {
	case config.BackendCSV, "":
		opts := []FileOption{WithFileLogger(log)}
		if cfg.Git.AutoCommit && gitops.IsRepo(root) {
			author := gitops.Author{Name: cfg.Git.AuthorName, Email: cfg.Git.AuthorEmail}
			opts = append(opts, WithGit(gitops.Open(root), author))
		}
		return NewFileStore(root, opts...), nil
	case config.BackendSQLite:
		path := cfg.Store.SQLitePath
		if !filepath.IsAbs(path) {
			path = filepath.Join(root, path)
		}
		return OpenSQLite(ctx, path, log)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
