package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/fleetbooks/recon/internal/gitops"
	"github.com/fleetbooks/recon/internal/journal"
	"github.com/fleetbooks/recon/internal/ledger"
	"github.com/fleetbooks/recon/internal/model"
)

// BankFile is the bank ledger location relative to the books directory.
var BankFile = filepath.Join(journal.Dir, "bank.csv")

// FileStore keeps the bank ledger in ledger/bank.csv and pairs in the
// per-month reconciled.csv journal. When a git repo is attached every write
// is committed; a failed git commit is logged and does not fail the write.
type FileStore struct {
	mu      sync.Mutex
	root    string
	journal *journal.Service
	repo    *gitops.Repo
	author  gitops.Author
	log     *zap.Logger
	last    string
}

// FileOption configures a FileStore.
type FileOption func(*FileStore)

// WithGit commits every write to repo as author.
func WithGit(repo *gitops.Repo, author gitops.Author) FileOption {
	return func(s *FileStore) {
		s.repo = repo
		s.author = author
	}
}

// WithFileLogger sets the logger.
func WithFileLogger(log *zap.Logger) FileOption {
	return func(s *FileStore) { s.log = log }
}

// NewFileStore returns a FileStore rooted at a books directory.
func NewFileStore(root string, opts ...FileOption) *FileStore {
	s := &FileStore{
		root:    root,
		journal: journal.NewService(root),
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BankTransactions implements Store.
func (s *FileStore) BankTransactions(ctx context.Context) ([]model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readBank()
}

// AddBankTransactions implements Store.
func (s *FileStore) AddBankTransactions(ctx context.Context, txns []model.Transaction) error {
	if len(txns) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.readBank()
	if err != nil {
		return err
	}
	seen := make(map[string]bool, len(existing)+len(txns))
	for _, t := range existing {
		seen[t.ID] = true
	}
	for _, t := range txns {
		if seen[t.ID] {
			return fmt.Errorf("bank ledger: %w: %s", ledger.ErrDuplicateID, t.ID)
		}
		seen[t.ID] = true
	}

	path := filepath.Join(s.root, BankFile)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating ledger dir: %w", err)
	}
	_, statErr := os.Stat(path)
	isNew := errors.Is(statErr, fs.ErrNotExist)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening bank ledger: %w", err)
	}
	defer f.Close()

	if err := WriteBank(f, txns, isNew); err != nil {
		return fmt.Errorf("writing bank ledger: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing bank ledger: %w", err)
	}

	s.commit(ctx, fmt.Sprintf("import: %d bank transactions", len(txns)))
	return nil
}

// Pairs implements Store.
func (s *FileStore) Pairs(ctx context.Context) ([]model.ReconciledPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.journal.Pairs()
}

// CommitReconciliation implements Store and reconcile.Committer.
func (s *FileStore) CommitReconciliation(ctx context.Context, pair model.ReconciledPair) (model.ReconciledPair, error) {
	if err := ctx.Err(); err != nil {
		return model.ReconciledPair{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.journal.Append(pair)
	if err != nil {
		return model.ReconciledPair{}, err
	}
	s.log.Info("pair recorded",
		zap.String("pair_id", stored.ID),
		zap.Int("bank_items", len(stored.BankItems)),
		zap.Int("system_items", len(stored.SystemItems)),
	)
	s.commit(ctx, "reconcile: "+stored.ID)
	return stored, nil
}

// LastCommit returns the hash of the most recent git commit made by this
// store, or "" if none was made.
func (s *FileStore) LastCommit() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Close implements Store.
func (s *FileStore) Close() error { return nil }

func (s *FileStore) commit(ctx context.Context, message string) {
	s.last = ""
	if s.repo == nil {
		return
	}
	hash, err := s.repo.Commit(ctx, message, s.author, filepath.Join(s.root, journal.Dir))
	if err != nil {
		s.log.Warn("git commit failed", zap.String("message", message), zap.Error(err))
		return
	}
	s.last = hash
}

func (s *FileStore) readBank() ([]model.Transaction, error) {
	f, err := os.Open(filepath.Join(s.root, BankFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening bank ledger: %w", err)
	}
	defer f.Close()
	return ReadBank(f)
}
