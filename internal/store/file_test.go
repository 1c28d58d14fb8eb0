package store

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fleetbooks/recon/internal/config"
	"github.com/fleetbooks/recon/internal/gitops"
	"github.com/fleetbooks/recon/internal/model"
)

func TestBankCSV_RoundTrip(t *testing.T) {
	txns := []model.Transaction{bankTxn("bank-1f2e3d4c-0001", "1500.00", model.Credit)}
	txns[0].Description = `ACME "FREIGHT", INC`

	var buf bytes.Buffer
	require.NoError(t, WriteBank(&buf, txns, true))
	assert.True(t, strings.HasPrefix(buf.String(), "id,date,description,amount,type\n"))

	got, err := ReadBank(&buf)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, txns[0].Description, got[0].Description)
	assert.True(t, got[0].Amount.Equal(txns[0].Amount))
}

func TestUnmarshalBank_Errors(t *testing.T) {
	good := MarshalBank(bankTxn("B1", "1.00", model.Credit))
	tests := []struct {
		col  int
		val  string
		want string
	}{
		{colDate, "2024/08/02", "parsing date"},
		{colAmount, "1,00", "parsing amount"},
		{colType, "refund", "unknown type"},
	}
	for _, tt := range tests {
		rec := append([]string(nil), good...)
		rec[tt.col] = tt.val
		_, err := UnmarshalBank(rec)
		assert.ErrorContains(t, err, tt.want)
	}
}

func gitInit(t *testing.T, dir string) *gitops.Repo {
	t.Helper()
	repo, err := gitops.Init(context.Background(), dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), []byte("books\n"), 0o644))
	_, err = repo.Commit(context.Background(), "init", gitops.Author{Name: "T", Email: "t@example.com"})
	require.NoError(t, err)
	return repo
}

func TestFileStore_CommitsToGit(t *testing.T) {
	dir := t.TempDir()
	repo := gitInit(t, dir)
	s := NewFileStore(dir, WithGit(repo, gitops.Author{Name: "Recon", Email: "recon@example.com"}))
	ctx := context.Background()

	require.NoError(t, s.AddBankTransactions(ctx, []model.Transaction{bankTxn("B1", "150.00", model.Credit)}))
	assert.NotEmpty(t, s.LastCommit())

	stored, err := s.CommitReconciliation(ctx, pairOf(
		[]model.Transaction{bankTxn("B1", "150.00", model.Credit)},
		[]model.Transaction{systemTxn("S1", "150.00", model.Debit)},
	))
	require.NoError(t, err)

	head, err := repo.Head(ctx)
	require.NoError(t, err)
	assert.Equal(t, head, s.LastCommit())

	msg := exec.Command("git", "log", "--format=%s", "-1")
	msg.Dir = dir
	out, err := msg.Output()
	require.NoError(t, err)
	assert.Equal(t, "reconcile: "+stored.ID, strings.TrimSpace(string(out)))
}

func TestFileStore_GitFailureIsNotFatal(t *testing.T) {
	dir := t.TempDir()
	core, logs := observer.New(zap.WarnLevel)
	// Not a repository: every git command fails.
	s := NewFileStore(dir,
		WithGit(gitops.Open(dir), gitops.Author{Name: "Recon", Email: "recon@example.com"}),
		WithFileLogger(zap.New(core)),
	)

	stored, err := s.CommitReconciliation(context.Background(), pairOf(
		[]model.Transaction{bankTxn("B1", "150.00", model.Credit)},
		[]model.Transaction{systemTxn("S1", "150.00", model.Debit)},
	))
	require.NoError(t, err)
	assert.Equal(t, "2024-08-001", stored.ID)
	assert.Empty(t, s.LastCommit())
	assert.Equal(t, 1, logs.FilterMessage("git commit failed").Len())
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	cfg := config.Default("x")
	s, err := Open(ctx, dir, cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)
	assert.Nil(t, s.(*FileStore).repo, "no git repo, no commits")

	cfg.Store.Backend = config.BackendSQLite
	s, err = Open(ctx, dir, cfg, zap.NewNop())
	require.NoError(t, err)
	defer s.Close()
	assert.IsType(t, &SQLStore{}, s)
	assert.FileExists(t, filepath.Join(dir, "ledger", "recon.db"))

	cfg.Store.Backend = "mongo"
	_, err = Open(ctx, dir, cfg, zap.NewNop())
	assert.Error(t, err)
}
