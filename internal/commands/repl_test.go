package commands

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fleetbooks/recon/internal/activity"
	"github.com/fleetbooks/recon/internal/config"
	"github.com/fleetbooks/recon/internal/model"
	"github.com/fleetbooks/recon/internal/records"
	"github.com/fleetbooks/recon/internal/store"
)

func testBooks(t *testing.T) *books {
	t.Helper()
	dir := t.TempDir()
	ctx := context.Background()

	st := store.NewFileStore(dir)
	day := time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, st.AddBankTransactions(ctx, []model.Transaction{
		{ID: "B1", Date: day, Description: "ACME FREIGHT ACH PMT", Amount: decimal.RequireFromString("150.00"), Type: model.Credit},
		{ID: "B2", Date: day, Description: "PILOT TRAVEL CTR", Amount: decimal.RequireFromString("45.20"), Type: model.Debit},
	}))
	require.NoError(t, records.NewService(dir).Save(nil, []model.Expense{
		{ID: "S1", Date: day, Vendor: "Acme Freight", Amount: decimal.RequireFromString("100.00")},
		{ID: "S2", Date: day, Vendor: "Acme Freight", Amount: decimal.RequireFromString("50.00")},
	}))

	return &books{
		root:    dir,
		cfg:     config.Default("Test"),
		log:     zap.NewNop(),
		store:   st,
		records: records.NewService(dir),
		actor:   "tester",
	}
}

func runREPL(t *testing.T, b *books, input string) string {
	t.Helper()
	s, err := b.session(context.Background())
	require.NoError(t, err)
	var out bytes.Buffer
	r := &repl{books: b, session: s, out: &out}
	require.NoError(t, r.run(context.Background(), strings.NewReader(input)))
	return out.String()
}

func TestREPL_ManualSelection(t *testing.T) {
	b := testBooks(t)
	out := runREPL(t, b, strings.Join([]string{
		"select bank B1",
		"select system S1",
		"commit",
		"toggle system S2",
		"ledger",
		"commit",
		"quit",
	}, "\n"))

	assert.Contains(t, out, "2 open bank, 2 open system")
	assert.Contains(t, out, "difference 50.00  NOT RECONCILABLE")
	assert.Contains(t, out, "error: selection is not reconcilable")
	assert.Contains(t, out, "*  S2")
	assert.Contains(t, out, "Reconciled 20")

	pairs, err := b.store.Pairs(context.Background())
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, []string{"S1", "S2"}, pairs[0].Members(model.SourceSystem))

	entries, err := activity.Read(b.root)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, activity.ActionCommitFail, entries[0].Action)
	assert.Contains(t, entries[0].Details, "selection is not reconcilable")
	assert.Empty(t, entries[0].PairID)
	assert.Equal(t, activity.ActionReconcile, entries[1].Action)
	assert.Equal(t, pairs[0].ID, entries[1].PairID)
}

func TestREPL_FailedCommitIsLogged(t *testing.T) {
	b := testBooks(t)
	stale, err := b.session(context.Background())
	require.NoError(t, err)

	runREPL(t, b, "select bank B1\nselect system S1 S2\ncommit\n")

	require.NoError(t, stale.SelectBank("B1"))
	require.NoError(t, stale.SelectSystem("S1"))
	require.NoError(t, stale.SelectSystem("S2"))
	var out bytes.Buffer
	r := &repl{books: b, session: stale, out: &out}
	require.NoError(t, r.run(context.Background(), strings.NewReader("commit\n")))
	assert.Contains(t, out.String(), "error: ")
	assert.NotContains(t, out.String(), "Reconciled")

	entries, err := activity.Read(b.root)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, activity.ActionReconcile, entries[0].Action)
	assert.Equal(t, activity.ActionCommitFail, entries[1].Action)
	assert.Equal(t, "tester", entries[1].Actor)
	assert.Contains(t, entries[1].Details, "already reconciled")
}

func TestREPL_Errors(t *testing.T) {
	b := testBooks(t)
	out := runREPL(t, b, "frobnicate\nselect bank NOPE\nselect cash B1\napply 0\napply x\nselect\n")

	assert.Contains(t, out, `error: unknown command "frobnicate"`)
	assert.Contains(t, out, "transaction not in open ledger")
	assert.Contains(t, out, `unknown side "cash"`)
	assert.Contains(t, out, "no such suggestion")
	assert.Contains(t, out, `suggestion number "x"`)
	assert.Contains(t, out, "usage: select bank|system ID...")

	pairs, err := b.store.Pairs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pairs, "nothing committed")
}

func TestREPL_EOFEnds(t *testing.T) {
	b := testBooks(t)
	out := runREPL(t, b, "balance")
	assert.Contains(t, out, "bank 0.00 (0)  system 0.00 (0)")
}
