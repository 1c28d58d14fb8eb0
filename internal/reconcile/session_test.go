package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetbooks/recon/internal/ledger"
	"github.com/fleetbooks/recon/internal/matcher"
	"github.com/fleetbooks/recon/internal/model"
)

type fakeCommitter struct {
	err     error
	commits []model.ReconciledPair
}

func (f *fakeCommitter) CommitReconciliation(_ context.Context, pair model.ReconciledPair) (model.ReconciledPair, error) {
	if f.err != nil {
		return model.ReconciledPair{}, f.err
	}
	pair.ID = "2024-08-00" + string(rune('1'+len(f.commits)))
	f.commits = append(f.commits, pair)
	return pair, nil
}

type fakeMatcher struct {
	out []model.MatchSuggestion
	err error
	got matcher.Request
}

func (f *fakeMatcher) Suggest(_ context.Context, req matcher.Request) ([]model.MatchSuggestion, error) {
	f.got = req
	return f.out, f.err
}

var fixedNow = time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)

func newTestSession(t *testing.T, bank, system []model.Transaction, c Committer, opts ...Option) *Session {
	t.Helper()
	bl, err := ledger.New(model.SourceBank, bank)
	require.NoError(t, err)
	sl, err := ledger.New(model.SourceSystem, system)
	require.NoError(t, err)
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewSession(bl, sl, c, opts...)
}

func TestSession_CommitExample(t *testing.T) {
	c := &fakeCommitter{}
	s := newTestSession(t,
		[]model.Transaction{txn("B1", "150.00", model.Credit)},
		[]model.Transaction{txn("S1", "150.00", model.Debit)}, c)

	require.NoError(t, s.SelectBank("B1"))
	require.NoError(t, s.SelectSystem("S1"))

	bal := s.Balance()
	assert.Equal(t, "150.00", bal.BankTotal.StringFixed(2))
	assert.Equal(t, "-150.00", bal.SystemTotal.StringFixed(2))
	assert.Equal(t, "0.00", bal.Difference.StringFixed(2))
	assert.True(t, bal.Reconcilable)

	pair, err := s.Commit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2024-08-001", pair.ID)
	assert.Equal(t, fixedNow, pair.ReconciledAt)
	require.Len(t, pair.BankItems, 1)
	require.Len(t, pair.SystemItems, 1)
	assert.Equal(t, "desc B1", pair.BankItems[0].Description, "full record captured")
	assert.Equal(t, model.SourceSystem, pair.SystemItems[0].Source)

	assert.Empty(t, s.Bank())
	assert.Empty(t, s.System())
	assert.Len(t, s.Pairs(), 1)
	assert.True(t, s.Selection().Empty())
	require.Len(t, c.commits, 1)
}

func TestSession_CommitRemovesExactlySelection(t *testing.T) {
	c := &fakeCommitter{}
	s := newTestSession(t,
		[]model.Transaction{txn("B1", "100.00", model.Credit), txn("B2", "5.00", model.Debit), txn("B3", "7.00", model.Credit)},
		[]model.Transaction{txn("S1", "60.00", model.Debit), txn("S2", "40.00", model.Debit), txn("S3", "1.00", model.Debit)}, c)

	require.NoError(t, s.SelectBank("B1"))
	require.NoError(t, s.SelectSystem("S2"))
	require.NoError(t, s.SelectSystem("S1"))

	pair, err := s.Commit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"S1", "S2"}, pair.Members(model.SourceSystem), "ledger order")

	assert.Len(t, s.Bank(), 2)
	assert.Len(t, s.System(), 1)
	assert.Equal(t, "S3", s.System()[0].ID)
}

func TestSession_SecondCommitOfSameIDsFails(t *testing.T) {
	c := &fakeCommitter{}
	s := newTestSession(t,
		[]model.Transaction{txn("B1", "150.00", model.Credit)},
		[]model.Transaction{txn("S1", "150.00", model.Debit)}, c)

	_, err := s.Stage(model.MatchSuggestion{BankTransactionIDs: []string{"B1"}, SystemTransactionIDs: []string{"S1"}})
	require.NoError(t, err)
	_, err = s.Commit(context.Background())
	require.NoError(t, err)

	_, err = s.Stage(model.MatchSuggestion{BankTransactionIDs: []string{"B1"}, SystemTransactionIDs: []string{"S1"}})
	assert.ErrorIs(t, err, ledger.ErrUnknownTransaction)
	assert.ErrorIs(t, s.SelectBank("B1"), ledger.ErrUnknownTransaction)

	_, err = s.Commit(context.Background())
	assert.ErrorIs(t, err, ErrNotReconcilable)
	assert.Len(t, c.commits, 1, "no double count")
}

func TestSession_CommitNotReconcilable(t *testing.T) {
	c := &fakeCommitter{}
	s := newTestSession(t,
		[]model.Transaction{txn("B1", "150.00", model.Credit)},
		[]model.Transaction{txn("S1", "140.00", model.Debit)}, c)

	require.NoError(t, s.SelectBank("B1"))
	bal := s.Balance()
	assert.False(t, bal.Reconcilable, "system selection empty")

	require.NoError(t, s.SelectSystem("S1"))
	_, err := s.Commit(context.Background())
	require.ErrorIs(t, err, ErrNotReconcilable)
	assert.Contains(t, err.Error(), "10.00")
	assert.Empty(t, c.commits)
}

func TestSession_CommitFailureKeepsState(t *testing.T) {
	c := &fakeCommitter{err: errors.New("batch write rejected")}
	s := newTestSession(t,
		[]model.Transaction{txn("B1", "150.00", model.Credit)},
		[]model.Transaction{txn("S1", "150.00", model.Debit)}, c)

	require.NoError(t, s.SelectBank("B1"))
	require.NoError(t, s.SelectSystem("S1"))

	_, err := s.Commit(context.Background())
	require.ErrorIs(t, err, ErrCommitFailed)
	assert.Contains(t, err.Error(), "batch write rejected")

	assert.Len(t, s.Bank(), 1)
	assert.Len(t, s.System(), 1)
	assert.Equal(t, []string{"B1"}, s.Selection().Bank.IDs())
	assert.Equal(t, []string{"S1"}, s.Selection().System.IDs())
	assert.Empty(t, s.Pairs())

	// Retry succeeds once the store recovers.
	c.err = nil
	_, err = s.Commit(context.Background())
	require.NoError(t, err)
	assert.Empty(t, s.Bank())
}

func TestSession_SelectionOps(t *testing.T) {
	s := newTestSession(t,
		[]model.Transaction{txn("B1", "1.00", model.Credit), txn("B2", "2.00", model.Credit)},
		[]model.Transaction{txn("S1", "1.00", model.Debit)}, &fakeCommitter{})

	require.NoError(t, s.ToggleBank("B2"))
	require.NoError(t, s.ToggleBank("B1"))
	assert.Equal(t, []string{"B2", "B1"}, s.Selection().Bank.IDs())

	require.NoError(t, s.ToggleBank("B2"))
	assert.Equal(t, []string{"B1"}, s.Selection().Bank.IDs())

	require.NoError(t, s.SelectSystem("S1"))
	assert.True(t, s.Balance().Reconcilable)

	require.NoError(t, s.DeselectSystem("S1"))
	assert.False(t, s.Balance().Reconcilable)

	require.NoError(t, s.ToggleSystem("S1"))
	require.NoError(t, s.DeselectBank("B1"))
	assert.Equal(t, 0, s.Balance().BankCount)

	assert.ErrorIs(t, s.SelectSystem("B1"), ledger.ErrUnknownTransaction, "IDs are per ledger")

	s.ClearSelection()
	assert.True(t, s.Selection().Empty())
}

func TestSession_SelectionIsCopy(t *testing.T) {
	s := newTestSession(t, []model.Transaction{txn("B1", "1.00", model.Credit)}, nil, &fakeCommitter{})
	sel := s.Selection()
	sel.Bank.Add("B1")
	assert.True(t, s.Selection().Empty())
}

func TestSession_SuggestInvertsSystemOnly(t *testing.T) {
	m := &fakeMatcher{out: []model.MatchSuggestion{}}
	s := newTestSession(t,
		[]model.Transaction{txn("B1", "150.00", model.Credit)},
		[]model.Transaction{txn("S1", "150.00", model.Debit)}, &fakeCommitter{}, WithMatcher(m))

	require.NoError(t, s.SelectBank("B1"))
	require.NoError(t, s.SelectSystem("S1"))
	before := s.Balance()

	out, err := s.Suggest(context.Background())
	require.NoError(t, err)
	assert.Empty(t, out)

	assert.Equal(t, model.Credit, m.got.BankTransactions[0].Type)
	assert.Equal(t, model.Credit, m.got.SystemTransactions[0].Type, "system side inverted for the matcher")
	assert.Equal(t, model.Debit, s.System()[0].Type, "stored ledger unchanged")

	after := s.Balance()
	assert.True(t, before.Difference.Equal(after.Difference))
	assert.Equal(t, before.Reconcilable, after.Reconcilable)

	st := s.MatcherStatus()
	assert.True(t, st.Ran)
	assert.NoError(t, st.Err)
	assert.Empty(t, st.Suggestions)
}

func TestSession_SuggestFailureIsDistinct(t *testing.T) {
	m := &fakeMatcher{err: matcher.ErrUnavailable}
	s := newTestSession(t,
		[]model.Transaction{txn("B1", "150.00", model.Credit)},
		[]model.Transaction{txn("S1", "150.00", model.Debit)}, &fakeCommitter{}, WithMatcher(m))
	require.NoError(t, s.SelectBank("B1"))

	_, err := s.Suggest(context.Background())
	require.ErrorIs(t, err, ErrMatcher)
	assert.ErrorIs(t, err, matcher.ErrUnavailable)

	st := s.MatcherStatus()
	assert.True(t, st.Ran)
	assert.ErrorIs(t, st.Err, ErrMatcher)
	assert.Equal(t, []string{"B1"}, s.Selection().Bank.IDs(), "selection intact")
}

func TestSession_SuggestWithoutMatcher(t *testing.T) {
	s := newTestSession(t, nil, nil, &fakeCommitter{})
	_, err := s.Suggest(context.Background())
	assert.ErrorIs(t, err, ErrNoMatcher)
}

func TestSession_UnbalancedSuggestionStaysBlocked(t *testing.T) {
	m := &fakeMatcher{out: []model.MatchSuggestion{{
		BankTransactionIDs:   []string{"B2"},
		SystemTransactionIDs: []string{"S2", "S3"},
		Reason:               "customer paid two loads",
	}}}
	c := &fakeCommitter{}
	s := newTestSession(t,
		[]model.Transaction{txn("B2", "500.00", model.Credit)},
		[]model.Transaction{txn("S2", "250.00", model.Debit), txn("S3", "200.00", model.Debit), txn("S4", "50.00", model.Debit)},
		c, WithMatcher(m))

	out, err := s.Suggest(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1)

	bal, err := s.ApplySuggestion(0)
	require.NoError(t, err)
	assert.False(t, bal.Reconcilable)
	assert.Equal(t, "50.00", bal.Difference.StringFixed(2))
	assert.Equal(t, []string{"S2", "S3"}, s.Selection().System.IDs())

	_, err = s.Commit(context.Background())
	assert.ErrorIs(t, err, ErrNotReconcilable)
	assert.Empty(t, c.commits, "suggestions are never auto-committed")

	require.NoError(t, s.SelectSystem("S4"))
	assert.True(t, s.Balance().Reconcilable)
	_, err = s.Commit(context.Background())
	require.NoError(t, err)
}

func TestSession_SuggestDropsUnknownIDs(t *testing.T) {
	m := &fakeMatcher{out: []model.MatchSuggestion{
		{BankTransactionIDs: []string{"B1"}, SystemTransactionIDs: []string{"S9"}, Reason: "hallucinated"},
		{BankTransactionIDs: []string{"B1"}, SystemTransactionIDs: []string{"S1"}, Reason: "ok"},
	}}
	s := newTestSession(t,
		[]model.Transaction{txn("B1", "150.00", model.Credit)},
		[]model.Transaction{txn("S1", "150.00", model.Debit)}, &fakeCommitter{}, WithMatcher(m))

	out, err := s.Suggest(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "ok", out[0].Reason)
	assert.Len(t, s.MatcherStatus().Dropped, 1)
}

func TestSession_ApplySuggestionBadIndex(t *testing.T) {
	s := newTestSession(t, nil, nil, &fakeCommitter{})
	_, err := s.ApplySuggestion(0)
	assert.ErrorIs(t, err, ErrNoSuggestion)
}

func TestSession_CommitPrunesStaleSuggestions(t *testing.T) {
	m := &fakeMatcher{out: []model.MatchSuggestion{
		{BankTransactionIDs: []string{"B1"}, SystemTransactionIDs: []string{"S1"}, Reason: "first"},
		{BankTransactionIDs: []string{"B2"}, SystemTransactionIDs: []string{"S1"}, Reason: "conflicts"},
		{BankTransactionIDs: []string{"B2"}, SystemTransactionIDs: []string{"S2"}, Reason: "second"},
	}}
	s := newTestSession(t,
		[]model.Transaction{txn("B1", "10.00", model.Credit), txn("B2", "20.00", model.Credit)},
		[]model.Transaction{txn("S1", "10.00", model.Debit), txn("S2", "20.00", model.Debit)},
		&fakeCommitter{}, WithMatcher(m))

	_, err := s.Suggest(context.Background())
	require.NoError(t, err)
	_, err = s.ApplySuggestion(0)
	require.NoError(t, err)
	_, err = s.Commit(context.Background())
	require.NoError(t, err)

	st := s.MatcherStatus()
	require.Len(t, st.Suggestions, 1)
	assert.Equal(t, "second", st.Suggestions[0].Reason)
}
