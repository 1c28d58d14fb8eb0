package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fleetbooks/recon/internal/ledger"
	"github.com/fleetbooks/recon/internal/matcher"
	"github.com/fleetbooks/recon/internal/model"
)

var (
	// ErrNotReconcilable is returned by Commit when the current selection
	// does not balance. Callers are expected to check Balance first.
	ErrNotReconcilable = errors.New("selection is not reconcilable")
	// ErrCommitFailed wraps a persistence failure; session state is unchanged.
	ErrCommitFailed = errors.New("commit reconciliation failed")
	// ErrMatcher wraps a matcher failure, as distinct from zero suggestions.
	ErrMatcher = errors.New("matcher failed")
	// ErrNoMatcher is returned by Suggest when no matcher is configured.
	ErrNoMatcher = errors.New("no matcher configured")
	// ErrNoSuggestion is returned by ApplySuggestion for a bad index.
	ErrNoSuggestion = errors.New("no such suggestion")
)

// Committer durably records a reconciled pair and closes its members in the
// backing store. It returns the pair as stored, with its ID assigned.
type Committer interface {
	CommitReconciliation(ctx context.Context, pair model.ReconciledPair) (model.ReconciledPair, error)
}

// MatcherStatus is the outcome of the most recent Suggest call.
type MatcherStatus struct {
	Ran         bool
	Suggestions []model.MatchSuggestion
	Dropped     []matcher.Dropped
	Err         error
}

// Session is the state of one reconciliation screen: both open ledgers, the
// current selection, the last matcher result and the pairs committed so far.
type Session struct {
	mu        sync.Mutex
	bank      *ledger.Ledger
	system    *ledger.Ledger
	sel       Selection
	pairs     []model.ReconciledPair
	status    MatcherStatus
	committer Committer
	matcher   matcher.Matcher
	now       func() time.Time
	log       *zap.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithMatcher sets the matcher used by Suggest.
func WithMatcher(m matcher.Matcher) Option {
	return func(s *Session) { s.matcher = m }
}

// WithLogger sets the session logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithClock overrides the commit timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// NewSession starts a session over the given open ledgers.
func NewSession(bank, system *ledger.Ledger, committer Committer, opts ...Option) *Session {
	s := &Session{
		bank:      bank,
		system:    system,
		committer: committer,
		now:       time.Now,
		log:       zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Bank returns the open bank transactions.
func (s *Session) Bank() []model.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bank.All()
}

// System returns the open system transactions.
func (s *Session) System() []model.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.system.All()
}

// Pairs returns the pairs committed during this session.
func (s *Session) Pairs() []model.ReconciledPair {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ReconciledPair, len(s.pairs))
	copy(out, s.pairs)
	return out
}

// Selection returns a copy of the current selection.
func (s *Session) Selection() Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sel.Clone()
}

// Balance weighs the current selection.
func (s *Session) Balance() Balance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance()
}

func (s *Session) balance() Balance {
	return Calculate(s.bank.All(), s.system.All(), s.sel)
}

// SelectBank adds a bank transaction to the selection.
func (s *Session) SelectBank(id string) error { return s.mutate(model.SourceBank, id, opSelect) }

// DeselectBank removes a bank transaction from the selection.
func (s *Session) DeselectBank(id string) error { return s.mutate(model.SourceBank, id, opDeselect) }

// ToggleBank flips a bank transaction's membership in the selection.
func (s *Session) ToggleBank(id string) error { return s.mutate(model.SourceBank, id, opToggle) }

// SelectSystem adds a system transaction to the selection.
func (s *Session) SelectSystem(id string) error { return s.mutate(model.SourceSystem, id, opSelect) }

// DeselectSystem removes a system transaction from the selection.
func (s *Session) DeselectSystem(id string) error {
	return s.mutate(model.SourceSystem, id, opDeselect)
}

// ToggleSystem flips a system transaction's membership in the selection.
func (s *Session) ToggleSystem(id string) error { return s.mutate(model.SourceSystem, id, opToggle) }

// ClearSelection empties both sides.
func (s *Session) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sel = Selection{}
}

type selectOp int

const (
	opSelect selectOp = iota
	opDeselect
	opToggle
)

func (s *Session) mutate(side model.Source, id string, op selectOp) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, set := s.bank, &s.sel.Bank
	if side == model.SourceSystem {
		l, set = s.system, &s.sel.System
	}
	if !l.Has(id) {
		return fmt.Errorf("%s %s: %w", side, id, ledger.ErrUnknownTransaction)
	}

	switch op {
	case opSelect:
		set.Add(id)
	case opDeselect:
		set.Remove(id)
	case opToggle:
		if !set.Remove(id) {
			set.Add(id)
		}
	}
	return nil
}

// Suggest asks the matcher for candidate groupings over the current open
// ledgers, system side inverted. The matcher runs without the session lock
// held, so selection changes made meanwhile are kept. Suggestions are
// checked against the ledgers as they stand when the matcher returns.
func (s *Session) Suggest(ctx context.Context) ([]model.MatchSuggestion, error) {
	s.mu.Lock()
	m := s.matcher
	bank, system := MatcherInput(s.bank.All(), s.system.All())
	s.mu.Unlock()

	if m == nil {
		return nil, ErrNoMatcher
	}

	s.log.Info("requesting match suggestions",
		zap.Int("bank_open", len(bank)),
		zap.Int("system_open", len(system)))

	raw, err := m.Suggest(ctx, matcher.Request{BankTransactions: bank, SystemTransactions: system})

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		err = fmt.Errorf("%w: %w", ErrMatcher, err)
		s.status = MatcherStatus{Ran: true, Err: err}
		s.log.Warn("match suggestion failed", zap.Error(err))
		return nil, err
	}

	current := matcher.Request{BankTransactions: s.bank.All(), SystemTransactions: s.system.All()}
	kept, dropped := matcher.Validate(current, raw)
	for _, d := range dropped {
		s.log.Warn("dropping match suggestion", zap.Int("index", d.Index), zap.String("reason", d.Reason))
	}
	if kept == nil {
		kept = []model.MatchSuggestion{}
	}
	s.status = MatcherStatus{Ran: true, Suggestions: kept, Dropped: dropped}
	s.log.Info("match suggestions received", zap.Int("kept", len(kept)), zap.Int("dropped", len(dropped)))

	out := make([]model.MatchSuggestion, len(kept))
	copy(out, kept)
	return out, nil
}

// MatcherStatus returns the outcome of the last Suggest call.
func (s *Session) MatcherStatus() MatcherStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status
	st.Suggestions = append([]model.MatchSuggestion(nil), s.status.Suggestions...)
	return st
}

// ApplySuggestion replaces the selection with the IDs of suggestion i from
// the last Suggest call and returns the resulting balance. Applying never
// commits; an unbalanced suggestion leaves Reconcilable false.
func (s *Session) ApplySuggestion(i int) (Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i < 0 || i >= len(s.status.Suggestions) {
		return Balance{}, fmt.Errorf("%w: %d", ErrNoSuggestion, i)
	}
	sug := s.status.Suggestions[i]
	return s.stage(sug)
}

// Stage replaces the selection with the IDs of an externally held
// suggestion. IDs must be open.
func (s *Session) Stage(sug model.MatchSuggestion) (Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage(sug)
}

func (s *Session) stage(sug model.MatchSuggestion) (Balance, error) {
	for _, id := range sug.BankTransactionIDs {
		if !s.bank.Has(id) {
			return Balance{}, fmt.Errorf("bank %s: %w", id, ledger.ErrUnknownTransaction)
		}
	}
	for _, id := range sug.SystemTransactionIDs {
		if !s.system.Has(id) {
			return Balance{}, fmt.Errorf("system %s: %w", id, ledger.ErrUnknownTransaction)
		}
	}
	s.sel = Selection{
		Bank:   NewIDSet(sug.BankTransactionIDs...),
		System: NewIDSet(sug.SystemTransactionIDs...),
	}
	return s.balance(), nil
}

// Commit records the current selection as a reconciled pair. The selection
// must be reconcilable. Ledgers and selection change only after the
// committer acknowledges the write.
func (s *Session) Commit(ctx context.Context) (model.ReconciledPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bal := s.balance()
	if !bal.Reconcilable {
		return model.ReconciledPair{}, fmt.Errorf("%w: bank %d item(s), system %d item(s), difference %s",
			ErrNotReconcilable, bal.BankCount, bal.SystemCount, bal.Difference.StringFixed(2))
	}

	pair := model.ReconciledPair{
		ReconciledAt: s.now().UTC(),
		BankItems:    pick(s.bank, s.sel.Bank),
		SystemItems:  pick(s.system, s.sel.System),
	}

	stored, err := s.committer.CommitReconciliation(ctx, pair)
	if err != nil {
		s.log.Error("commit reconciliation failed", zap.Error(err))
		return model.ReconciledPair{}, fmt.Errorf("%w: %w", ErrCommitFailed, err)
	}

	if _, err := s.bank.Take(s.sel.Bank.IDs()); err != nil {
		return stored, fmt.Errorf("removing bank items after commit: %w", err)
	}
	if _, err := s.system.Take(s.sel.System.IDs()); err != nil {
		return stored, fmt.Errorf("removing system items after commit: %w", err)
	}
	s.pairs = append(s.pairs, stored)
	s.sel = Selection{}
	s.status.Suggestions, _ = matcher.Validate(
		matcher.Request{BankTransactions: s.bank.All(), SystemTransactions: s.system.All()},
		s.status.Suggestions)

	s.log.Info("reconciliation committed",
		zap.String("pair_id", stored.ID),
		zap.Int("bank_items", len(stored.BankItems)),
		zap.Int("system_items", len(stored.SystemItems)))
	return stored, nil
}

// pick returns the selected transactions in ledger order.
func pick(l *ledger.Ledger, sel IDSet) []model.Transaction {
	var out []model.Transaction
	for _, t := range l.All() {
		if sel.Contains(t.ID) {
			out = append(out, t)
		}
	}
	return out
}
