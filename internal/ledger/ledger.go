// Package ledger holds the open (unreconciled) transactions of one source.
package ledger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fleetbooks/recon/internal/model"
)

var (
	// ErrUnknownTransaction is returned when an ID is not in the open ledger.
	ErrUnknownTransaction = errors.New("transaction not in open ledger")
	// ErrDuplicateID is returned when an ID is added twice.
	ErrDuplicateID = errors.New("duplicate transaction id")
)

// Ledger is an ordered collection of open transactions with unique IDs.
type Ledger struct {
	source model.Source
	txns   []model.Transaction
	index  map[string]int
}

// New builds a ledger for source from txns, in the given order.
func New(source model.Source, txns []model.Transaction) (*Ledger, error) {
	l := &Ledger{source: source, index: make(map[string]int, len(txns))}
	if err := l.Add(txns...); err != nil {
		return nil, err
	}
	return l, nil
}

// Source returns which side this ledger holds.
func (l *Ledger) Source() model.Source { return l.source }

// Len returns the number of open transactions.
func (l *Ledger) Len() int { return len(l.txns) }

// All returns a copy of the open transactions in ledger order.
func (l *Ledger) All() []model.Transaction {
	out := make([]model.Transaction, len(l.txns))
	copy(out, l.txns)
	return out
}

// Get returns the transaction with the given ID.
func (l *Ledger) Get(id string) (model.Transaction, bool) {
	i, ok := l.index[id]
	if !ok {
		return model.Transaction{}, false
	}
	return l.txns[i], true
}

// Has reports whether id is open in this ledger.
func (l *Ledger) Has(id string) bool {
	_, ok := l.index[id]
	return ok
}

// Add appends transactions. Nothing is added if any ID collides.
func (l *Ledger) Add(txns ...model.Transaction) error {
	seen := make(map[string]bool, len(txns))
	for _, t := range txns {
		if _, ok := l.index[t.ID]; ok || seen[t.ID] {
			return fmt.Errorf("%s ledger: %w: %s", l.source, ErrDuplicateID, t.ID)
		}
		seen[t.ID] = true
	}
	for _, t := range txns {
		t.Source = l.source
		l.index[t.ID] = len(l.txns)
		l.txns = append(l.txns, t)
	}
	return nil
}

// Take removes exactly the given IDs and returns the removed records in
// ledger order. If any ID is missing the ledger is left unchanged.
func (l *Ledger) Take(ids []string) ([]model.Transaction, error) {
	want := make(map[string]bool, len(ids))
	var missing []string
	for _, id := range ids {
		if !l.Has(id) {
			missing = append(missing, id)
		}
		want[id] = true
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%s ledger: %w: %s", l.source, ErrUnknownTransaction, strings.Join(missing, ", "))
	}

	var taken, kept []model.Transaction
	for _, t := range l.txns {
		if want[t.ID] {
			taken = append(taken, t)
		} else {
			kept = append(kept, t)
		}
	}

	l.txns = kept
	l.index = make(map[string]int, len(kept))
	for i, t := range kept {
		l.index[t.ID] = i
	}
	return taken, nil
}

// Open derives the open ledger for side: every transaction in all that is
// not a member of any reconciled pair on that side.
func Open(side model.Source, all []model.Transaction, pairs []model.ReconciledPair) (*Ledger, error) {
	closed := make(map[string]bool)
	for _, p := range pairs {
		for _, id := range p.Members(side) {
			closed[id] = true
		}
	}
	open := make([]model.Transaction, 0, len(all))
	for _, t := range all {
		if !closed[t.ID] {
			open = append(open, t)
		}
	}
	return New(side, open)
}
