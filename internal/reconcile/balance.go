package reconcile

import (
	"github.com/shopspring/decimal"

	"github.com/fleetbooks/recon/internal/model"
)

// Epsilon is the absolute tolerance for a balanced selection.
var Epsilon = decimal.RequireFromString("0.01")

// IDSet is an insertion-ordered set of transaction IDs.
type IDSet struct {
	order []string
	has   map[string]bool
}

// NewIDSet returns a set holding ids (duplicates collapse).
func NewIDSet(ids ...string) IDSet {
	var s IDSet
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add inserts id; it reports false if id was already present.
func (s *IDSet) Add(id string) bool {
	if s.has == nil {
		s.has = make(map[string]bool)
	}
	if s.has[id] {
		return false
	}
	s.has[id] = true
	s.order = append(s.order, id)
	return true
}

// Remove deletes id; it reports false if id was absent.
func (s *IDSet) Remove(id string) bool {
	if !s.has[id] {
		return false
	}
	delete(s.has, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Contains reports whether id is in the set.
func (s IDSet) Contains(id string) bool { return s.has[id] }

// Len returns the number of IDs.
func (s IDSet) Len() int { return len(s.order) }

// IDs returns the IDs in insertion order.
func (s IDSet) IDs() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Clone returns an independent copy.
func (s IDSet) Clone() IDSet { return NewIDSet(s.order...) }

// Selection is the user's current pick from each ledger.
type Selection struct {
	Bank   IDSet
	System IDSet
}

// Clone returns an independent copy.
func (s Selection) Clone() Selection {
	return Selection{Bank: s.Bank.Clone(), System: s.System.Clone()}
}

// Empty reports whether nothing is selected on either side.
func (s Selection) Empty() bool { return s.Bank.Len() == 0 && s.System.Len() == 0 }

// Balance is the outcome of weighing a selection.
type Balance struct {
	BankTotal    decimal.Decimal
	SystemTotal  decimal.Decimal
	Difference   decimal.Decimal
	BankCount    int
	SystemCount  int
	Reconcilable bool
}

// Calculate weighs sel against the two ledgers. Credits count positive and
// debits negative on both sides; the selection balances when the two totals
// cancel within Epsilon. A selection empty on either side never balances.
func Calculate(bank, system []model.Transaction, sel Selection) Balance {
	b := Balance{
		BankTotal:   signedSum(bank, sel.Bank),
		SystemTotal: signedSum(system, sel.System),
		BankCount:   sel.Bank.Len(),
		SystemCount: sel.System.Len(),
	}
	b.Difference = b.BankTotal.Add(b.SystemTotal)
	b.Reconcilable = b.BankCount > 0 && b.SystemCount > 0 && b.Difference.Abs().LessThan(Epsilon)
	return b
}

func signedSum(txns []model.Transaction, sel IDSet) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txns {
		if sel.Contains(t.ID) {
			total = total.Add(t.Signed())
		}
	}
	return total
}

// MatcherInput prepares both ledgers for a matcher: the bank side as-is and
// the system side with every Type inverted. Inputs are not modified.
func MatcherInput(bank, system []model.Transaction) (outBank, outSystem []model.Transaction) {
	outBank = make([]model.Transaction, len(bank))
	copy(outBank, bank)
	outSystem = make([]model.Transaction, len(system))
	for i, t := range system {
		outSystem[i] = t.Inverted()
	}
	return outBank, outSystem
}
