package journal

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fleetbooks/recon/internal/id"
	"github.com/fleetbooks/recon/internal/model"
)

// Epsilon is the tolerance for a pair's net amount.
var Epsilon = decimal.RequireFromString("0.01")

// ValidationError describes a single invariant violation.
type ValidationError struct {
	Invariant   int
	PairID      string
	Description string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invariant %d [%s]: %s", e.Invariant, e.PairID, e.Description)
}

// ValidateLegs enforces 6 invariants on the legs of one month's
// reconciled.csv.
func ValidateLegs(legs []model.Leg, year, month int) []ValidationError {
	var errs []ValidationError

	// Group legs by pair.
	groups := make(map[string][]model.Leg)
	var groupOrder []string
	for _, leg := range legs {
		g := leg.PairID()
		if _, seen := groups[g]; !seen {
			groupOrder = append(groupOrder, g)
		}
		groups[g] = append(groups[g], leg)
	}

	for _, g := range groupOrder {
		net := decimal.Zero
		var bank, system int
		for _, leg := range groups[g] {
			net = net.Add(leg.Transaction().Signed())
			switch leg.Side {
			case model.SourceBank:
				bank++
			case model.SourceSystem:
				system++
			}
		}

		// Invariant 1: Pairs balance within epsilon.
		if !net.Abs().LessThan(Epsilon) {
			errs = append(errs, ValidationError{
				Invariant:   1,
				PairID:      g,
				Description: fmt.Sprintf("net %s is not zero", net.StringFixed(2)),
			})
		}

		// Invariant 2: Both sides present.
		if bank == 0 || system == 0 {
			errs = append(errs, ValidationError{
				Invariant:   2,
				PairID:      g,
				Description: fmt.Sprintf("pair needs bank and system legs, has %d and %d", bank, system),
			})
		}
	}

	seenTxn := make(map[string]string)
	for _, leg := range legs {
		// Invariant 3: Well-formed legs.
		if leg.Side != model.SourceBank && leg.Side != model.SourceSystem {
			errs = append(errs, ValidationError{Invariant: 3, PairID: leg.LegID, Description: fmt.Sprintf("unknown side %q", leg.Side)})
		}
		if !leg.Type.Valid() {
			errs = append(errs, ValidationError{Invariant: 3, PairID: leg.LegID, Description: fmt.Sprintf("unknown type %q", leg.Type)})
		}
		if leg.Amount.IsNegative() {
			errs = append(errs, ValidationError{Invariant: 3, PairID: leg.LegID, Description: fmt.Sprintf("negative amount %s", leg.Amount)})
		}

		// Invariant 4: Reconciled within month.
		if leg.ReconciledAt.Year() != year || int(leg.ReconciledAt.Month()) != month {
			errs = append(errs, ValidationError{
				Invariant:   4,
				PairID:      leg.LegID,
				Description: fmt.Sprintf("reconciled %s not in %04d-%02d", leg.ReconciledAt.Format("2006-01-02"), year, month),
			})
		}

		// Invariant 6: A transaction closes at most once.
		key := string(leg.Side) + "/" + leg.TxnID
		if prev, dup := seenTxn[key]; dup {
			errs = append(errs, ValidationError{
				Invariant:   6,
				PairID:      leg.LegID,
				Description: fmt.Sprintf("%s transaction %s already reconciled in %s", leg.Side, leg.TxnID, prev),
			})
		} else {
			seenTxn[key] = leg.PairID()
		}
	}

	// Invariant 5: Unique sequential IDs, contiguous 1..N.
	seqSeen := make(map[int]bool)
	for _, leg := range legs {
		_, _, seq, err := id.ParsePairID(leg.LegID)
		if err != nil {
			errs = append(errs, ValidationError{
				Invariant:   5,
				PairID:      leg.LegID,
				Description: fmt.Sprintf("invalid pair ID: %v", err),
			})
			continue
		}
		seqSeen[seq] = true
	}
	for i := 1; i <= len(seqSeen); i++ {
		if !seqSeen[i] {
			errs = append(errs, ValidationError{
				Invariant:   5,
				PairID:      fmt.Sprintf("seq %d", i),
				Description: fmt.Sprintf("missing sequence %d in 1..%d", i, len(seqSeen)),
			})
		}
	}

	return errs
}

// ValidatePair checks a single unsaved pair against the per-pair invariants
// (balance, both sides present, well-formed legs, unique members).
func ValidatePair(pair model.ReconciledPair) []ValidationError {
	at := pair.ReconciledAt.UTC()
	pid := id.FormatPairID(at.Year(), int(at.Month()), 1)
	pair.ReconciledAt = at
	legs := PairLegs(pair, func(i int) string { return id.FormatLegID(pid, i) })
	return ValidateLegs(legs, at.Year(), int(at.Month()))
}

// Join formats violations as one error, or returns nil when there are none.
func Join(verrs []ValidationError) error {
	if len(verrs) == 0 {
		return nil
	}
	msgs := make([]string, len(verrs))
	for i, ve := range verrs {
		msgs[i] = ve.Error()
	}
	return fmt.Errorf("validation failed: %s", strings.Join(msgs, "; "))
}
