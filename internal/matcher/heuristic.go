package matcher

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/fleetbooks/recon/internal/model"
)

// HeuristicMatcher proposes one-to-one matches without leaving the process.
// It expects the system side already inverted, so a candidate pair has the
// same type and the same amount. Among candidates within the date window
// the closest date wins, then the larger description overlap, then ledger
// order.
type HeuristicMatcher struct {
	Window time.Duration
}

// NewHeuristic returns a HeuristicMatcher with the given date window; a
// zero window means seven days.
func NewHeuristic(window time.Duration) *HeuristicMatcher {
	if window <= 0 {
		window = 7 * 24 * time.Hour
	}
	return &HeuristicMatcher{Window: window}
}

// Suggest implements Matcher.
func (m *HeuristicMatcher) Suggest(ctx context.Context, req Request) ([]model.MatchSuggestion, error) {
	used := make(map[string]bool, len(req.SystemTransactions))
	suggestions := []model.MatchSuggestion{}

	for _, b := range req.BankTransactions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		best := -1
		var bestDays float64
		var bestOverlap int
		for i, s := range req.SystemTransactions {
			if used[s.ID] || s.Type != b.Type || !s.Amount.Equal(b.Amount) {
				continue
			}
			days := math.Abs(b.Date.Sub(s.Date).Hours() / 24)
			if days*24 > m.Window.Hours() {
				continue
			}
			overlap := tokenOverlap(b.Description, s.Description)
			if best == -1 || days < bestDays || (days == bestDays && overlap > bestOverlap) {
				best, bestDays, bestOverlap = i, days, overlap
			}
		}
		if best == -1 {
			continue
		}

		s := req.SystemTransactions[best]
		used[s.ID] = true
		suggestions = append(suggestions, model.MatchSuggestion{
			BankTransactionIDs:   []string{b.ID},
			SystemTransactionIDs: []string{s.ID},
			Reason:               fmt.Sprintf("same amount %s, dates %d day(s) apart", b.Amount.StringFixed(2), int(bestDays)),
		})
	}
	return suggestions, nil
}

func tokenOverlap(a, b string) int {
	ta := tokens(a)
	n := 0
	for t := range tokens(b) {
		if ta[t] {
			n++
		}
	}
	return n
}

func tokens(s string) map[string]bool {
	out := make(map[string]bool)
	for _, f := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(f) > 2 {
			out[f] = true
		}
	}
	return out
}
