package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReconciledPair is the durable record of a committed, balanced match.
// Items are full copies taken at commit time.
type ReconciledPair struct {
	ID           string // "YYYY-MM-NNN", assigned by the store
	ReconciledAt time.Time
	BankItems    []Transaction
	SystemItems  []Transaction
}

// Net returns the signed sum of every member on both sides.
func (p ReconciledPair) Net() decimal.Decimal {
	total := decimal.Zero
	for _, t := range p.BankItems {
		total = total.Add(t.Signed())
	}
	for _, t := range p.SystemItems {
		total = total.Add(t.Signed())
	}
	return total
}

// Members returns the member transaction IDs for one side.
func (p ReconciledPair) Members(side Source) []string {
	items := p.BankItems
	if side == SourceSystem {
		items = p.SystemItems
	}
	ids := make([]string, len(items))
	for i, t := range items {
		ids[i] = t.ID
	}
	return ids
}

// MatchSuggestion is an unverified grouping proposed by a matcher.
type MatchSuggestion struct {
	BankTransactionIDs   []string `json:"bankTransactionIds"`
	SystemTransactionIDs []string `json:"systemTransactionIds"`
	Reason               string   `json:"reason"`
}
