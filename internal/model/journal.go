package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fleetbooks/recon/internal/id"
)

// Leg is a single row in reconciled.csv: one member transaction of a pair.
type Leg struct {
	LegID        string    // "YYYY-MM-NNNx" where x = a,b,c...
	ReconciledAt time.Time //nolint:revive // plain field name is clearest
	Side         Source
	TxnID        string
	Date         time.Time
	Description  string
	Amount       decimal.Decimal
	Type         TxnType
}

// PairID returns the pair ID without the leg suffix.
// "2024-08-001a" -> "2024-08-001"
func (l Leg) PairID() string {
	return id.PairGroup(l.LegID)
}

// Transaction returns the member transaction recorded by this leg.
func (l Leg) Transaction() Transaction {
	return Transaction{
		ID:          l.TxnID,
		Date:        l.Date,
		Description: l.Description,
		Amount:      l.Amount,
		Type:        l.Type,
		Source:      l.Side,
	}
}
