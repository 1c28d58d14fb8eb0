package journal

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fleetbooks/recon/internal/model"
)

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var reconciledAt = time.Date(2024, 8, 20, 14, 5, 0, 0, time.UTC)

func txn(id, amount string, typ model.TxnType) model.Transaction {
	return model.Transaction{ID: id, Date: date(2024, 8, 1), Description: "desc " + id, Amount: dec(amount), Type: typ}
}

func samplePair() model.ReconciledPair {
	return model.ReconciledPair{
		ReconciledAt: reconciledAt,
		BankItems:    []model.Transaction{txn("B1", "150.00", model.Credit)},
		SystemItems:  []model.Transaction{txn("S1", "100.00", model.Debit), txn("S2", "50.00", model.Debit)},
	}
}

func leg(legID string, side model.Source, txnID, amount string, typ model.TxnType) model.Leg {
	return model.Leg{
		LegID:        legID,
		ReconciledAt: reconciledAt,
		Side:         side,
		TxnID:        txnID,
		Date:         date(2024, 8, 1),
		Description:  "desc " + txnID,
		Amount:       dec(amount),
		Type:         typ,
	}
}
