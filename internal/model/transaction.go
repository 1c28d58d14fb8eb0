package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TxnType carries the direction of a transaction. Amounts are stored
// non-negative; the sign lives here.
type TxnType string

const (
	Credit TxnType = "credit"
	Debit  TxnType = "debit"
)

// Sign returns +1 for credits and -1 for anything else.
func (t TxnType) Sign() int64 {
	if t == Credit {
		return 1
	}
	return -1
}

// Inverse flips credit and debit.
func (t TxnType) Inverse() TxnType {
	if t == Credit {
		return Debit
	}
	return Credit
}

// Valid reports whether t is one of the two known types.
func (t TxnType) Valid() bool {
	return t == Credit || t == Debit
}

// Source names the ledger a transaction belongs to.
type Source string

const (
	SourceBank   Source = "bank"
	SourceSystem Source = "system"
)

// Transaction is one open ledger row, bank- or system-sourced.
type Transaction struct {
	ID          string
	Date        time.Time // calendar date, UTC midnight
	Description string
	Amount      decimal.Decimal // never negative
	Type        TxnType
	Source      Source
}

// Signed returns the amount with the sign implied by Type.
func (t Transaction) Signed() decimal.Decimal {
	return t.Amount.Mul(decimal.NewFromInt(t.Type.Sign()))
}

// Inverted returns a copy with Type flipped.
func (t Transaction) Inverted() Transaction {
	t.Type = t.Type.Inverse()
	return t
}

// CalendarDate truncates t to midnight UTC of its own calendar day.
func CalendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
