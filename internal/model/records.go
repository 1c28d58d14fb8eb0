package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus is the billing state of an invoice.
type InvoiceStatus string

const (
	InvoiceDraft   InvoiceStatus = "draft"
	InvoiceSent    InvoiceStatus = "sent"
	InvoicePaid    InvoiceStatus = "paid"
	InvoiceOverdue InvoiceStatus = "overdue"
	InvoiceVoid    InvoiceStatus = "void"
)

// Invoice represents a row in records/invoices.csv.
type Invoice struct {
	ID       string
	Number   string
	Customer string
	Issued   time.Time
	Due      time.Time
	Amount   decimal.Decimal
	Status   InvoiceStatus
	PaidOn   time.Time // zero unless paid
}

// Expense represents a row in records/expenses.csv.
type Expense struct {
	ID       string
	Date     time.Time
	Vendor   string
	Category string // fuel, maintenance, tolls, insurance, ...
	Amount   decimal.Decimal
	Notes    string
}
