package records

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fleetbooks/recon/internal/model"
)

const dateFormat = "2006-01-02"

// InvoiceHeader is the CSV header for invoices.csv.
var InvoiceHeader = []string{"id", "number", "customer", "issued", "due", "amount", "status", "paid_on"}

// ExpenseHeader is the CSV header for expenses.csv.
var ExpenseHeader = []string{"id", "date", "vendor", "category", "amount", "notes"}

const (
	invNumFields   = 8
	invColID       = 0
	invColNumber   = 1
	invColCustomer = 2
	invColIssued   = 3
	invColDue      = 4
	invColAmount   = 5
	invColStatus   = 6
	invColPaidOn   = 7

	expNumFields   = 6
	expColID       = 0
	expColDate     = 1
	expColVendor   = 2
	expColCategory = 3
	expColAmount   = 4
	expColNotes    = 5
)

// ReadInvoices reads invoices.csv.
func ReadInvoices(r io.Reader) ([]model.Invoice, error) {
	records, err := readAll(r, invNumFields, "invoices")
	if err != nil {
		return nil, err
	}

	var invoices []model.Invoice
	for i, rec := range records {
		inv, err := UnmarshalInvoice(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		invoices = append(invoices, inv)
	}
	return invoices, nil
}

// WriteInvoices writes invoices.csv (including header).
func WriteInvoices(w io.Writer, invoices []model.Invoice) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(InvoiceHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, inv := range invoices {
		if err := cw.Write(MarshalInvoice(inv)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	return cw.Error()
}

// MarshalInvoice converts an Invoice to a CSV row.
func MarshalInvoice(inv model.Invoice) []string {
	row := make([]string, invNumFields)
	row[invColID] = inv.ID
	row[invColNumber] = inv.Number
	row[invColCustomer] = inv.Customer
	row[invColIssued] = formatDate(inv.Issued)
	row[invColDue] = formatDate(inv.Due)
	row[invColAmount] = inv.Amount.StringFixed(2)
	row[invColStatus] = string(inv.Status)
	row[invColPaidOn] = formatDate(inv.PaidOn)
	return row
}

// UnmarshalInvoice converts a CSV row to an Invoice.
func UnmarshalInvoice(record []string) (model.Invoice, error) {
	if len(record) != invNumFields {
		return model.Invoice{}, fmt.Errorf("expected %d fields, got %d", invNumFields, len(record))
	}

	issued, err := parseDate("issued", record[invColIssued])
	if err != nil {
		return model.Invoice{}, err
	}
	due, err := parseDate("due", record[invColDue])
	if err != nil {
		return model.Invoice{}, err
	}
	paidOn, err := parseDate("paid_on", record[invColPaidOn])
	if err != nil {
		return model.Invoice{}, err
	}
	amount, err := parseAmount(record[invColAmount])
	if err != nil {
		return model.Invoice{}, err
	}

	return model.Invoice{
		ID:       record[invColID],
		Number:   record[invColNumber],
		Customer: record[invColCustomer],
		Issued:   issued,
		Due:      due,
		Amount:   amount,
		Status:   model.InvoiceStatus(record[invColStatus]),
		PaidOn:   paidOn,
	}, nil
}

// ReadExpenses reads expenses.csv.
func ReadExpenses(r io.Reader) ([]model.Expense, error) {
	records, err := readAll(r, expNumFields, "expenses")
	if err != nil {
		return nil, err
	}

	var expenses []model.Expense
	for i, rec := range records {
		exp, err := UnmarshalExpense(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		expenses = append(expenses, exp)
	}
	return expenses, nil
}

// WriteExpenses writes expenses.csv (including header).
func WriteExpenses(w io.Writer, expenses []model.Expense) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(ExpenseHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, exp := range expenses {
		if err := cw.Write(MarshalExpense(exp)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	return cw.Error()
}

// MarshalExpense converts an Expense to a CSV row.
func MarshalExpense(exp model.Expense) []string {
	row := make([]string, expNumFields)
	row[expColID] = exp.ID
	row[expColDate] = formatDate(exp.Date)
	row[expColVendor] = exp.Vendor
	row[expColCategory] = exp.Category
	row[expColAmount] = exp.Amount.StringFixed(2)
	row[expColNotes] = exp.Notes
	return row
}

// UnmarshalExpense converts a CSV row to an Expense.
func UnmarshalExpense(record []string) (model.Expense, error) {
	if len(record) != expNumFields {
		return model.Expense{}, fmt.Errorf("expected %d fields, got %d", expNumFields, len(record))
	}

	date, err := parseDate("date", record[expColDate])
	if err != nil {
		return model.Expense{}, err
	}
	amount, err := parseAmount(record[expColAmount])
	if err != nil {
		return model.Expense{}, err
	}

	return model.Expense{
		ID:       record[expColID],
		Date:     date,
		Vendor:   record[expColVendor],
		Category: record[expColCategory],
		Amount:   amount,
		Notes:    record[expColNotes],
	}, nil
}

func readAll(r io.Reader, fields int, what string) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = fields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading %s CSV: %w", what, err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[1:], nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateFormat)
}

func parseDate(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing %s %q: %w", field, s, err)
	}
	return t, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("amount %s is negative", s)
	}
	return d, nil
}
