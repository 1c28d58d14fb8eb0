package records

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fleetbooks/recon/internal/model"
)

// Dir is the records subdirectory of a books directory.
const Dir = "records"

const (
	invoicesFile = "invoices.csv"
	expensesFile = "expenses.csv"
)

// Service reads the invoice and expense records of a books directory.
type Service struct {
	root string
}

// NewService creates a Service rooted at a books directory.
func NewService(root string) *Service {
	return &Service{root: root}
}

// Invoices returns every invoice. A missing file yields none.
func (s *Service) Invoices() ([]model.Invoice, error) {
	f, err := os.Open(filepath.Join(s.root, Dir, invoicesFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening invoices: %w", err)
	}
	defer f.Close()

	invoices, err := ReadInvoices(f)
	if err != nil {
		return nil, fmt.Errorf("reading invoices: %w", err)
	}
	return invoices, nil
}

// Expenses returns every expense. A missing file yields none.
func (s *Service) Expenses() ([]model.Expense, error) {
	f, err := os.Open(filepath.Join(s.root, Dir, expensesFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening expenses: %w", err)
	}
	defer f.Close()

	expenses, err := ReadExpenses(f)
	if err != nil {
		return nil, fmt.Errorf("reading expenses: %w", err)
	}
	return expenses, nil
}

// SystemTransactions derives the system ledger: paid invoices as credits
// and expenses as debits, invoices first.
func (s *Service) SystemTransactions() ([]model.Transaction, error) {
	invoices, err := s.Invoices()
	if err != nil {
		return nil, err
	}
	expenses, err := s.Expenses()
	if err != nil {
		return nil, err
	}
	return ToTransactions(invoices, expenses), nil
}

// ToTransactions converts records into system transactions. Only paid
// invoices take part in reconciliation.
func ToTransactions(invoices []model.Invoice, expenses []model.Expense) []model.Transaction {
	var txns []model.Transaction
	for _, inv := range invoices {
		if inv.Status != model.InvoicePaid {
			continue
		}
		date := inv.PaidOn
		if date.IsZero() {
			date = inv.Issued
		}
		txns = append(txns, model.Transaction{
			ID:          "inv-" + inv.ID,
			Date:        model.CalendarDate(date),
			Description: fmt.Sprintf("Invoice %s - %s", inv.Number, inv.Customer),
			Amount:      inv.Amount,
			Type:        model.Credit,
			Source:      model.SourceSystem,
		})
	}
	for _, exp := range expenses {
		desc := exp.Vendor
		if exp.Category != "" {
			desc = fmt.Sprintf("%s (%s)", exp.Vendor, exp.Category)
		}
		txns = append(txns, model.Transaction{
			ID:          "exp-" + exp.ID,
			Date:        model.CalendarDate(exp.Date),
			Description: desc,
			Amount:      exp.Amount,
			Type:        model.Debit,
			Source:      model.SourceSystem,
		})
	}
	return txns
}

// Save writes both record files, replacing any existing ones.
func (s *Service) Save(invoices []model.Invoice, expenses []model.Expense) error {
	dir := filepath.Join(s.root, Dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating records dir: %w", err)
	}

	inv, err := os.Create(filepath.Join(dir, invoicesFile))
	if err != nil {
		return fmt.Errorf("creating invoices file: %w", err)
	}
	defer inv.Close()
	if err := WriteInvoices(inv, invoices); err != nil {
		return fmt.Errorf("writing invoices: %w", err)
	}

	exp, err := os.Create(filepath.Join(dir, expensesFile))
	if err != nil {
		return fmt.Errorf("creating expenses file: %w", err)
	}
	defer exp.Close()
	if err := WriteExpenses(exp, expenses); err != nil {
		return fmt.Errorf("writing expenses: %w", err)
	}
	return nil
}
