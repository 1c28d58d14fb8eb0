package store

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fleetbooks/recon/internal/model"
)

// BankHeader is the CSV header for ledger/bank.csv.
var BankHeader = []string{"id", "date", "description", "amount", "type"}

const (
	bankFields = 5
	dateFormat = "2006-01-02"
	colID      = 0
	colDate    = 1
	colDesc    = 2
	colAmount  = 3
	colType    = 4
)

// MarshalBank converts a bank transaction to a CSV row.
func MarshalBank(t model.Transaction) []string {
	row := make([]string, bankFields)
	row[colID] = t.ID
	row[colDate] = t.Date.Format(dateFormat)
	row[colDesc] = t.Description
	row[colAmount] = t.Amount.String()
	row[colType] = string(t.Type)
	return row
}

// UnmarshalBank converts a CSV row to a bank transaction.
func UnmarshalBank(record []string) (model.Transaction, error) {
	if len(record) != bankFields {
		return model.Transaction{}, fmt.Errorf("expected %d fields, got %d", bankFields, len(record))
	}

	date, err := time.Parse(dateFormat, record[colDate])
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing date %q: %w", record[colDate], err)
	}

	amount, err := decimal.NewFromString(record[colAmount])
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing amount %q: %w", record[colAmount], err)
	}

	typ := model.TxnType(record[colType])
	if !typ.Valid() {
		return model.Transaction{}, fmt.Errorf("unknown type %q", record[colType])
	}

	return model.Transaction{
		ID:          record[colID],
		Date:        date,
		Description: record[colDesc],
		Amount:      amount,
		Type:        typ,
		Source:      model.SourceBank,
	}, nil
}

// ReadBank reads all rows from a bank.csv reader.
func ReadBank(r io.Reader) ([]model.Transaction, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = bankFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading bank CSV: %w", err)
	}
	if len(records) <= 1 {
		return nil, nil
	}

	txns := make([]model.Transaction, 0, len(records)-1)
	for i, rec := range records[1:] {
		t, err := UnmarshalBank(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		txns = append(txns, t)
	}
	return txns, nil
}

// WriteBank writes rows to w, preceded by the header when header is set.
func WriteBank(w io.Writer, txns []model.Transaction, header bool) error {
	cw := csv.NewWriter(w)
	if header {
		if err := cw.Write(BankHeader); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	for i, t := range txns {
		if err := cw.Write(MarshalBank(t)); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
