package importer

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fleetbooks/recon/internal/id"
	"github.com/fleetbooks/recon/internal/model"
)

// dateLayouts are tried in order when normalizing a statement date.
var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"2006/01/02",
	"02 Jan 2006",
	"Jan 2, 2006",
	time.RFC3339,
}

var (
	errEmptyDescription = errors.New("empty description")
	errBadAmount        = errors.New("amount is not a number")
	errBadDate          = errors.New("unrecognized date")
)

// ParseDate normalizes a statement date to a calendar date.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return model.CalendarDate(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", errBadDate, s)
}

// ParseAmount reads a signed statement amount. Currency symbols, thousands
// separators and accounting parentheses are accepted.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty", errBadAmount)
	}
	if strings.ContainsAny(s, "eE") {
		return decimal.Zero, fmt.Errorf("%w: %q", errBadAmount, s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", errBadAmount, s)
	}
	if neg {
		d = d.Neg()
	}
	return d, nil
}

// rowBuilder turns raw (date, description, amount) cells into bank
// transactions, numbering accepted rows within one batch.
type rowBuilder struct {
	batch *Batch
	seq   int
}

func newRowBuilder() *rowBuilder {
	return &rowBuilder{batch: &Batch{ID: id.NewBatch()}}
}

func (b *rowBuilder) add(row int, rawDate, rawDesc, rawAmount string) {
	txn, err := b.build(rawDate, rawDesc, rawAmount)
	if err != nil {
		b.skip(row, err.Error())
		return
	}
	b.seq++
	txn.ID = id.FormatTxnID(string(model.SourceBank), b.batch.ID, b.seq)
	b.batch.Transactions = append(b.batch.Transactions, txn)
}

func (b *rowBuilder) skip(row int, reason string) {
	b.batch.Skipped = append(b.batch.Skipped, RowDefect{Row: row, Reason: reason})
}

func (b *rowBuilder) build(rawDate, rawDesc, rawAmount string) (model.Transaction, error) {
	desc := strings.TrimSpace(rawDesc)
	if desc == "" {
		return model.Transaction{}, errEmptyDescription
	}
	amount, err := ParseAmount(rawAmount)
	if err != nil {
		return model.Transaction{}, err
	}
	date, err := ParseDate(rawDate)
	if err != nil {
		return model.Transaction{}, err
	}

	typ := model.Credit
	if amount.IsNegative() {
		typ = model.Debit
	}
	return model.Transaction{
		Date:        date,
		Description: desc,
		Amount:      amount.Abs(),
		Type:        typ,
		Source:      model.SourceBank,
	}, nil
}
