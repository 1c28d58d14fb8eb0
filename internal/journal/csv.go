package journal

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fleetbooks/recon/internal/model"
)

// Header is the CSV header for reconciled.csv.
var Header = []string{"leg_id", "reconciled_at", "side", "txn_id", "date", "description", "amount", "type"}

const (
	numFields       = 8
	dateFormat      = "2006-01-02"
	colLegID        = 0
	colReconciledAt = 1
	colSide         = 2
	colTxnID        = 3
	colDate         = 4
	colDesc         = 5
	colAmount       = 6
	colType         = 7
)

// ReadLegs reads all legs from a reconciled.csv reader.
func ReadLegs(r io.Reader) ([]model.Leg, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading reconciled CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	// Skip header row.
	var legs []model.Leg
	for i, rec := range records[1:] {
		leg, err := UnmarshalLeg(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		legs = append(legs, leg)
	}
	return legs, nil
}

// WriteLegs writes legs to a reconciled.csv writer (including header).
func WriteLegs(w io.Writer, legs []model.Leg) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, leg := range legs {
		if err := cw.Write(MarshalLeg(leg)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	return cw.Error()
}

// AppendLegs appends legs to an existing reconciled.csv writer (no header).
func AppendLegs(w io.Writer, legs []model.Leg) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	for i, leg := range legs {
		if err := cw.Write(MarshalLeg(leg)); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
	}
	return cw.Error()
}

// MarshalLeg converts a Leg to a CSV row ([]string).
func MarshalLeg(leg model.Leg) []string {
	row := make([]string, numFields)
	row[colLegID] = leg.LegID
	row[colReconciledAt] = leg.ReconciledAt.UTC().Format(time.RFC3339)
	row[colSide] = string(leg.Side)
	row[colTxnID] = leg.TxnID
	row[colDate] = leg.Date.Format(dateFormat)
	row[colDesc] = leg.Description
	row[colAmount] = leg.Amount.String()
	row[colType] = string(leg.Type)
	return row
}

// UnmarshalLeg converts a CSV row to a Leg.
func UnmarshalLeg(record []string) (model.Leg, error) {
	if len(record) != numFields {
		return model.Leg{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	reconciledAt, err := time.Parse(time.RFC3339, record[colReconciledAt])
	if err != nil {
		return model.Leg{}, fmt.Errorf("parsing reconciled_at %q: %w", record[colReconciledAt], err)
	}

	date, err := time.Parse(dateFormat, record[colDate])
	if err != nil {
		return model.Leg{}, fmt.Errorf("parsing date %q: %w", record[colDate], err)
	}

	amount, err := decimal.NewFromString(record[colAmount])
	if err != nil {
		return model.Leg{}, fmt.Errorf("parsing amount %q: %w", record[colAmount], err)
	}

	return model.Leg{
		LegID:        record[colLegID],
		ReconciledAt: reconciledAt,
		Side:         model.Source(record[colSide]),
		TxnID:        record[colTxnID],
		Date:         date,
		Description:  record[colDesc],
		Amount:       amount,
		Type:         model.TxnType(record[colType]),
	}, nil
}

// PairLegs flattens a pair into legs, bank items first.
func PairLegs(pair model.ReconciledPair, legID func(i int) string) []model.Leg {
	var legs []model.Leg
	add := func(side model.Source, items []model.Transaction) {
		for _, t := range items {
			legs = append(legs, model.Leg{
				LegID:        legID(len(legs)),
				ReconciledAt: pair.ReconciledAt,
				Side:         side,
				TxnID:        t.ID,
				Date:         t.Date,
				Description:  t.Description,
				Amount:       t.Amount,
				Type:         t.Type,
			})
		}
	}
	add(model.SourceBank, pair.BankItems)
	add(model.SourceSystem, pair.SystemItems)
	return legs
}

// GroupPairs rebuilds pairs from legs, in order of first appearance.
func GroupPairs(legs []model.Leg) []model.ReconciledPair {
	var pairs []model.ReconciledPair
	index := make(map[string]int)
	for _, leg := range legs {
		pid := leg.PairID()
		i, ok := index[pid]
		if !ok {
			i = len(pairs)
			index[pid] = i
			pairs = append(pairs, model.ReconciledPair{ID: pid, ReconciledAt: leg.ReconciledAt})
		}
		if leg.Side == model.SourceBank {
			pairs[i].BankItems = append(pairs[i].BankItems, leg.Transaction())
		} else {
			pairs[i].SystemItems = append(pairs[i].SystemItems, leg.Transaction())
		}
	}
	return pairs
}
