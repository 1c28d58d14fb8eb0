package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// ChaseParser parses Chase bank checking CSV exports.
type ChaseParser struct{}

const (
	chaseNumFields = 7
	chaseColDate   = 1
	chaseColDesc   = 2
	chaseColAmount = 3
)

var chaseHeader = []string{"Details", "Posting Date", "Description", "Amount", "Type", "Balance", "Check or Slip #"}

// Format returns the parser name.
func (p *ChaseParser) Format() string { return "chase" }

// Parse reads a Chase CSV. The header must be the Chase export header.
func (p *ChaseParser) Parse(r io.Reader) (*Batch, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: reading chase CSV: %v", ErrFormat, err)
	}
	if len(records) == 0 || !chaseHeaderOK(records[0]) {
		return nil, fmt.Errorf("%w: not a Chase checking export", ErrFormat)
	}

	b := newRowBuilder()
	for i, rec := range records[1:] {
		row := i + 2
		if isBlank(rec) {
			continue
		}
		if len(rec) != chaseNumFields {
			b.skip(row, fmt.Sprintf("expected %d fields, got %d", chaseNumFields, len(rec)))
			continue
		}
		b.add(row, rec[chaseColDate], rec[chaseColDesc], rec[chaseColAmount])
	}
	return b.batch, nil
}

func chaseHeaderOK(rec []string) bool {
	if len(rec) != chaseNumFields {
		return false
	}
	for i, h := range chaseHeader {
		if strings.TrimSpace(strings.TrimPrefix(rec[i], "\ufeff")) != h {
			return false
		}
	}
	return true
}
