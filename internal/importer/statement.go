package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// Required header names for a generic statement. Matching is exact and
// case-sensitive.
const (
	HeaderDate        = "Date"
	HeaderDescription = "Description"
	HeaderAmount      = "Amount"
)

// StatementParser reads any delimited statement whose header row names
// Date, Description and Amount columns. Extra columns and column order are
// free.
type StatementParser struct {
	// Comma overrides the field delimiter; zero means ','.
	Comma rune
}

// Format returns the parser name.
func (p *StatementParser) Format() string { return "generic" }

// Parse reads the whole statement. A missing or incomplete header fails with
// ErrFormat before any row is accepted; defective rows are skipped and
// reported in the batch.
func (p *StatementParser) Parse(r io.Reader) (*Batch, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	if p.Comma != 0 {
		cr.Comma = p.Comma
	}

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: reading statement: %v", ErrFormat, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: empty file, expected header %s,%s,%s", ErrFormat, HeaderDate, HeaderDescription, HeaderAmount)
	}

	cols, err := headerColumns(records[0])
	if err != nil {
		return nil, err
	}

	b := newRowBuilder()
	for i, rec := range records[1:] {
		row := i + 2
		if isBlank(rec) {
			continue
		}
		if len(rec) <= cols.max() {
			b.skip(row, fmt.Sprintf("expected at least %d fields, got %d", cols.max()+1, len(rec)))
			continue
		}
		b.add(row, rec[cols.date], rec[cols.desc], rec[cols.amount])
	}
	return b.batch, nil
}

type columns struct {
	date, desc, amount int
}

func (c columns) max() int {
	return max(c.date, c.desc, c.amount)
}

func headerColumns(header []string) (columns, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := pos[h]; !dup {
			pos[h] = i
		}
	}

	var missing []string
	lookup := func(name string) int {
		i, ok := pos[name]
		if !ok {
			missing = append(missing, name)
		}
		return i
	}
	c := columns{
		date:   lookup(HeaderDate),
		desc:   lookup(HeaderDescription),
		amount: lookup(HeaderAmount),
	}
	if len(missing) > 0 {
		return columns{}, fmt.Errorf("%w: missing column(s) %s in header %q",
			ErrFormat, strings.Join(missing, ", "), strings.Join(header, ","))
	}
	return c, nil
}

func isBlank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
