package importer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fleetbooks/recon/internal/model"
)

// ErrFormat is returned when a statement's layout is not recognized. No rows
// are accepted from a file that fails this way.
var ErrFormat = errors.New("statement format error")

// Parser converts a bank statement into a batch of bank transactions.
type Parser interface {
	Parse(r io.Reader) (*Batch, error)
	Format() string
}

// RowDefect describes a row left out of a batch.
type RowDefect struct {
	Row    int // 1-based line number in the file, header is row 1
	Reason string
}

// Batch is the outcome of ingesting one statement.
type Batch struct {
	ID           string
	Transactions []model.Transaction
	Skipped      []RowDefect
}

// Accepted returns the number of rows that became transactions.
func (b *Batch) Accepted() int { return len(b.Transactions) }

// Registry holds named parsers.
type Registry struct {
	parsers map[string]Parser
}

// FileInfo describes a statement file waiting in the statements directory.
type FileInfo struct {
	Name string
	Path string
	Size int64
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register adds a parser. Panics on duplicate format.
func (r *Registry) Register(p Parser) {
	key := strings.ToLower(p.Format())
	if _, ok := r.parsers[key]; ok {
		panic("duplicate parser format: " + key)
	}
	r.parsers[key] = p
}

// Get returns the parser for format, or nil.
func (r *Registry) Get(format string) Parser {
	return r.parsers[strings.ToLower(format)]
}

// Formats lists the registered format names.
func (r *Registry) Formats() []string {
	out := make([]string, 0, len(r.parsers))
	for k := range r.parsers {
		out = append(out, k)
	}
	return out
}

// DefaultRegistry returns a registry with all built-in parsers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&StatementParser{})
	r.Register(&ChaseParser{})
	return r
}

// StatementsDir is the subdirectory for incoming statements.
const StatementsDir = "statements"

// processedDir is the subdirectory for ingested statements.
const processedDir = "statements/processed"

// Scan returns CSV files in <root>/statements/.
func Scan(root string) ([]FileInfo, error) {
	dir := filepath.Join(root, StatementsDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading statements dir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(e.Name()), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			Name: e.Name(),
			Path: filepath.Join(dir, e.Name()),
			Size: info.Size(),
		})
	}
	return files, nil
}

// MarkProcessed moves a file from statements/ to statements/processed/.
func MarkProcessed(root, fileName string) error {
	src := filepath.Join(root, StatementsDir, fileName)
	dstDir := filepath.Join(root, processedDir)

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}

	dst := filepath.Join(dstDir, fileName)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("moving %s to processed: %w", fileName, err)
	}
	return nil
}
