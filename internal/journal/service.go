package journal

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fleetbooks/recon/internal/id"
	"github.com/fleetbooks/recon/internal/model"
)

// ErrAlreadyReconciled is returned when a pair member is already closed by
// an earlier pair.
var ErrAlreadyReconciled = errors.New("transaction already reconciled")

// Dir is the ledger subdirectory of a books directory.
const Dir = "ledger"

const fileName = "reconciled.csv"

// Service appends reconciled pairs to per-month reconciled.csv files.
type Service struct {
	root string
}

// NewService creates a journal Service rooted at a books directory.
func NewService(root string) *Service {
	return &Service{root: root}
}

// Append assigns the pair an ID in the month it was reconciled, validates the
// month with the new legs included, and appends them. It returns the pair as
// stored.
func (s *Service) Append(pair model.ReconciledPair) (model.ReconciledPair, error) {
	pair.ReconciledAt = pair.ReconciledAt.UTC().Truncate(time.Second)
	year := pair.ReconciledAt.Year()
	month := int(pair.ReconciledAt.Month())

	if err := s.checkOpen(pair); err != nil {
		return model.ReconciledPair{}, err
	}

	seq, err := s.NextPairSeq(year, month)
	if err != nil {
		return model.ReconciledPair{}, err
	}
	pair.ID = id.FormatPairID(year, month, seq)
	newLegs := PairLegs(pair, func(i int) string { return id.FormatLegID(pair.ID, i) })

	// Read existing legs for validation.
	existing, err := s.ReadMonth(year, month)
	if err != nil {
		return model.ReconciledPair{}, err
	}

	// Validate ALL legs together.
	allLegs := append(existing, newLegs...)
	if err := Join(ValidateLegs(allLegs, year, month)); err != nil {
		return model.ReconciledPair{}, err
	}

	// Append to the month file (create dir + header if new).
	path := s.MonthPath(year, month)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return model.ReconciledPair{}, fmt.Errorf("creating ledger dir: %w", err)
	}

	isNew := false
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		isNew = true
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return model.ReconciledPair{}, fmt.Errorf("opening reconciled journal: %w", err)
	}
	defer f.Close()

	if isNew {
		if err := WriteLegs(f, newLegs); err != nil {
			return model.ReconciledPair{}, fmt.Errorf("writing legs: %w", err)
		}
	} else if err := AppendLegs(f, newLegs); err != nil {
		return model.ReconciledPair{}, fmt.Errorf("appending legs: %w", err)
	}
	if err := f.Sync(); err != nil {
		return model.ReconciledPair{}, fmt.Errorf("syncing reconciled journal: %w", err)
	}

	return pair, nil
}

// checkOpen rejects a pair whose members already belong to a stored pair.
func (s *Service) checkOpen(pair model.ReconciledPair) error {
	closed, err := s.Closed()
	if err != nil {
		return err
	}
	for _, side := range []model.Source{model.SourceBank, model.SourceSystem} {
		for _, txnID := range pair.Members(side) {
			if owner, ok := closed[side][txnID]; ok {
				return fmt.Errorf("%w: %s %s in pair %s", ErrAlreadyReconciled, side, txnID, owner)
			}
		}
	}
	return nil
}

// Closed maps each reconciled transaction ID, per side, to its pair ID.
func (s *Service) Closed() (map[model.Source]map[string]string, error) {
	pairs, err := s.Pairs()
	if err != nil {
		return nil, err
	}
	closed := map[model.Source]map[string]string{
		model.SourceBank:   {},
		model.SourceSystem: {},
	}
	for _, p := range pairs {
		for _, side := range []model.Source{model.SourceBank, model.SourceSystem} {
			for _, txnID := range p.Members(side) {
				closed[side][txnID] = p.ID
			}
		}
	}
	return closed, nil
}

// ReadMonth reads all legs for a given year/month.
func (s *Service) ReadMonth(year, month int) ([]model.Leg, error) {
	return readFile(s.MonthPath(year, month))
}

// Pairs returns every stored pair, oldest month first.
func (s *Service) Pairs() ([]model.ReconciledPair, error) {
	paths, err := filepath.Glob(filepath.Join(s.root, Dir, "[0-9][0-9][0-9][0-9]", "[0-9][0-9]", fileName))
	if err != nil {
		return nil, fmt.Errorf("listing reconciled journals: %w", err)
	}

	var pairs []model.ReconciledPair
	for _, path := range paths {
		legs, err := readFile(path)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, GroupPairs(legs)...)
	}
	return pairs, nil
}

// NextPairSeq returns the next available sequence number for a month.
func (s *Service) NextPairSeq(year, month int) (int, error) {
	legs, err := s.ReadMonth(year, month)
	if err != nil {
		return 0, err
	}

	maxSeq := 0
	for _, leg := range legs {
		_, _, seq, err := id.ParsePairID(leg.LegID)
		if err != nil {
			continue
		}
		if seq > maxSeq {
			maxSeq = seq
		}
	}
	return maxSeq + 1, nil
}

// MonthPath returns the reconciled.csv path for a month.
func (s *Service) MonthPath(year, month int) string {
	return filepath.Join(s.root, Dir, fmt.Sprintf("%04d", year), fmt.Sprintf("%02d", month), fileName)
}

func readFile(path string) ([]model.Leg, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening reconciled journal %s: %w", path, err)
	}
	defer f.Close()

	legs, err := ReadLegs(f)
	if err != nil {
		return nil, fmt.Errorf("reading reconciled journal %s: %w", path, err)
	}
	return legs, nil
}
