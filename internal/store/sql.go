package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fleetbooks/recon/internal/id"
	"github.com/fleetbooks/recon/internal/journal"
	"github.com/fleetbooks/recon/internal/ledger"
	"github.com/fleetbooks/recon/internal/model"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS bank_transactions (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	id          TEXT NOT NULL UNIQUE,
	date        TEXT NOT NULL,
	description TEXT NOT NULL,
	amount      TEXT NOT NULL,
	type        TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS reconciled_pairs (
	id            TEXT PRIMARY KEY,
	reconciled_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS pair_members (
	pair_id     TEXT NOT NULL REFERENCES reconciled_pairs(id),
	leg         INTEGER NOT NULL,
	side        TEXT NOT NULL,
	txn_id      TEXT NOT NULL,
	date        TEXT NOT NULL,
	description TEXT NOT NULL,
	amount      TEXT NOT NULL,
	type        TEXT NOT NULL,
	PRIMARY KEY (pair_id, leg),
	UNIQUE (side, txn_id)
);`

// SQLStore keeps bank transactions and pairs in a SQLite database.
type SQLStore struct {
	db  *sql.DB
	log *zap.Logger
}

// OpenSQLite opens (creating if needed) the database file at path.
func OpenSQLite(ctx context.Context, path string, log *zap.Logger) (*SQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", path, err)
	}
	// One writer keeps pair sequence assignment serialized.
	db.SetMaxOpenConns(1)
	s, err := NewSQLStore(ctx, db, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps db and migrates the schema.
func NewSQLStore(ctx context.Context, db *sql.DB, log *zap.Logger) (*SQLStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s := &SQLStore{db: db, log: log}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return s, nil
}

// BankTransactions implements Store.
func (s *SQLStore) BankTransactions(ctx context.Context) ([]model.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, date, description, amount, type FROM bank_transactions ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("querying bank transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var txns []model.Transaction
	for rows.Next() {
		var rec [5]string
		if err := rows.Scan(&rec[0], &rec[1], &rec[2], &rec[3], &rec[4]); err != nil {
			return nil, fmt.Errorf("scanning bank transaction: %w", err)
		}
		t, err := UnmarshalBank(rec[:])
		if err != nil {
			return nil, fmt.Errorf("bank transaction %s: %w", rec[0], err)
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating bank transactions: %w", err)
	}
	return txns, nil
}

// AddBankTransactions implements Store.
func (s *SQLStore) AddBankTransactions(ctx context.Context, txns []model.Transaction) (err error) {
	if len(txns) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, t := range txns {
		row := MarshalBank(t)
		_, err = tx.ExecContext(ctx,
			`INSERT INTO bank_transactions (id, date, description, amount, type) VALUES (?, ?, ?, ?, ?)`,
			row[colID], row[colDate], row[colDesc], row[colAmount], row[colType])
		if isUniqueViolation(err) {
			return fmt.Errorf("bank ledger: %w: %s", ledger.ErrDuplicateID, t.ID)
		}
		if err != nil {
			return fmt.Errorf("inserting bank transaction %s: %w", t.ID, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing bank transactions: %w", err)
	}
	return nil
}

// Pairs implements Store.
func (s *SQLStore) Pairs(ctx context.Context) ([]model.ReconciledPair, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.pair_id, m.leg, p.reconciled_at, m.side, m.txn_id, m.date, m.description, m.amount, m.type
		FROM pair_members m JOIN reconciled_pairs p ON p.id = m.pair_id
		ORDER BY p.reconciled_at, m.pair_id, m.leg`)
	if err != nil {
		return nil, fmt.Errorf("querying pairs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var legs []model.Leg
	for rows.Next() {
		var (
			pairID, at, side, txnID, date, desc, amount, typ string
			n                                                int
		)
		if err := rows.Scan(&pairID, &n, &at, &side, &txnID, &date, &desc, &amount, &typ); err != nil {
			return nil, fmt.Errorf("scanning pair member: %w", err)
		}
		leg, err := journal.UnmarshalLeg([]string{id.FormatLegID(pairID, n), at, side, txnID, date, desc, amount, typ})
		if err != nil {
			return nil, fmt.Errorf("pair %s: %w", pairID, err)
		}
		legs = append(legs, leg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pairs: %w", err)
	}
	return journal.GroupPairs(legs), nil
}

// CommitReconciliation implements Store and reconcile.Committer. The pair and
// its members are written in one transaction.
func (s *SQLStore) CommitReconciliation(ctx context.Context, pair model.ReconciledPair) (stored model.ReconciledPair, err error) {
	pair.ReconciledAt = pair.ReconciledAt.UTC().Truncate(time.Second)
	if err := journal.Join(journal.ValidatePair(pair)); err != nil {
		return model.ReconciledPair{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.ReconciledPair{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = checkOpen(ctx, tx, pair); err != nil {
		return model.ReconciledPair{}, err
	}

	year, month := pair.ReconciledAt.Year(), int(pair.ReconciledAt.Month())
	var count int
	prefix := fmt.Sprintf("%04d-%02d-", year, month)
	if err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reconciled_pairs WHERE id LIKE ?`, prefix+"%").Scan(&count); err != nil {
		return model.ReconciledPair{}, fmt.Errorf("counting pairs: %w", err)
	}
	pair.ID = id.FormatPairID(year, month, count+1)

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO reconciled_pairs (id, reconciled_at) VALUES (?, ?)`,
		pair.ID, pair.ReconciledAt.Format(time.RFC3339)); err != nil {
		return model.ReconciledPair{}, fmt.Errorf("inserting pair %s: %w", pair.ID, err)
	}

	legs := journal.PairLegs(pair, func(i int) string { return id.FormatLegID(pair.ID, i) })
	for i, leg := range legs {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO pair_members (pair_id, leg, side, txn_id, date, description, amount, type)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			pair.ID, i, string(leg.Side), leg.TxnID, leg.Date.Format(dateFormat),
			leg.Description, leg.Amount.String(), string(leg.Type))
		if isUniqueViolation(err) {
			return model.ReconciledPair{}, fmt.Errorf("%w: %s %s", ErrAlreadyReconciled, leg.Side, leg.TxnID)
		}
		if err != nil {
			return model.ReconciledPair{}, fmt.Errorf("inserting member %s: %w", leg.TxnID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return model.ReconciledPair{}, fmt.Errorf("committing pair %s: %w", pair.ID, err)
	}
	s.log.Info("pair recorded",
		zap.String("pair_id", pair.ID),
		zap.Int("bank_items", len(pair.BankItems)),
		zap.Int("system_items", len(pair.SystemItems)),
	)
	return pair, nil
}

// Close implements Store.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func checkOpen(ctx context.Context, tx *sql.Tx, pair model.ReconciledPair) error {
	for _, side := range []model.Source{model.SourceBank, model.SourceSystem} {
		for _, txnID := range pair.Members(side) {
			var owner string
			err := tx.QueryRowContext(ctx,
				`SELECT pair_id FROM pair_members WHERE side = ? AND txn_id = ?`, string(side), txnID).Scan(&owner)
			switch {
			case errors.Is(err, sql.ErrNoRows):
			case err != nil:
				return fmt.Errorf("checking %s %s: %w", side, txnID, err)
			default:
				return fmt.Errorf("%w: %s %s in pair %s", ErrAlreadyReconciled, side, txnID, owner)
			}
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
