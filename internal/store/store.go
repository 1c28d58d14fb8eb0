// Package store persists the bank ledger and reconciled pairs of a books
// directory.
package store

import (
	"context"

	"github.com/fleetbooks/recon/internal/journal"
	"github.com/fleetbooks/recon/internal/model"
)

// ErrAlreadyReconciled is returned by CommitReconciliation when a member
// transaction already belongs to a stored pair.
var ErrAlreadyReconciled = journal.ErrAlreadyReconciled

// Store is the persistence boundary for bank transactions and pairs. It
// satisfies reconcile.Committer.
type Store interface {
	// BankTransactions returns every stored bank transaction, reconciled or
	// not, in insertion order.
	BankTransactions(ctx context.Context) ([]model.Transaction, error)
	// AddBankTransactions stores newly imported rows. Nothing is stored if
	// any ID already exists.
	AddBankTransactions(ctx context.Context, txns []model.Transaction) error
	// Pairs returns every reconciled pair, oldest first.
	Pairs(ctx context.Context) ([]model.ReconciledPair, error)
	// CommitReconciliation atomically records pair, assigning its ID.
	CommitReconciliation(ctx context.Context, pair model.ReconciledPair) (model.ReconciledPair, error)
	Close() error
}
