package commands

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/fleetbooks/recon/internal/activity"
	"github.com/fleetbooks/recon/internal/config"
	"github.com/fleetbooks/recon/internal/ledger"
	"github.com/fleetbooks/recon/internal/logging"
	"github.com/fleetbooks/recon/internal/matcher"
	"github.com/fleetbooks/recon/internal/model"
	"github.com/fleetbooks/recon/internal/reconcile"
	"github.com/fleetbooks/recon/internal/records"
	"github.com/fleetbooks/recon/internal/store"
)

// globalOptions are the persistent root flags.
type globalOptions struct {
	books    string
	logLevel string
}

// books is an opened books directory with its collaborators wired up.
type books struct {
	root    string
	cfg     *config.Config
	log     *zap.Logger
	store   store.Store
	records *records.Service
	actor   string
}

func openBooks(ctx context.Context, opts *globalOptions) (*books, error) {
	root, err := filepath.Abs(opts.books)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	cfg, err := config.LoadBooks(root)
	if err != nil {
		return nil, fmt.Errorf("%s is not a books directory (run `recon init`): %w", root, err)
	}

	level := cfg.Log.Level
	if opts.logLevel != "" {
		level = opts.logLevel
	}
	log, err := logging.New(level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, root, cfg, log.Named("store"))
	if err != nil {
		_ = log.Sync()
		return nil, fmt.Errorf("opening store: %w", err)
	}

	return &books{
		root:    root,
		cfg:     cfg,
		log:     log,
		store:   st,
		records: records.NewService(root),
		actor:   actorName(),
	}, nil
}

func (b *books) Close() {
	if err := b.store.Close(); err != nil {
		b.log.Warn("closing store", zap.Error(err))
	}
	_ = b.log.Sync()
}

// ledgers derives both open ledgers from the stored bank rows, the business
// records and the reconciled pairs.
func (b *books) ledgers(ctx context.Context) (bank, system *ledger.Ledger, err error) {
	bankTxns, err := b.store.BankTransactions(ctx)
	if err != nil {
		return nil, nil, err
	}
	systemTxns, err := b.records.SystemTransactions()
	if err != nil {
		return nil, nil, err
	}
	pairs, err := b.store.Pairs(ctx)
	if err != nil {
		return nil, nil, err
	}

	bank, err = ledger.Open(model.SourceBank, bankTxns, pairs)
	if err != nil {
		return nil, nil, err
	}
	system, err = ledger.Open(model.SourceSystem, systemTxns, pairs)
	if err != nil {
		return nil, nil, err
	}
	return bank, system, nil
}

// session opens a reconciliation session over the current open ledgers.
func (b *books) session(ctx context.Context) (*reconcile.Session, error) {
	bank, system, err := b.ledgers(ctx)
	if err != nil {
		return nil, err
	}
	m, err := b.matcher()
	if err != nil {
		return nil, err
	}
	return reconcile.NewSession(bank, system, b.store,
		reconcile.WithMatcher(m),
		reconcile.WithLogger(b.log.Named("session")),
	), nil
}

func (b *books) matcher() (matcher.Matcher, error) {
	mc := b.cfg.Matcher
	log := b.log.Named("matcher")
	switch mc.Kind {
	case config.MatcherHTTP:
		return matcher.NewHTTP(matcher.HTTPConfig{
			Endpoint:      mc.Endpoint,
			APIKey:        mc.APIKey(),
			Model:         mc.Model,
			Timeout:       mc.Timeout,
			RatePerMinute: mc.RatePerMinute,
		}, nil, log)
	case config.MatcherProcess:
		return matcher.NewProcess(matcher.ProcessConfig{
			Command: mc.Command,
			Args:    mc.Args,
			Dir:     b.root,
			Timeout: mc.Timeout,
		}, log)
	default:
		return matcher.NewHeuristic(mc.Window), nil
	}
}

// record appends an activity log entry. A failed write is logged, never
// returned: the action it describes already happened.
func (b *books) record(action, details, pairID string) {
	var hash string
	if fs, ok := b.store.(*store.FileStore); ok {
		hash = fs.LastCommit()
	}
	err := activity.Append(b.root, activity.Entry{
		Timestamp:  time.Now().UTC(),
		Actor:      b.actor,
		Action:     action,
		Details:    details,
		PairID:     pairID,
		CommitHash: hash,
	})
	if err != nil {
		b.log.Warn("writing activity log", zap.String("action", action), zap.Error(err))
	}
}

func actorName() string {
	if name := os.Getenv("RECON_ACTOR"); name != "" {
		return name
	}
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "recon"
}
