package synchronizer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"plaid-sync/core/ledger"
	"plaid-sync/core/logger"
	"plaid-sync/core/models"
	"plaid-sync/core/reconcile"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Options controls a single run.
type Options struct {
	Window           reconcile.Window
	Balances         bool
	DryRun           bool
	RefreshUnchanged bool
	// Verbose logs per-page fetch progress at info level.
	Verbose bool
}

// Service drives account passes against a Source and the ledger.
type Service struct {
	source Source
	store  *ledger.Store
	logger *zap.Logger
	cfg    Config

	now      func() time.Time
	exporter *Exporter
	notifier *Notifier

	group singleflight.Group
	mu    sync.RWMutex
	last  *Report

	// base is cancelled by Shutdown and bounds every triggered run.
	base     context.Context
	shutdown context.CancelFunc
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// WithExporter uploads every finished report.
func WithExporter(e *Exporter) ServiceOption {
	return func(s *Service) { s.exporter = e }
}

// WithNotifier emails every finished report.
func WithNotifier(n *Notifier) ServiceOption {
	return func(s *Service) { s.notifier = n }
}

// NewService creates a new sync service.
func NewService(source Source, store *ledger.Store, logger *zap.Logger, cfg Config, opts ...ServiceOption) *Service {
	s := &Service{
		source: source,
		store:  store,
		logger: logger,
		cfg:    cfg,
		now:    time.Now,
	}
	s.base, s.shutdown = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DefaultOptions returns run options built from the configuration with the
// window ending today.
func (s *Service) DefaultOptions() Options {
	days := s.cfg.WindowDays
	if days <= 0 {
		days = 30
	}
	today := civil.DateOf(s.now().UTC())
	return Options{
		Window:           reconcile.DefaultWindow(today, days),
		Balances:         s.cfg.Balances,
		RefreshUnchanged: s.cfg.RefreshUnchanged,
	}
}

// SyncAccount runs one account pass: item info, balances, transactions,
// plan, then one storage transaction for every write. Remote failures are
// stored on the result; storage failures are returned as *SyncError.
func (s *Service) SyncAccount(ctx context.Context, acct Account, opts Options) (*Result, error) {
	l := logger.WithAccount(s.logger, acct.Name)
	at := s.now().UTC().Truncate(time.Second)
	res := &Result{Account: acct.Name}

	l.Debug("Fetching item info")
	info, err := s.source.ItemInfo(ctx, acct.AccessToken)
	if err != nil {
		return s.remoteFailure(ctx, l, res, "fetch item info", err)
	}
	res.Item = info

	var balances []models.Balance
	if opts.Balances {
		l.Debug("Fetching balances")
		balances, err = s.source.Balances(ctx, acct.AccessToken)
		if err != nil {
			return s.remoteFailure(ctx, l, res, "fetch balances", err)
		}
		res.Balances = balances
	}

	l.Debug("Fetching transactions", zap.Stringer("window", opts.Window))
	progress := func(fetched, total int) {
		fields := []zap.Field{zap.Int("fetched", fetched), zap.Int("total", total)}
		if opts.Verbose {
			l.Info("Fetched transactions", fields...)
		} else {
			l.Debug("Fetched transactions", fields...)
		}
	}
	txs, covered, err := s.source.Transactions(ctx, acct.AccessToken, opts.Window.Start, opts.Window.End, nil, progress)
	if err != nil {
		return s.remoteFailure(ctx, l, res, "fetch transactions", err)
	}

	ws := reconcile.NewWorkingSet(txs)
	ws.Cover(covered...)

	ropts := reconcile.Options{DryRun: opts.DryRun, RefreshUnchanged: opts.RefreshUnchanged}
	plan, err := reconcile.BuildPlan(ctx, s.store, ws, opts.Window, at, ropts)
	if err != nil {
		return nil, &SyncError{Account: acct.Name, Op: "plan", Err: err}
	}
	res.Counts = plan.Counts

	for _, id := range plan.Conflicts {
		l.Warn("Skipping transaction stored under another account", zap.String("transaction_id", id))
	}
	if len(plan.Resurfaced) > 0 {
		l.Info("Archived transactions reported again", zap.Strings("transaction_ids", plan.Resurfaced))
	}

	if opts.DryRun {
		l.Info("Planned sync", countFields(plan.Counts)...)
		return res, nil
	}

	op := "save item info"
	err = s.store.InTransaction(ctx, func(tx *ledger.Store) error {
		if info != nil {
			if err := tx.UpsertItemInfo(ctx, *info, at); err != nil {
				return err
			}
			op = "save balances"
			for _, b := range balances {
				if err := tx.UpsertBalance(ctx, info.ItemID, b, at); err != nil {
					return err
				}
			}
		}
		op = "apply transactions"
		_, err := reconcile.ApplyPlan(ctx, tx, plan, ropts)
		return err
	})
	if err != nil {
		return nil, &SyncError{Account: acct.Name, Op: op, Err: err}
	}

	l.Info("Synced account", countFields(plan.Counts)...)
	return res, nil
}

// remoteFailure records err on the result unless the run was cancelled.
func (s *Service) remoteFailure(ctx context.Context, l *zap.Logger, res *Result, op string, err error) (*Result, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, &SyncError{Account: res.Account, Op: op, Err: ctxErr}
	}
	res.setError(err)
	l.Warn("Remote error, skipping account", zap.String("op", op), zap.Error(err))
	return res, nil
}

// Run syncs every account and builds the report. Accounts run one at a time
// unless Concurrency is raised; results keep the order of accounts. A
// storage failure cancels the remaining accounts and is returned.
func (s *Service) Run(ctx context.Context, accounts []Account, opts Options) (*Report, error) {
	if len(accounts) == 0 {
		return nil, ErrNoAccounts
	}
	if err := opts.Window.Validate(); err != nil {
		return nil, err
	}

	report := &Report{
		RunID:     newRunID(),
		StartedAt: s.now().UTC(),
		Window:    opts.Window,
		DryRun:    opts.DryRun,
		Results:   make([]*Result, len(accounts)),
	}
	s.logger.Info("Starting sync",
		zap.String("run_id", report.RunID),
		zap.Int("accounts", len(accounts)),
		zap.Stringer("window", opts.Window),
		zap.Bool("dry_run", opts.DryRun))

	limit := s.cfg.Concurrency
	if limit <= 0 {
		limit = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, acct := range accounts {
		i, acct := i, acct
		g.Go(func() error {
			res, err := s.SyncAccount(gctx, acct, opts)
			if err != nil {
				return err
			}
			report.Results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, res := range report.Results {
		report.Totals.Add(res.Counts)
	}
	report.FinishedAt = s.now().UTC()
	report.Stale = Stale(report.Results, report.FinishedAt, s.cfg.StaleAfter())

	s.mu.Lock()
	s.last = report
	s.mu.Unlock()

	s.publish(ctx, report)
	return report, nil
}

// publish exports and emails the report. Failures are logged only.
func (s *Service) publish(ctx context.Context, report *Report) {
	if s.exporter != nil && !report.DryRun {
		if key, err := s.exporter.Export(ctx, report); err != nil {
			s.logger.Error("Failed to export report", zap.String("run_id", report.RunID), zap.Error(err))
		} else {
			s.logger.Info("Exported report", zap.String("key", key))
		}
	}
	if s.notifier != nil {
		if err := s.notifier.Notify(report); err != nil {
			s.logger.Error("Failed to email report", zap.String("run_id", report.RunID), zap.Error(err))
		}
	}
}

// Trigger runs a sync unless one is already in flight, in which case it
// waits for that run and returns its report. shared is true when the report
// came from another caller's run. The run is detached from ctx
// cancellation since other callers may be waiting on it; Shutdown cancels
// it instead.
func (s *Service) Trigger(ctx context.Context, accounts []Account, opts Options) (report *Report, shared bool, err error) {
	v, err, shared := s.group.Do("sync", func() (any, error) {
		runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		defer cancel()
		stop := context.AfterFunc(s.base, cancel)
		defer stop()
		return s.Run(runCtx, accounts, opts)
	})
	if err != nil {
		return nil, shared, err
	}
	return v.(*Report), shared, nil
}

// Shutdown cancels triggered runs in flight. Accounts already applied stay
// written. Later triggers fail immediately.
func (s *Service) Shutdown() {
	s.shutdown()
}

// Last returns the report of the most recent successful run, or nil.
func (s *Service) Last() *Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// StaleItems checks every stored item against the configured age limit.
func (s *Service) StaleItems(ctx context.Context) ([]StaleItem, error) {
	items, err := s.store.ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	return StaleItems(items, s.now().UTC(), s.cfg.StaleAfter()), nil
}

// newRunID returns a time-ordered run id.
func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func countFields(c reconcile.Counts) []zap.Field {
	return []zap.Field{
		zap.Int("new", c.New),
		zap.Int("new_pending", c.NewPending),
		zap.Int("archived", c.Archived),
		zap.Int("archived_pending", c.ArchivedPending),
		zap.Int("resurfaced", c.Resurfaced),
		zap.Int("updated", c.Updated),
		zap.Int("conflicts", c.Conflicts),
		zap.Int("total_fetched", c.TotalFetched),
		zap.Int("accounts", c.Accounts),
	}
}
