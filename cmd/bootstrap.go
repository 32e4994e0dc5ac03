package cmd

import (
	"context"
	"fmt"

	"plaid-sync/core/config"
	"plaid-sync/core/database"
	"plaid-sync/core/ledger"
	"plaid-sync/core/logger"
	"plaid-sync/core/plaid"
	"plaid-sync/core/storage"
	"plaid-sync/feature/synchronizer"

	"go.uber.org/zap"
)

// app carries what every command needs.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *ledger.Store
}

// bootstrap loads configuration, builds the logger and opens the ledger,
// migrating it first when migrate is set.
func bootstrap(ctx context.Context, migrate bool) (*app, error) {
	cfg, err := config.LoadConfig(".", configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if verbose {
		cfg.Log.Level = "debug"
	}

	l, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	zap.ReplaceGlobals(l)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	store := ledger.New(db)
	if migrate {
		if err := store.Migrate(ctx); err != nil {
			return nil, err
		}
	}
	l.Debug("Opened ledger", zap.String("driver", cfg.Database.Driver), zap.String("name", cfg.Database.Name))

	return &app{cfg: cfg, logger: l, store: store}, nil
}

// newSyncService wires the Plaid client, report export and notifications.
func (a *app) newSyncService() (*synchronizer.Service, error) {
	client, err := plaid.NewClient(a.cfg.Plaid, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create plaid client: %w", err)
	}

	var opts []synchronizer.ServiceOption
	if a.cfg.Storage.Enabled {
		sc, err := storage.NewClient(a.cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage client: %w", err)
		}
		opts = append(opts, synchronizer.WithExporter(
			synchronizer.NewExporter(sc, a.cfg.Storage.Bucket, a.cfg.Sync.ExportPrefix, a.cfg.Sync.ExportKeep, a.logger)))
	}
	if a.cfg.Notify.Enabled {
		opts = append(opts, synchronizer.WithNotifier(synchronizer.NewNotifier(a.cfg.Notify, a.logger)))
	}

	return synchronizer.NewService(client, a.store, a.logger, a.cfg.Sync, opts...), nil
}
