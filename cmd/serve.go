package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"plaid-sync/core/loader"
	"plaid-sync/core/logger"
	"plaid-sync/core/middleware/auth"
	"plaid-sync/core/middleware/rayid"
	"plaid-sync/feature/synchronizer"
	"plaid-sync/feature/transactions"

	"github.com/gofiber/fiber/v2"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the sync schedule",
	Long: `Starts the HTTP server exposing sync triggers and read-only views of the
database. When sync.schedule is set, syncs also run on that cron schedule.`,
	RunE: runServe,
}

func init() {
	RootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Configuration, logger and database
	a, err := bootstrap(ctx, true)
	if err != nil {
		return err
	}
	defer a.logger.Sync()
	logg := a.logger

	svc, err := a.newSyncService()
	if err != nil {
		return err
	}
	accounts := a.cfg.EnabledAccounts()
	if len(accounts) == 0 {
		logg.Warn("No enabled accounts, sync routes are disabled")
	}

	// 2. Initialize Fiber App
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true, // We will log our own startup message
		ReadTimeout:           a.cfg.Server.ReadTimeout(),
		WriteTimeout:          a.cfg.Server.WriteTimeout(),
	})

	// 3. Initialize Feature Loader
	mgr := loader.NewManager(logg)
	mgr.Register(synchronizer.NewFeature(svc, accounts))
	mgr.Register(transactions.NewFeature(a.store, logg))

	// Middleware Registration
	// 1. RayID (Must be first to trace everything)
	app.Use(rayid.New())

	// 2. Request logging with the ray id
	app.Use(func(c *fiber.Ctx) error {
		l := logger.WithRayID(logg, c)
		l.Info("Request started",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("ip", c.IP()),
		)
		err := c.Next()
		if err != nil {
			l.Error("Request error", zap.Error(err))
		}
		return err
	})

	// 3. Auth (everything but the health check)
	app.Use(auth.New(auth.Config{ApiKey: a.cfg.Server.ApiKey, Skip: []string{"/health"}}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "features": mgr.Names()})
	})

	// 4. Load Features
	if err := mgr.LoadAll(app); err != nil {
		return err
	}

	// 5. Schedule
	scheduler, err := startSchedule(ctx, a.cfg.Sync.Schedule, svc, accounts, logg)
	if err != nil {
		return err
	}
	if scheduler != nil {
		defer func() { <-scheduler.Stop().Done() }()
	}
	// must run before the scheduler wait above
	defer svc.Shutdown()

	// 6. Start Server
	errCh := make(chan error, 1)
	go func() {
		logg.Info("Starting server", zap.String("port", a.cfg.Server.Port))
		errCh <- app.Listen(a.cfg.Server.Addr())
	}()

	// 7. Graceful Shutdown
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logg.Info("Shutting down server...")
	return app.Shutdown()
}

// startSchedule runs a sync on every tick of spec. An empty spec schedules
// nothing.
func startSchedule(ctx context.Context, spec string, svc *synchronizer.Service, accounts []synchronizer.Account, logg *zap.Logger) (*cron.Cron, error) {
	if spec == "" || len(accounts) == 0 {
		return nil, nil
	}

	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		report, shared, err := svc.Trigger(ctx, accounts, svc.DefaultOptions())
		if err != nil {
			logg.Error("Scheduled sync failed", zap.Error(err))
			return
		}
		logg.Info("Scheduled sync finished",
			zap.String("run_id", report.RunID),
			zap.Bool("shared", shared),
			zap.Int("new", report.Totals.New),
			zap.Int("archived", report.Totals.Archived),
			zap.Int("failed", len(report.Failed())))
	})
	if err != nil {
		return nil, err
	}

	c.Start()
	logg.Info("Scheduled syncs", zap.String("schedule", spec))
	return c, nil
}
