// Package logger builds the zap logger used across plaid-sync.
//
// New honours Config.Level and Config.Format ("console" or "json"). Two
// helpers derive child loggers: WithRayID tags every line of one HTTP request
// with its ray id, and WithAccount tags every line of one account pass with
// the configured account name.
//
//	log, _ := logger.New(&logger.Config{Level: "info", Format: "console"})
//	l := logger.WithAccount(log, "chase")
//	l.Info("Synced account", zap.Int("new", 3))
package logger
