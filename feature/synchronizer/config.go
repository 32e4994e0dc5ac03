package synchronizer

import "time"

// Config holds configuration for sync runs.
type Config struct {
	// WindowDays is how many days back the default window starts.
	WindowDays int `mapstructure:"window_days" default:"30"`
	// Balances enables balance snapshots on every run.
	Balances bool `mapstructure:"balances" default:"false"`
	// RefreshUnchanged upserts current transactions whose fields drifted.
	RefreshUnchanged bool `mapstructure:"refresh_unchanged" default:"false"`
	// Concurrency bounds how many accounts sync at once.
	Concurrency int `mapstructure:"concurrency" default:"1"`
	// StaleAfterDays flags items without a successful update for longer.
	StaleAfterDays int `mapstructure:"stale_after_days" default:"3"`
	// Schedule is a cron expression for the serve command. Empty disables it.
	Schedule string `mapstructure:"schedule" default:""`
	// ExportPrefix is the object storage prefix run reports are written under.
	ExportPrefix string `mapstructure:"export_prefix" default:"reports"`
	// ExportKeep bounds how many exported reports are kept. Zero keeps all.
	ExportKeep int `mapstructure:"export_keep" default:"0"`
}

// StaleAfter returns the staleness limit, three days unless configured.
func (c Config) StaleAfter() time.Duration {
	days := c.StaleAfterDays
	if days <= 0 {
		days = 3
	}
	return time.Duration(days) * 24 * time.Hour
}
