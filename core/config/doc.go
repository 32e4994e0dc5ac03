// Package config provides configuration management for plaid-sync.
//
// It utilizes Viper for loading configuration from environment variables,
// a .env file and an optional config file (any format Viper reads).
//
// # Configuration Structure
//
// The Config struct is the central repository for all application settings, divided into subsections:
//   - Plaid: client id, secret, environment, paging and retries
//   - Database: SQLite file or MySQL connection details
//   - Log: Logging level and format
//   - Server: HTTP port, API key and timeouts for the serve command
//   - Storage: S3/MinIO credentials and bucket for report export
//   - Sync: window, balances, concurrency, staleness and schedule
//   - Notify: SMTP settings for report emails
//   - Accounts: account name to access token, from the config file only
//
// Viper lower-cases map keys, so account names are reported in lower case.
//
// # Usage
//
//	cfg, err := config.LoadConfig(".", "plaid-sync.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	accounts := cfg.EnabledAccounts()
package config
