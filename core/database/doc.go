// Package database handles database connections and schema inspection.
//
// It wraps GORM to open either the default file-backed SQLite store or a
// MySQL server, depending on configuration. SQLite connections are limited to
// a single open connection, which gives the ledger a single-writer store.
//
// # Schema Inspection
//
// GetTableColumns lists the columns of a table for both dialects. The ledger
// uses it to verify that a migrated schema carries every expected column.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    log.Fatal("Database connection failed", err)
//	}
//
//	columns, err := database.GetTableColumns(db, "transactions")
package database
