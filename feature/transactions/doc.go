// Package transactions serves read-only views of the ledger over HTTP:
// transactions (with date, account and archive filters), per-account totals,
// balance snapshots and item metadata.
package transactions
