package reconcile

import (
	"context"
	"time"

	"plaid-sync/core/models"

	"cloud.google.com/go/civil"
)

// Index is the read side of the store the reconciler plans against.
type Index interface {
	// CurrentTransactionIDs returns the non-archived ids dated within
	// [start, end] for the given accounts.
	CurrentTransactionIDs(ctx context.Context, start, end civil.Date, accountIDs []string) (map[string]struct{}, error)
	// TransactionsByID loads stored copies, archived ones included.
	TransactionsByID(ctx context.Context, ids []string) ([]models.Transaction, error)
}

// Writer is the write side ApplyPlan drives.
type Writer interface {
	// ArchiveTransactions stamps the given ids archived and returns how many
	// rows changed.
	ArchiveTransactions(ctx context.Context, ids []string, at time.Time) (int64, error)
	// UpsertTransaction inserts or overwrites one transaction.
	UpsertTransaction(ctx context.Context, t models.Transaction, at time.Time) error
}

// Store is both sides at once, as implemented by ledger.Store.
type Store interface {
	Index
	Writer
}
