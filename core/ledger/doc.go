// Package ledger is the durable, idempotent store behind the sync.
//
// It keeps three tables:
//
//   - transactions: one row per transaction id, unique on its own and together
//     with its account id. Rows are soft-deleted by stamping "archived".
//   - balances: one snapshot per (item_id, account_id, date); same-day writes
//     overwrite, new days append.
//   - items: one row per item id with the update health timestamps.
//
// Every write is committed before the call returns. InTransaction groups the
// writes of one account pass so a failure rolls back that account only.
// Timestamps are UTC ISO-8601 strings with second precision.
//
// # Usage
//
//	store := ledger.New(db)
//	if err := store.Migrate(ctx); err != nil {
//	    return err
//	}
//	ids, err := store.CurrentTransactionIDs(ctx, start, end, accountIDs)
package ledger
