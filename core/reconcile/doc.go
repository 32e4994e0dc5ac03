// Package reconcile computes and applies the difference between a freshly
// fetched set of transactions and the transactions already stored for the
// same date window and accounts.
//
// Planning is pure with respect to storage: BuildPlan only reads the current
// id index and stored copies, then classifies every id.
//
//   - new: fetched but not current. Upserted.
//   - archive: current but not fetched. Stamped archived.
//   - unchanged: both. Left alone, or refreshed when the fetched fields
//     drifted and Options.RefreshUnchanged is set.
//   - resurfaced: fetched, but archived by an earlier pass. Archive is
//     monotonic, so these are only counted.
//   - conflict: fetched, but stored under another account. Skipped.
//
// ApplyPlan performs the writes with the single timestamp captured in the
// plan. Run it inside one storage transaction per account.
//
// # Usage Example
//
//	ws := reconcile.NewWorkingSet(fetched)
//	ws.Cover(coveredAccounts...)
//	plan, err := reconcile.BuildPlan(ctx, store, ws, window, now, opts)
//	if err != nil {
//	    return err
//	}
//	err = store.InTransaction(ctx, func(tx *ledger.Store) error {
//	    _, err := reconcile.ApplyPlan(ctx, tx, plan, opts)
//	    return err
//	})
package reconcile
