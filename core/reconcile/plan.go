package reconcile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"plaid-sync/core/models"
)

// BuildPlan diffs the working set against the current transactions of the
// window and classifies every id. It reads from idx but never writes.
// Stored copies of ids about to be archived are loaded here, so the pending
// counts reflect storage before the pass.
func BuildPlan(ctx context.Context, idx Index, ws *WorkingSet, window Window, at time.Time, opts Options) (*Plan, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}

	scope := ws.Scope()
	current, err := idx.CurrentTransactionIDs(ctx, window.Start, window.End, scope)
	if err != nil {
		return nil, fmt.Errorf("load current transaction ids: %w", err)
	}

	added, removed, common := Diff(ws.IDs(), current)

	lookup := make([]string, 0, len(added)+len(removed))
	lookup = append(lookup, removed...)
	lookup = append(lookup, added...)
	if opts.RefreshUnchanged {
		lookup = append(lookup, common...)
	}
	stored, err := loadStored(ctx, idx, lookup)
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		Window:     window,
		AccountIDs: scope,
		At:         at.UTC(),
		Counts: Counts{
			TotalFetched: ws.Len(),
			Accounts:     len(ws.Accounts()),
		},
	}

	for _, id := range removed {
		plan.Actions = append(plan.Actions, Action{
			Type:   ActionArchive,
			Key:    id,
			Reason: "missing from fetch",
		})
		plan.Counts.Archived++
		if prior, ok := stored[id]; ok && prior.Pending {
			plan.Counts.ArchivedPending++
		}
	}

	for _, id := range added {
		t, _ := ws.Get(id)
		prior, exists := stored[id]

		switch {
		case exists && prior.IsArchived():
			plan.Resurfaced = append(plan.Resurfaced, id)
			plan.Counts.Resurfaced++
		case exists && prior.AccountID != t.AccountID:
			plan.Conflicts = append(plan.Conflicts, id)
			plan.Counts.Conflicts++
		default:
			reason := "new"
			if exists {
				reason = "stored outside window"
			}
			plan.Actions = append(plan.Actions, Action{
				Type:        ActionInsert,
				Key:         id,
				Reason:      reason,
				Transaction: t,
			})
			plan.Counts.New++
			if t.Pending {
				plan.Counts.NewPending++
			}
		}
	}

	if opts.RefreshUnchanged {
		for _, id := range common {
			t, _ := ws.Get(id)
			prior, ok := stored[id]
			if !ok {
				continue
			}
			fields := drift(prior, t)
			if len(fields) == 0 {
				continue
			}
			plan.Actions = append(plan.Actions, Action{
				Type:        ActionRefresh,
				Key:         id,
				Reason:      "changed: " + strings.Join(fields, ", "),
				Transaction: t,
			})
			plan.Counts.Updated++
		}
	}

	return plan, nil
}

// ApplyPlan executes the actions in a plan.
// Returns the number of actions executed and any error encountered.
// Nothing is written when opts.DryRun is set.
func ApplyPlan(ctx context.Context, w Writer, plan *Plan, opts Options) (executed int, err error) {
	if opts.DryRun || plan == nil {
		return 0, nil
	}

	var (
		archiveKeys []string
		upserts     []Action
	)
	for _, action := range plan.Actions {
		switch action.Type {
		case ActionArchive:
			archiveKeys = append(archiveKeys, action.Key)
		case ActionInsert, ActionRefresh:
			upserts = append(upserts, action)
		}
	}

	if len(archiveKeys) > 0 {
		if _, err := w.ArchiveTransactions(ctx, archiveKeys, plan.At); err != nil {
			return executed, fmt.Errorf("failed to archive %d transactions: %w", len(archiveKeys), err)
		}
		executed += len(archiveKeys)
	}

	for _, action := range upserts {
		if err := w.UpsertTransaction(ctx, action.Transaction, plan.At); err != nil {
			return executed, fmt.Errorf("failed to %s transaction %s: %w", action.Type, action.Key, err)
		}
		executed++
	}

	return executed, nil
}

// ReconcileAndApply is a convenience wrapper that plans and applies against
// one store. It returns the plan, number of actions executed, and any error.
func ReconcileAndApply(ctx context.Context, store Store, ws *WorkingSet, window Window, at time.Time, opts Options) (*Plan, int, error) {
	plan, err := BuildPlan(ctx, store, ws, window, at, opts)
	if err != nil {
		return nil, 0, err
	}

	executed, err := ApplyPlan(ctx, store, plan, opts)
	return plan, executed, err
}

// loadStored fetches stored copies of ids keyed by transaction id.
func loadStored(ctx context.Context, idx Index, ids []string) (map[string]models.Transaction, error) {
	stored := make(map[string]models.Transaction, len(ids))
	if len(ids) == 0 {
		return stored, nil
	}
	txs, err := idx.TransactionsByID(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load stored transactions: %w", err)
	}
	for _, t := range txs {
		stored[t.TransactionID] = t
	}
	return stored, nil
}
