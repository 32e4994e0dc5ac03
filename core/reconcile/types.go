package reconcile

import (
	"errors"
	"fmt"
	"time"

	"plaid-sync/core/models"

	"cloud.google.com/go/civil"
)

// Window is the inclusive date range a reconciliation pass covers.
type Window struct {
	Start civil.Date `json:"start" yaml:"start"`
	End   civil.Date `json:"end" yaml:"end"`
}

// DefaultWindow returns the window ending today and starting days earlier.
func DefaultWindow(today civil.Date, days int) Window {
	return Window{Start: today.AddDays(-days), End: today}
}

// Validate rejects invalid dates and windows that end before they start.
func (w Window) Validate() error {
	if !w.Start.IsValid() || !w.End.IsValid() {
		return errors.New("window dates must be valid calendar dates")
	}
	if w.End.Before(w.Start) {
		return fmt.Errorf("end date %s is before start date %s", w.End, w.Start)
	}
	return nil
}

func (w Window) String() string {
	return w.Start.String() + ".." + w.End.String()
}

// Counts summarizes one reconciliation pass.
type Counts struct {
	// New is the number of fetched ids that were not current and got upserted.
	New int `json:"new" yaml:"new"`
	// NewPending is how many of the new transactions are pending.
	NewPending int `json:"new_pending" yaml:"new_pending"`
	// Archived is the number of current ids missing from the fetch.
	Archived int `json:"archived" yaml:"archived"`
	// ArchivedPending is how many archived transactions were pending in storage.
	ArchivedPending int `json:"archived_pending" yaml:"archived_pending"`
	// Resurfaced counts fetched ids that were archived earlier. They stay archived.
	Resurfaced int `json:"resurfaced" yaml:"resurfaced"`
	// Updated counts unchanged ids refreshed because their fields drifted.
	Updated int `json:"updated" yaml:"updated"`
	// Conflicts counts fetched ids stored under a different account.
	Conflicts int `json:"conflicts" yaml:"conflicts"`
	// TotalFetched is the size of the working set.
	TotalFetched int `json:"total_fetched" yaml:"total_fetched"`
	// Accounts is the number of distinct accounts with fetched transactions.
	Accounts int `json:"accounts" yaml:"accounts"`
}

// Add accumulates o into c.
func (c *Counts) Add(o Counts) {
	c.New += o.New
	c.NewPending += o.NewPending
	c.Archived += o.Archived
	c.ArchivedPending += o.ArchivedPending
	c.Resurfaced += o.Resurfaced
	c.Updated += o.Updated
	c.Conflicts += o.Conflicts
	c.TotalFetched += o.TotalFetched
	c.Accounts += o.Accounts
}

// ActionType represents the type of write action.
type ActionType string

const (
	// ActionInsert upserts a fetched transaction that is not current.
	ActionInsert ActionType = "insert"
	// ActionArchive archives a current transaction missing from the fetch.
	ActionArchive ActionType = "archive"
	// ActionRefresh overwrites a current transaction whose fields drifted.
	ActionRefresh ActionType = "refresh"
)

// Action represents a planned write.
type Action struct {
	// Type specifies the action to perform.
	Type ActionType `json:"type"`

	// Key is the transaction id.
	Key string `json:"key"`

	// Reason explains why this action is needed.
	Reason string `json:"reason"`

	// Transaction is the fetched copy to write. Unset for archive actions.
	Transaction models.Transaction `json:"-"`
}

// Plan is the outcome of diffing one working set against storage.
type Plan struct {
	// Window is the date range the plan covers.
	Window Window `json:"window"`

	// AccountIDs are the distinct accounts of the working set, sorted.
	AccountIDs []string `json:"account_ids"`

	// At stamps every write of the pass.
	At time.Time `json:"at"`

	// Actions are the writes ApplyPlan performs, archives first.
	Actions []Action `json:"actions"`

	// Resurfaced lists fetched ids that are already archived.
	Resurfaced []string `json:"resurfaced,omitempty"`

	// Conflicts lists fetched ids stored under another account.
	Conflicts []string `json:"conflicts,omitempty"`

	// Counts provides aggregate counts.
	Counts Counts `json:"counts"`
}

// Options controls planning and apply.
type Options struct {
	// DryRun plans without writing.
	DryRun bool

	// RefreshUnchanged upserts current transactions whose fetched fields
	// differ from the stored copy.
	RefreshUnchanged bool
}
