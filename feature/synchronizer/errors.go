package synchronizer

import (
	"errors"
	"fmt"
)

// ErrNoAccounts is returned when a run has nothing to sync.
var ErrNoAccounts = errors.New("no enabled accounts configured; add an access token under accounts.<name>.access_token")

// SyncError is a storage failure that aborted the run.
type SyncError struct {
	Account string
	Op      string
	Err     error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync %s: %s: %v", e.Account, e.Op, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}
