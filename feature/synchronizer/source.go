package synchronizer

import (
	"context"

	"plaid-sync/core/models"
	"plaid-sync/core/plaid"

	"cloud.google.com/go/civil"
)

// Source is the remote side of a sync, implemented by *plaid.Client.
type Source interface {
	// ItemInfo returns the item behind accessToken.
	ItemInfo(ctx context.Context, accessToken string) (*models.ItemInfo, error)
	// Balances returns the live balances of the item's accounts.
	Balances(ctx context.Context, accessToken string) ([]models.Balance, error)
	// Transactions fetches every transaction of the window and the accounts
	// the fetch covered.
	Transactions(ctx context.Context, accessToken string, start, end civil.Date, accountIDs []string, progress plaid.ProgressFunc) ([]models.Transaction, []string, error)
}

// Account is one configured credential.
type Account struct {
	Name        string
	AccessToken string
}
