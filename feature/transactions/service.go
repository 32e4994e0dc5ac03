package transactions

import (
	"context"
	"sort"
	"time"

	"plaid-sync/core/ledger"
	"plaid-sync/core/models"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Transaction is the API view of a stored transaction.
type Transaction struct {
	models.Transaction
	ArchivedAt *time.Time `json:"archived_at,omitempty"`
}

// Balance is the API view of a balance snapshot.
type Balance struct {
	ItemID string `json:"item_id"`
	Date   string `json:"date"`
	models.Balance
}

// AccountSummary totals the listed transactions of one account and currency.
type AccountSummary struct {
	AccountID    string          `json:"account_id"`
	CurrencyCode string          `json:"iso_currency_code"`
	Count        int             `json:"count"`
	Pending      int             `json:"pending"`
	Total        decimal.Decimal `json:"total"`
}

// Service reads stored data for the query API.
type Service struct {
	store  *ledger.Store
	logger *zap.Logger
}

// NewService creates a new query service.
func NewService(store *ledger.Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// List returns the transactions matching f.
func (s *Service) List(ctx context.Context, f ledger.Filter) ([]Transaction, error) {
	txs, err := s.store.ListTransactions(ctx, f)
	if err != nil {
		return nil, err
	}
	out := make([]Transaction, 0, len(txs))
	for _, t := range txs {
		out = append(out, Transaction{Transaction: t, ArchivedAt: t.ArchivedAt})
	}
	return out, nil
}

// Balances returns the snapshots of date, or of the latest day when date is
// the zero value.
func (s *Service) Balances(ctx context.Context, date civil.Date) ([]Balance, error) {
	snaps, err := s.store.ListBalances(ctx, date)
	if err != nil {
		return nil, err
	}
	out := make([]Balance, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, Balance{ItemID: snap.ItemID, Date: snap.Date, Balance: snap.Balance})
	}
	return out, nil
}

// Items returns every stored item.
func (s *Service) Items(ctx context.Context) ([]models.ItemInfo, error) {
	return s.store.ListItems(ctx)
}

// Summarize totals txs per account and currency, ordered by account then
// currency.
func Summarize(txs []Transaction) []AccountSummary {
	type key struct{ account, currency string }
	byKey := make(map[key]*AccountSummary)
	for _, t := range txs {
		k := key{t.AccountID, t.CurrencyCode}
		sum, ok := byKey[k]
		if !ok {
			sum = &AccountSummary{AccountID: t.AccountID, CurrencyCode: t.CurrencyCode, Total: decimal.Zero}
			byKey[k] = sum
		}
		sum.Count++
		if t.Pending {
			sum.Pending++
		}
		sum.Total = sum.Total.Add(t.Amount)
	}

	out := make([]AccountSummary, 0, len(byKey))
	for _, sum := range byKey {
		out = append(out, *sum)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AccountID != out[j].AccountID {
			return out[i].AccountID < out[j].AccountID
		}
		return out[i].CurrencyCode < out[j].CurrencyCode
	})
	return out
}
