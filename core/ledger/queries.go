package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"plaid-sync/core/models"

	"cloud.google.com/go/civil"
)

// Filter narrows ListTransactions. Zero values mean "no restriction".
type Filter struct {
	Start           civil.Date
	End             civil.Date
	AccountIDs      []string
	IncludeArchived bool
	Limit           int
}

// ListTransactions returns stored transactions ordered by date then id.
func (s *Store) ListTransactions(ctx context.Context, f Filter) ([]models.Transaction, error) {
	q := s.db.WithContext(ctx).Model(&TransactionRecord{})
	if f.Start.IsValid() {
		q = q.Where("date >= ?", f.Start.String())
	}
	if f.End.IsValid() {
		q = q.Where("date <= ?", f.End.String())
	}
	if len(f.AccountIDs) > 0 {
		q = q.Where("account_id IN ?", f.AccountIDs)
	}
	if !f.IncludeArchived {
		q = q.Where("archived IS NULL")
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var records []TransactionRecord
	if err := q.Order("date").Order("transaction_id").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	out := make([]models.Transaction, 0, len(records))
	for _, r := range records {
		t, err := r.ToModel()
		if err != nil {
			return nil, fmt.Errorf("list transactions: decode %s: %w", r.TransactionID, err)
		}
		out = append(out, t)
	}
	return out, nil
}

// BalanceSnapshot is a stored balance with its key.
type BalanceSnapshot struct {
	ItemID  string
	Date    string
	Balance models.Balance
}

// ListBalances returns the snapshots taken on date, or on the most recent
// day with snapshots when date is invalid.
func (s *Store) ListBalances(ctx context.Context, date civil.Date) ([]BalanceSnapshot, error) {
	day := date.String()
	if !date.IsValid() {
		var latest sql.NullString
		row := s.db.WithContext(ctx).Model(&BalanceRecord{}).Select("MAX(date)").Row()
		if err := row.Scan(&latest); err != nil {
			return nil, fmt.Errorf("list balances: %w", err)
		}
		if !latest.Valid {
			return nil, nil
		}
		day = latest.String
	}

	var records []BalanceRecord
	err := s.db.WithContext(ctx).
		Where("date = ?", day).
		Order("item_id").Order("account_id").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list balances: %w", err)
	}

	out := make([]BalanceSnapshot, 0, len(records))
	for _, r := range records {
		out = append(out, BalanceSnapshot{ItemID: r.ItemID, Date: r.Date, Balance: r.ToModel()})
	}
	return out, nil
}

// ListItems returns every stored item ordered by id.
func (s *Store) ListItems(ctx context.Context) ([]models.ItemInfo, error) {
	var records []ItemRecord
	if err := s.db.WithContext(ctx).Order("item_id").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	out := make([]models.ItemInfo, 0, len(records))
	for _, r := range records {
		info, err := r.ToModel()
		if err != nil {
			return nil, fmt.Errorf("list items: decode %s: %w", r.ItemID, err)
		}
		out = append(out, info)
	}
	return out, nil
}
