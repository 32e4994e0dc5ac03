package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"plaid-sync/core/database"
	"plaid-sync/core/models"

	"cloud.google.com/go/civil"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrAccountMismatch is returned when an upsert would move an existing
// transaction id to another account.
var ErrAccountMismatch = errors.New("transaction id already stored under another account")

// batchSize bounds the number of bound parameters per IN clause.
const batchSize = 500

// Store persists transactions, balance snapshots and item metadata.
// Writes are serialized through a single writer lock; every call commits
// before it returns.
type Store struct {
	db *gorm.DB
	mu *sync.Mutex
	tx bool
}

// New wraps db. Call Migrate before first use on a fresh database.
func New(db *gorm.DB) *Store {
	return &Store{db: db, mu: &sync.Mutex{}}
}

// Migrate creates or updates the tables and their unique indexes.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&TransactionRecord{}, &BalanceRecord{}, &ItemRecord{}); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// Verify reports tables that lack expected columns.
func (s *Store) Verify(ctx context.Context) error {
	tables := make([]string, 0, len(expectedColumns))
	for table := range expectedColumns {
		tables = append(tables, table)
	}
	sort.Strings(tables)

	var problems []string
	for _, table := range tables {
		missing, err := database.MissingColumns(ctx, s.db, table, expectedColumns[table])
		if err != nil {
			return fmt.Errorf("verify schema: %w", err)
		}
		if len(missing) > 0 {
			problems = append(problems, fmt.Sprintf("%s missing %s", table, strings.Join(missing, ", ")))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("verify schema: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InTransaction runs fn against a store bound to one database transaction.
// The writer lock is held for the whole of fn, so a failure inside fn rolls
// back every write fn made and nothing else.
func (s *Store) InTransaction(ctx context.Context, fn func(tx *Store) error) error {
	if s.tx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx, mu: s.mu, tx: true})
	})
}

// write runs fn in its own transaction unless the store is already bound
// to one.
func (s *Store) write(ctx context.Context, op string, fn func(db *gorm.DB) error) error {
	var err error
	if s.tx {
		err = fn(s.db.WithContext(ctx))
	} else {
		s.mu.Lock()
		err = s.db.WithContext(ctx).Transaction(fn)
		s.mu.Unlock()
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// CurrentTransactionIDs returns the ids of non-archived transactions dated
// within [start, end] that belong to one of accountIDs. No accounts means no
// ids.
func (s *Store) CurrentTransactionIDs(ctx context.Context, start, end civil.Date, accountIDs []string) (map[string]struct{}, error) {
	ids := make(map[string]struct{})
	if len(accountIDs) == 0 {
		return ids, nil
	}

	for _, accounts := range chunk(accountIDs) {
		var batch []string
		err := s.db.WithContext(ctx).
			Model(&TransactionRecord{}).
			Where("date BETWEEN ? AND ?", start.String(), end.String()).
			Where("account_id IN ?", accounts).
			Where("archived IS NULL").
			Pluck("transaction_id", &batch).Error
		if err != nil {
			return nil, fmt.Errorf("list current transaction ids: %w", err)
		}
		for _, id := range batch {
			ids[id] = struct{}{}
		}
	}
	return ids, nil
}

// TransactionsByID loads stored transactions, archived or not. Unknown ids
// are omitted.
func (s *Store) TransactionsByID(ctx context.Context, ids []string) ([]models.Transaction, error) {
	var out []models.Transaction
	for _, batch := range chunk(ids) {
		var records []TransactionRecord
		err := s.db.WithContext(ctx).
			Where("transaction_id IN ?", batch).
			Order("transaction_id").
			Find(&records).Error
		if err != nil {
			return nil, fmt.Errorf("fetch transactions by id: %w", err)
		}
		for _, r := range records {
			t, err := r.ToModel()
			if err != nil {
				return nil, fmt.Errorf("fetch transactions by id: decode %s: %w", r.TransactionID, err)
			}
			out = append(out, t)
		}
	}
	return out, nil
}

// ArchiveTransactions stamps the given non-archived transactions with at.
// Already archived and unknown ids are left alone. It returns the number of
// rows archived.
func (s *Store) ArchiveTransactions(ctx context.Context, ids []string, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	stamp := models.FormatTimestamp(at)

	var affected int64
	err := s.write(ctx, "archive transactions", func(db *gorm.DB) error {
		for _, batch := range chunk(ids) {
			res := db.Model(&TransactionRecord{}).
				Where("archived IS NULL").
				Where("transaction_id IN ?", batch).
				Update("archived", stamp)
			if res.Error != nil {
				return res.Error
			}
			affected += res.RowsAffected
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

// UpsertTransaction inserts t or, when (account_id, transaction_id) exists,
// overwrites its mutable fields. The archive stamp and creation time are
// never touched. An id stored under another account yields ErrAccountMismatch.
func (s *Store) UpsertTransaction(ctx context.Context, t models.Transaction, at time.Time) error {
	record := newTransactionRecord(t, models.FormatTimestamp(at))

	return s.write(ctx, "upsert transaction "+t.TransactionID, func(db *gorm.DB) error {
		var owners []string
		if err := db.Model(&TransactionRecord{}).
			Where("transaction_id = ?", t.TransactionID).
			Pluck("account_id", &owners).Error; err != nil {
			return err
		}
		for _, owner := range owners {
			if owner != t.AccountID {
				return fmt.Errorf("%w: %s belongs to %s, not %s", ErrAccountMismatch, t.TransactionID, owner, t.AccountID)
			}
		}

		return db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "account_id"}, {Name: "transaction_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"date", "pending", "merchant_name", "amount", "iso_currency_code", "updated", "plaid_json",
			}),
		}).Create(&record).Error
	})
}

// UpsertBalance stores b as the snapshot of (itemID, account, day of at).
// A second call on the same day overwrites the first.
func (s *Store) UpsertBalance(ctx context.Context, itemID string, b models.Balance, at time.Time) error {
	record := newBalanceRecord(itemID, b, at)

	return s.write(ctx, "upsert balance "+b.AccountID, func(db *gorm.DB) error {
		return db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "item_id"}, {Name: "account_id"}, {Name: "date"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"account_type", "balance_current", "balance_available", "balance_limit", "currency_code", "updated", "plaid_json",
			}),
		}).Create(&record).Error
	})
}

// UpsertItemInfo stores info keyed on its item id, last write wins.
func (s *Store) UpsertItemInfo(ctx context.Context, info models.ItemInfo, at time.Time) error {
	record := newItemRecord(info, at)

	return s.write(ctx, "upsert item "+info.ItemID, func(db *gorm.DB) error {
		return db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "item_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"institution_id", "consent_expiration", "last_failed_update", "last_successful_update", "updated", "plaid_json",
			}),
		}).Create(&record).Error
	})
}

func chunk(ids []string) [][]string {
	var out [][]string
	for len(ids) > batchSize {
		out = append(out, ids[:batchSize])
		ids = ids[batchSize:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}
