package ledger

import (
	"encoding/json"
	"time"

	"plaid-sync/core/models"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// TransactionRecord is a row of the transactions table.
// A transaction id is unique on its own and together with its account.
type TransactionRecord struct {
	ID            uint            `gorm:"column:id;primaryKey"`
	AccountID     string          `gorm:"column:account_id;size:100;not null;uniqueIndex:accounts_idx,priority:1"`
	TransactionID string          `gorm:"column:transaction_id;size:100;not null;uniqueIndex:accounts_idx,priority:2;uniqueIndex:transactions_idx"`
	Date          string          `gorm:"column:date;size:10;not null;index:transactions_date_idx"`
	Pending       bool            `gorm:"column:pending"`
	MerchantName  string          `gorm:"column:merchant_name;size:255"`
	Amount        decimal.Decimal `gorm:"column:amount;type:decimal(20,4)"`
	CurrencyCode  string          `gorm:"column:iso_currency_code;size:8"`
	Created       string          `gorm:"column:created;size:20"`
	Updated       string          `gorm:"column:updated;size:20"`
	Archived      *string         `gorm:"column:archived;size:20"`
	PlaidJSON     string          `gorm:"column:plaid_json;type:text"`
}

// TableName overrides the table name.
func (TransactionRecord) TableName() string {
	return "transactions"
}

// BalanceRecord is a row of the balances table, one per item, account and day.
type BalanceRecord struct {
	ID               uint                `gorm:"column:id;primaryKey"`
	Date             string              `gorm:"column:date;size:10;not null;uniqueIndex:balances_idx,priority:3"`
	ItemID           string              `gorm:"column:item_id;size:100;not null;uniqueIndex:balances_idx,priority:1"`
	AccountID        string              `gorm:"column:account_id;size:100;not null;uniqueIndex:balances_idx,priority:2"`
	AccountType      string              `gorm:"column:account_type;size:50"`
	BalanceCurrent   decimal.NullDecimal `gorm:"column:balance_current;type:decimal(20,4)"`
	BalanceAvailable decimal.NullDecimal `gorm:"column:balance_available;type:decimal(20,4)"`
	BalanceLimit     decimal.NullDecimal `gorm:"column:balance_limit;type:decimal(20,4)"`
	CurrencyCode     string              `gorm:"column:currency_code;size:8"`
	Updated          string              `gorm:"column:updated;size:20"`
	PlaidJSON        string              `gorm:"column:plaid_json;type:text"`
}

// TableName overrides the table name.
func (BalanceRecord) TableName() string {
	return "balances"
}

// ItemRecord is a row of the items table.
type ItemRecord struct {
	ID                   uint    `gorm:"column:id;primaryKey"`
	ItemID               string  `gorm:"column:item_id;size:100;not null;uniqueIndex:items_idx"`
	InstitutionID        string  `gorm:"column:institution_id;size:100"`
	ConsentExpiration    *string `gorm:"column:consent_expiration;size:20"`
	LastFailedUpdate     *string `gorm:"column:last_failed_update;size:20"`
	LastSuccessfulUpdate *string `gorm:"column:last_successful_update;size:20"`
	Updated              string  `gorm:"column:updated;size:20"`
	PlaidJSON            string  `gorm:"column:plaid_json;type:text"`
}

// TableName overrides the table name.
func (ItemRecord) TableName() string {
	return "items"
}

// expectedColumns lists the columns Verify requires per table.
var expectedColumns = map[string][]string{
	"transactions": {"account_id", "transaction_id", "date", "pending", "merchant_name", "amount", "iso_currency_code", "created", "updated", "archived", "plaid_json"},
	"balances":     {"date", "item_id", "account_id", "account_type", "balance_current", "balance_available", "balance_limit", "currency_code", "updated", "plaid_json"},
	"items":        {"item_id", "institution_id", "consent_expiration", "last_failed_update", "last_successful_update", "updated", "plaid_json"},
}

func newTransactionRecord(t models.Transaction, stamp string) TransactionRecord {
	return TransactionRecord{
		AccountID:     t.AccountID,
		TransactionID: t.TransactionID,
		Date:          t.Date.String(),
		Pending:       t.Pending,
		MerchantName:  t.MerchantName,
		Amount:        t.Amount,
		CurrencyCode:  t.CurrencyCode,
		Created:       stamp,
		Updated:       stamp,
		PlaidJSON:     rawJSON(t.Raw, t),
	}
}

// ToModel converts the row back to the shared transaction type.
func (r TransactionRecord) ToModel() (models.Transaction, error) {
	date, err := civil.ParseDate(r.Date)
	if err != nil {
		return models.Transaction{}, err
	}
	archived, err := models.ParseTimestamp(r.Archived)
	if err != nil {
		return models.Transaction{}, err
	}
	return models.Transaction{
		TransactionID: r.TransactionID,
		AccountID:     r.AccountID,
		Date:          date,
		Pending:       r.Pending,
		MerchantName:  r.MerchantName,
		Amount:        r.Amount,
		CurrencyCode:  r.CurrencyCode,
		ArchivedAt:    archived,
		Raw:           json.RawMessage(r.PlaidJSON),
	}, nil
}

func newBalanceRecord(itemID string, b models.Balance, at time.Time) BalanceRecord {
	return BalanceRecord{
		Date:             civil.DateOf(at.UTC()).String(),
		ItemID:           itemID,
		AccountID:        b.AccountID,
		AccountType:      b.Type,
		BalanceCurrent:   b.Current,
		BalanceAvailable: b.Available,
		BalanceLimit:     b.Limit,
		CurrencyCode:     b.CurrencyCode,
		Updated:          models.FormatTimestamp(at),
		PlaidJSON:        rawJSON(b.Raw, b),
	}
}

// ToModel converts the row back to the shared balance type.
func (r BalanceRecord) ToModel() models.Balance {
	return models.Balance{
		AccountID:    r.AccountID,
		Type:         r.AccountType,
		Current:      r.BalanceCurrent,
		Available:    r.BalanceAvailable,
		Limit:        r.BalanceLimit,
		CurrencyCode: r.CurrencyCode,
		Raw:          json.RawMessage(r.PlaidJSON),
	}
}

func newItemRecord(info models.ItemInfo, at time.Time) ItemRecord {
	return ItemRecord{
		ItemID:               info.ItemID,
		InstitutionID:        info.InstitutionID,
		ConsentExpiration:    optionalStamp(info.ConsentExpiration),
		LastFailedUpdate:     optionalStamp(info.LastFailedUpdate),
		LastSuccessfulUpdate: optionalStamp(info.LastSuccessfulUpdate),
		Updated:              models.FormatTimestamp(at),
		PlaidJSON:            rawJSON(info.Raw, info),
	}
}

// ToModel converts the row back to the shared item type.
func (r ItemRecord) ToModel() (models.ItemInfo, error) {
	info := models.ItemInfo{
		ItemID:        r.ItemID,
		InstitutionID: r.InstitutionID,
		Raw:           json.RawMessage(r.PlaidJSON),
	}
	var err error
	if info.ConsentExpiration, err = models.ParseTimestamp(r.ConsentExpiration); err != nil {
		return info, err
	}
	if info.LastFailedUpdate, err = models.ParseTimestamp(r.LastFailedUpdate); err != nil {
		return info, err
	}
	if info.LastSuccessfulUpdate, err = models.ParseTimestamp(r.LastSuccessfulUpdate); err != nil {
		return info, err
	}
	return info, nil
}

func optionalStamp(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := models.FormatTimestamp(*t)
	return &s
}

// rawJSON returns the original payload, or a marshalled fallback for values
// built locally.
func rawJSON(raw json.RawMessage, fallback any) string {
	if len(raw) > 0 {
		return string(raw)
	}
	b, err := json.Marshal(fallback)
	if err != nil {
		return "{}"
	}
	return string(b)
}
