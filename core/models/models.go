package models

import (
	"encoding/json"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Transaction is a single posted or pending transaction as reported by the
// aggregator. Raw keeps the original payload verbatim.
type Transaction struct {
	// TransactionID is the remote-assigned identifier, unique across the store.
	TransactionID string `json:"transaction_id"`
	// AccountID is the account the transaction belongs to.
	AccountID string `json:"account_id"`
	// Date is the transaction date (no time component).
	Date civil.Date `json:"date"`
	// Pending is true while the amount and status are provisional.
	Pending bool `json:"pending"`
	// MerchantName is the cleaned merchant label, often empty.
	MerchantName string `json:"merchant_name"`
	// Amount is the signed amount; positive values are outflows.
	Amount decimal.Decimal `json:"amount"`
	// CurrencyCode is the ISO-4217 currency code.
	CurrencyCode string `json:"iso_currency_code"`

	// ArchivedAt is only set on copies loaded from storage.
	ArchivedAt *time.Time `json:"-"`
	// Raw is the full original payload.
	Raw json.RawMessage `json:"-"`
}

// IsArchived reports whether the stored copy carries an archive stamp.
func (t Transaction) IsArchived() bool {
	return t.ArchivedAt != nil
}

// DecodeTransaction parses a raw transaction payload and keeps the payload
// alongside the decoded fields.
func DecodeTransaction(raw json.RawMessage) (Transaction, error) {
	var t Transaction
	if err := json.Unmarshal(raw, &t); err != nil {
		return Transaction{}, err
	}
	t.Raw = append(json.RawMessage(nil), raw...)
	return t, nil
}

// Balance is the balance snapshot of one account at fetch time.
type Balance struct {
	AccountID    string              `json:"account_id" yaml:"account_id"`
	Name         string              `json:"name,omitempty" yaml:"name,omitempty"`
	Type         string              `json:"type" yaml:"type"`
	Subtype      string              `json:"subtype,omitempty" yaml:"subtype,omitempty"`
	Mask         string              `json:"mask,omitempty" yaml:"mask,omitempty"`
	Current      decimal.NullDecimal `json:"current" yaml:"current"`
	Available    decimal.NullDecimal `json:"available" yaml:"available"`
	Limit        decimal.NullDecimal `json:"limit" yaml:"limit"`
	CurrencyCode string              `json:"iso_currency_code" yaml:"iso_currency_code"`
	Raw          json.RawMessage     `json:"-" yaml:"-"`
}

type balancePayload struct {
	AccountID string `json:"account_id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Subtype   string `json:"subtype"`
	Mask      string `json:"mask"`
	Balances  struct {
		Current      decimal.NullDecimal `json:"current"`
		Available    decimal.NullDecimal `json:"available"`
		Limit        decimal.NullDecimal `json:"limit"`
		CurrencyCode string              `json:"iso_currency_code"`
	} `json:"balances"`
}

// DecodeBalance parses one account entry of a balance response.
func DecodeBalance(raw json.RawMessage) (Balance, error) {
	var p balancePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Balance{}, err
	}
	return Balance{
		AccountID:    p.AccountID,
		Name:         p.Name,
		Type:         p.Type,
		Subtype:      p.Subtype,
		Mask:         p.Mask,
		Current:      p.Balances.Current,
		Available:    p.Balances.Available,
		Limit:        p.Balances.Limit,
		CurrencyCode: p.Balances.CurrencyCode,
		Raw:          append(json.RawMessage(nil), raw...),
	}, nil
}

// ItemInfo describes a linked institution login (an "item") and the health
// of its transaction updates.
type ItemInfo struct {
	ItemID               string     `json:"item_id" yaml:"item_id"`
	InstitutionID        string     `json:"institution_id" yaml:"institution_id"`
	ConsentExpiration    *time.Time `json:"consent_expiration,omitempty" yaml:"consent_expiration,omitempty"`
	LastFailedUpdate     *time.Time `json:"last_failed_update,omitempty" yaml:"last_failed_update,omitempty"`
	LastSuccessfulUpdate *time.Time `json:"last_successful_update,omitempty" yaml:"last_successful_update,omitempty"`

	Raw json.RawMessage `json:"-" yaml:"-"`
}

type itemPayload struct {
	Item struct {
		ItemID            string  `json:"item_id"`
		InstitutionID     string  `json:"institution_id"`
		ConsentExpiration *string `json:"consent_expiration_time"`
	} `json:"item"`
	Status struct {
		Transactions struct {
			LastFailedUpdate     *string `json:"last_failed_update"`
			LastSuccessfulUpdate *string `json:"last_successful_update"`
		} `json:"transactions"`
	} `json:"status"`
}

// DecodeItemInfo parses an item response. Timestamps may carry any number of
// fractional digits.
func DecodeItemInfo(raw json.RawMessage) (*ItemInfo, error) {
	var p itemPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	info := &ItemInfo{
		ItemID:        p.Item.ItemID,
		InstitutionID: p.Item.InstitutionID,
		Raw:           append(json.RawMessage(nil), raw...),
	}
	var err error
	if info.ConsentExpiration, err = ParseTimestamp(p.Item.ConsentExpiration); err != nil {
		return nil, err
	}
	if info.LastFailedUpdate, err = ParseTimestamp(p.Status.Transactions.LastFailedUpdate); err != nil {
		return nil, err
	}
	if info.LastSuccessfulUpdate, err = ParseTimestamp(p.Status.Transactions.LastSuccessfulUpdate); err != nil {
		return nil, err
	}
	return info, nil
}

// TimestampLayout is the storage format for every timestamp: UTC, second
// precision.
const TimestampLayout = "2006-01-02T15:04:05Z"

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses an optional RFC 3339 timestamp. Nil or empty input
// yields nil.
func ParseTimestamp(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, *s)
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}
