package models

import (
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeTransaction(t *testing.T) {
	raw := json.RawMessage(`{
		"transaction_id": "tx-1",
		"account_id": "acc-1",
		"date": "2024-01-02",
		"pending": true,
		"merchant_name": null,
		"amount": 12.5,
		"iso_currency_code": "USD",
		"category": ["Food"]
	}`)

	tx, err := DecodeTransaction(raw)
	require.NoError(t, err)

	assert.Equal(t, "tx-1", tx.TransactionID)
	assert.Equal(t, "acc-1", tx.AccountID)
	assert.Equal(t, civil.Date{Year: 2024, Month: time.January, Day: 2}, tx.Date)
	assert.True(t, tx.Pending)
	assert.Empty(t, tx.MerchantName)
	assert.True(t, decimal.RequireFromString("12.5").Equal(tx.Amount))
	assert.Equal(t, "USD", tx.CurrencyCode)
	assert.JSONEq(t, string(raw), string(tx.Raw), "unknown fields must survive in the raw payload")
	assert.False(t, tx.IsArchived())
}

func TestDecodeTransaction_Invalid(t *testing.T) {
	_, err := DecodeTransaction(json.RawMessage(`{"date": "not-a-date"}`))
	assert.Error(t, err)
}

func TestDecodeBalance(t *testing.T) {
	raw := json.RawMessage(`{
		"account_id": "acc-1",
		"name": "Checking",
		"type": "depository",
		"subtype": "checking",
		"mask": "0000",
		"balances": {"current": 110.25, "available": null, "limit": null, "iso_currency_code": "USD"}
	}`)

	b, err := DecodeBalance(raw)
	require.NoError(t, err)

	assert.Equal(t, "acc-1", b.AccountID)
	assert.Equal(t, "depository", b.Type)
	assert.True(t, b.Current.Valid)
	assert.True(t, decimal.RequireFromString("110.25").Equal(b.Current.Decimal))
	assert.False(t, b.Available.Valid)
	assert.False(t, b.Limit.Valid)
	assert.Equal(t, "USD", b.CurrencyCode)
}

func TestDecodeItemInfo(t *testing.T) {
	raw := json.RawMessage(`{
		"item": {"item_id": "item-1", "institution_id": "ins_1", "consent_expiration_time": null},
		"status": {"transactions": {
			"last_successful_update": "2024-01-02T10:11:12.5Z",
			"last_failed_update": "2024-01-01T08:00:00Z"
		}}
	}`)

	info, err := DecodeItemInfo(raw)
	require.NoError(t, err)

	assert.Equal(t, "item-1", info.ItemID)
	assert.Equal(t, "ins_1", info.InstitutionID)
	assert.Nil(t, info.ConsentExpiration)
	require.NotNil(t, info.LastSuccessfulUpdate)
	assert.Equal(t, "2024-01-02T10:11:12Z", FormatTimestamp(*info.LastSuccessfulUpdate))
	require.NotNil(t, info.LastFailedUpdate)
	assert.Equal(t, "2024-01-01T08:00:00Z", FormatTimestamp(*info.LastFailedUpdate))
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name    string
		in      *string
		want    string
		wantErr bool
	}{
		{"Nil", nil, "", false},
		{"Empty", ptr(""), "", false},
		{"Zulu", ptr("2024-03-04T05:06:07Z"), "2024-03-04T05:06:07Z", false},
		{"ShortFraction", ptr("2024-03-04T05:06:07.12Z"), "2024-03-04T05:06:07Z", false},
		{"Offset", ptr("2024-03-04T05:06:07+02:00"), "2024-03-04T03:06:07Z", false},
		{"Garbage", ptr("yesterday"), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, FormatTimestamp(*got))
		})
	}
}

func ptr(s string) *string { return &s }
