package synchronizer

import (
	"testing"
	"time"

	"plaid-sync/core/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckItem(t *testing.T) {
	maxAge := Config{StaleAfterDays: 3}.StaleAfter()
	at := func(d time.Duration) *time.Time {
		v := now.Add(-d)
		return &v
	}

	tests := []struct {
		name    string
		failed  *time.Time
		success *time.Time
		reason  string
	}{
		{"Healthy", nil, at(time.Hour), ""},
		{"NeverUpdated", nil, nil, ""},
		{"FailedNeverSucceeded", at(time.Hour), nil, "Last attempt failed!"},
		{"FailedAfterSuccess", at(time.Hour), at(2 * time.Hour), "Last attempt failed!"},
		{"RecoveredAfterFailure", at(2 * time.Hour), at(time.Hour), ""},
		{"SuccessTooOld", nil, at(4 * 24 * time.Hour), "Last successful update > 3 days ago!"},
		{"SuccessJustInside", nil, at(3*24*time.Hour - time.Minute), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := &models.ItemInfo{ItemID: "item", LastFailedUpdate: tt.failed, LastSuccessfulUpdate: tt.success}
			got, stale := CheckItem("chase", info, now, maxAge)
			assert.Equal(t, tt.reason != "", stale)
			assert.Equal(t, tt.reason, got.Reason)
			if stale {
				assert.Equal(t, "chase", got.Account)
				assert.Equal(t, "item", got.ItemID)
			}
		})
	}
}

func TestCheckItem_NilInfo(t *testing.T) {
	_, stale := CheckItem("chase", nil, now, Config{StaleAfterDays: 3}.StaleAfter())
	assert.False(t, stale)
}

func TestStale(t *testing.T) {
	old := now.Add(-10 * 24 * time.Hour)
	results := []*Result{
		{Account: "fresh", Item: item("item-1")},
		{Account: "failed"},
		{Account: "old", Item: &models.ItemInfo{ItemID: "item-3", LastSuccessfulUpdate: &old}},
	}

	items := Stale(results, now, Config{StaleAfterDays: 7}.StaleAfter())
	require.Len(t, items, 1)
	assert.Equal(t, "old", items[0].Account)
	assert.Equal(t, "Last successful update > 7 days ago!", items[0].Reason)
}

func TestConfig_StaleAfter(t *testing.T) {
	assert.Equal(t, 72*time.Hour, Config{}.StaleAfter())
	assert.Equal(t, 24*time.Hour, Config{StaleAfterDays: 1}.StaleAfter())
}
