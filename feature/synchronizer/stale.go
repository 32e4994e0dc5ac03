package synchronizer

import (
	"fmt"
	"time"

	"plaid-sync/core/models"
)

// StaleItem is an item whose transaction updates look unhealthy.
type StaleItem struct {
	Account              string     `json:"account" yaml:"account"`
	ItemID               string     `json:"item_id" yaml:"item_id"`
	Reason               string     `json:"reason" yaml:"reason"`
	LastFailedUpdate     *time.Time `json:"last_failed_update,omitempty" yaml:"last_failed_update,omitempty"`
	LastSuccessfulUpdate *time.Time `json:"last_successful_update,omitempty" yaml:"last_successful_update,omitempty"`
}

// CheckItem reports whether info is stale at now: its last failure is more
// recent than its last success, or its last success is older than maxAge.
func CheckItem(account string, info *models.ItemInfo, now time.Time, maxAge time.Duration) (StaleItem, bool) {
	if info == nil {
		return StaleItem{}, false
	}
	item := StaleItem{
		Account:              account,
		ItemID:               info.ItemID,
		LastFailedUpdate:     info.LastFailedUpdate,
		LastSuccessfulUpdate: info.LastSuccessfulUpdate,
	}

	failed, success := info.LastFailedUpdate, info.LastSuccessfulUpdate
	switch {
	case failed != nil && (success == nil || failed.After(*success)):
		item.Reason = "Last attempt failed!"
	case success != nil && success.Before(now.Add(-maxAge)):
		item.Reason = fmt.Sprintf("Last successful update > %d days ago!", int(maxAge/(24*time.Hour)))
	default:
		return StaleItem{}, false
	}
	return item, true
}

// Stale checks the item of every result.
func Stale(results []*Result, now time.Time, maxAge time.Duration) []StaleItem {
	var out []StaleItem
	for _, r := range results {
		if item, ok := CheckItem(r.Account, r.Item, now, maxAge); ok {
			out = append(out, item)
		}
	}
	return out
}

// StaleItems checks stored items, labelled by item id.
func StaleItems(items []models.ItemInfo, now time.Time, maxAge time.Duration) []StaleItem {
	var out []StaleItem
	for i := range items {
		if item, ok := CheckItem(items[i].ItemID, &items[i], now, maxAge); ok {
			out = append(out, item)
		}
	}
	return out
}
