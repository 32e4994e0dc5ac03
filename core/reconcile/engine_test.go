package reconcile

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"plaid-sync/core/models"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func set(ids ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return m
}

func TestDiff(t *testing.T) {
	added, removed, common := Diff(set("T1", "T3"), set("T1", "T2"))
	assert.Equal(t, []string{"T3"}, added)
	assert.Equal(t, []string{"T2"}, removed)
	assert.Equal(t, []string{"T1"}, common)

	added, removed, common = Diff(set(), set("T1", "T2"))
	assert.Empty(t, added)
	assert.Equal(t, []string{"T1", "T2"}, removed)
	assert.Empty(t, common)
}

// TestDiff_Partition checks on random sets that added, removed and common
// are disjoint and rebuild both inputs.
func TestDiff_Partition(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 200; round++ {
		fetched, current := set(), set()
		for i := 0; i < 50; i++ {
			id := fmt.Sprintf("T%d", rng.Intn(80))
			if rng.Intn(2) == 0 {
				fetched[id] = struct{}{}
			} else {
				current[id] = struct{}{}
			}
		}

		added, removed, common := Diff(fetched, current)

		for _, id := range added {
			assert.Contains(t, fetched, id)
			assert.NotContains(t, current, id)
		}
		for _, id := range removed {
			assert.Contains(t, current, id)
			assert.NotContains(t, fetched, id)
		}
		for _, id := range common {
			assert.Contains(t, fetched, id)
			assert.Contains(t, current, id)
		}
		require.Equal(t, len(fetched), len(added)+len(common))
		require.Equal(t, len(current), len(removed)+len(common))
	}
}

func TestWorkingSet(t *testing.T) {
	d := civil.Date{Year: 2024, Month: time.January, Day: 1}
	first := []models.Transaction{
		{TransactionID: "T1", AccountID: "B", Date: d, Amount: decimal.NewFromInt(1)},
		{TransactionID: "T2", AccountID: "A", Date: d},
	}
	second := []models.Transaction{
		{TransactionID: "T1", AccountID: "B", Date: d, Amount: decimal.NewFromInt(5)},
	}

	ws := NewWorkingSet(first, second)
	assert.Equal(t, 2, ws.Len())
	assert.Equal(t, []string{"A", "B"}, ws.Accounts())
	assert.Equal(t, set("T1", "T2"), ws.IDs())

	t1, ok := ws.Get("T1")
	require.True(t, ok)
	assert.True(t, decimal.NewFromInt(5).Equal(t1.Amount), "later duplicates win")

	assert.Equal(t, []string{"A", "B"}, ws.Scope())

	ws.Cover("C", "A")
	assert.Equal(t, []string{"A", "B"}, ws.Accounts(), "covered accounts are not counted")
	assert.Equal(t, []string{"A", "B", "C"}, ws.Scope())
	assert.Equal(t, 2, ws.Len())
}

func TestWindow(t *testing.T) {
	today := civil.Date{Year: 2024, Month: time.March, Day: 15}
	w := DefaultWindow(today, 30)
	assert.Equal(t, civil.Date{Year: 2024, Month: time.February, Day: 14}, w.Start)
	assert.Equal(t, today, w.End)
	assert.NoError(t, w.Validate())
	assert.Equal(t, "2024-02-14..2024-03-15", w.String())

	assert.NoError(t, Window{Start: today, End: today}.Validate())
	assert.ErrorContains(t, Window{Start: today, End: today.AddDays(-1)}.Validate(), "before start date")
	assert.Error(t, Window{End: today}.Validate())
}

func TestDrift(t *testing.T) {
	d := civil.Date{Year: 2024, Month: time.January, Day: 1}
	stored := models.Transaction{TransactionID: "T1", Pending: true, Amount: decimal.RequireFromString("10.0"), MerchantName: "Shop", CurrencyCode: "USD", Date: d}

	same := stored
	same.Amount = decimal.RequireFromString("10")
	assert.Empty(t, drift(stored, same), "numerically equal amounts are not drift")

	settled := stored
	settled.Pending = false
	settled.Amount = decimal.RequireFromString("12.5")
	assert.Equal(t, []string{"pending", "amount"}, drift(stored, settled))
}

func TestCounts_Add(t *testing.T) {
	total := Counts{New: 1, Archived: 2}
	total.Add(Counts{New: 3, NewPending: 1, Archived: 1, ArchivedPending: 1, Resurfaced: 1, Updated: 2, Conflicts: 1, TotalFetched: 9, Accounts: 2})
	assert.Equal(t, Counts{New: 4, NewPending: 1, Archived: 3, ArchivedPending: 1, Resurfaced: 1, Updated: 2, Conflicts: 1, TotalFetched: 9, Accounts: 2}, total)
}
