package reconcile

import (
	"sort"

	"plaid-sync/core/models"
)

// WorkingSet holds the fetched transactions of one pass keyed by id, and
// the accounts the fetch covered.
type WorkingSet struct {
	txs     map[string]models.Transaction
	covered map[string]struct{}
}

// NewWorkingSet merges fetched batches. A later duplicate id replaces the
// earlier one.
func NewWorkingSet(batches ...[]models.Transaction) *WorkingSet {
	ws := &WorkingSet{
		txs:     make(map[string]models.Transaction),
		covered: make(map[string]struct{}),
	}
	for _, batch := range batches {
		ws.Add(batch...)
	}
	return ws
}

// Add merges more fetched transactions.
func (ws *WorkingSet) Add(txs ...models.Transaction) {
	for _, t := range txs {
		ws.txs[t.TransactionID] = t
	}
}

// Cover marks accounts as fetched even when they returned no transactions,
// so their current transactions are considered for archiving.
func (ws *WorkingSet) Cover(accountIDs ...string) {
	for _, id := range accountIDs {
		ws.covered[id] = struct{}{}
	}
}

// Len returns the number of distinct ids.
func (ws *WorkingSet) Len() int {
	return len(ws.txs)
}

// Get returns the fetched copy of id.
func (ws *WorkingSet) Get(id string) (models.Transaction, bool) {
	t, ok := ws.txs[id]
	return t, ok
}

// IDs returns the id set.
func (ws *WorkingSet) IDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(ws.txs))
	for id := range ws.txs {
		ids[id] = struct{}{}
	}
	return ids
}

// Accounts returns the distinct account ids of the fetched transactions,
// sorted.
func (ws *WorkingSet) Accounts() []string {
	seen := make(map[string]struct{})
	for _, t := range ws.txs {
		seen[t.AccountID] = struct{}{}
	}
	return sortedKeys(seen)
}

// Scope returns the accounts reconciled against storage: those of the
// fetched transactions plus the covered ones, sorted.
func (ws *WorkingSet) Scope() []string {
	seen := make(map[string]struct{}, len(ws.covered))
	for id := range ws.covered {
		seen[id] = struct{}{}
	}
	for _, t := range ws.txs {
		seen[t.AccountID] = struct{}{}
	}
	return sortedKeys(seen)
}

// Diff splits fetched and current ids into added (fetched only), removed
// (current only) and common. Each result is sorted.
func Diff(fetched, current map[string]struct{}) (added, removed, common []string) {
	for id := range fetched {
		if _, ok := current[id]; ok {
			common = append(common, id)
		} else {
			added = append(added, id)
		}
	}
	for id := range current {
		if _, ok := fetched[id]; !ok {
			removed = append(removed, id)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	sort.Strings(common)
	return added, removed, common
}

// drift lists the mutable fields that differ between the stored and fetched
// copies of a transaction.
func drift(stored, fetched models.Transaction) []string {
	var fields []string
	if stored.Pending != fetched.Pending {
		fields = append(fields, "pending")
	}
	if !stored.Amount.Equal(fetched.Amount) {
		fields = append(fields, "amount")
	}
	if stored.MerchantName != fetched.MerchantName {
		fields = append(fields, "merchant_name")
	}
	if stored.CurrencyCode != fetched.CurrencyCode {
		fields = append(fields, "iso_currency_code")
	}
	if stored.Date != fetched.Date {
		fields = append(fields, "date")
	}
	return fields
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
