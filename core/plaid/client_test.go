package plaid

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	start = civil.Date{Year: 2024, Month: time.January, Day: 1}
	end   = civil.Date{Year: 2024, Month: time.January, Day: 31}
)

// recordingTimer fires immediately and records every backoff wait.
type recordingTimer struct {
	c     chan time.Time
	waits []time.Duration
}

func newRecordingTimer() *recordingTimer {
	return &recordingTimer{c: make(chan time.Time, 1)}
}

func (t *recordingTimer) Start(d time.Duration) {
	t.waits = append(t.waits, d)
	t.c <- time.Time{}
}

func (t *recordingTimer) Stop() {}

func (t *recordingTimer) C() <-chan time.Time { return t.c }

// transactionsBody is the request body the SDK sends to /transactions/get.
type transactionsBody struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Options   struct {
		AccountIDs []string `json:"account_ids"`
		Count      int      `json:"count"`
		Offset     int      `json:"offset"`
	} `json:"options"`
}

// newTestClient points a client at handler and records backoff waits.
func newTestClient(t *testing.T, pageSize int, handler http.HandlerFunc) (*Client, *recordingTimer) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{
		ClientID:   "client",
		Secret:     "secret",
		BaseURL:    srv.URL,
		PageSize:   pageSize,
		MaxRetries: 3,
	}, zap.NewNop())
	require.NoError(t, err)

	timer := newRecordingTimer()
	c.timer = timer
	return c, timer
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewClient(t *testing.T) {
	_, err := NewClient(Config{Environment: EnvSandbox}, zap.NewNop())
	assert.Error(t, err)

	_, err = NewClient(Config{ClientID: "id", Secret: "s", Environment: "staging"}, zap.NewNop())
	assert.ErrorContains(t, err, "unknown plaid environment")

	c, err := NewClient(Config{ClientID: "id", Secret: "s", Environment: EnvProduction}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "https://production.plaid.com", c.baseURL)
	assert.Equal(t, defaultPageSize, c.pageSize)
}

// pagingHandler serves total transactions for account acc-1, honouring the
// requested count and offset.
func pagingHandler(t *testing.T, total int, calls *int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		assert.Equal(t, "/transactions/get", r.URL.Path)
		assert.Equal(t, "client", r.Header.Get("PLAID-CLIENT-ID"))
		assert.Equal(t, "secret", r.Header.Get("PLAID-SECRET"))

		var req transactionsBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "2024-01-01", req.StartDate)
		assert.Equal(t, "2024-01-31", req.EndDate)
		assert.Equal(t, []string{"acc-1"}, req.Options.AccountIDs)

		page := []map[string]any{}
		for i := req.Options.Offset; i < total && len(page) < req.Options.Count; i++ {
			page = append(page, map[string]any{
				"transaction_id":    fmt.Sprintf("T%04d", i),
				"account_id":        "acc-1",
				"date":              "2024-01-15",
				"pending":           i%2 == 0,
				"amount":            12.5,
				"iso_currency_code": "USD",
				"merchant_name":     "Coffee",
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"accounts":           []map[string]any{{"account_id": "acc-1"}},
			"transactions":       page,
			"total_transactions": total,
			"request_id":         "req",
		})
	}
}

func TestClient_Transactions_Paginates(t *testing.T) {
	const total = 523
	for _, pageSize := range []int{1, 7, 500, 2000} {
		t.Run(fmt.Sprintf("PageSize%d", pageSize), func(t *testing.T) {
			var calls int32
			c, _ := newTestClient(t, pageSize, pagingHandler(t, total, &calls))

			var progress [][2]int
			txs, accounts, err := c.Transactions(context.Background(), "token", start, end, []string{"acc-1"}, func(fetched, total int) {
				progress = append(progress, [2]int{fetched, total})
			})
			require.NoError(t, err)

			pages := (total + pageSize - 1) / pageSize
			assert.Equal(t, int32(pages), atomic.LoadInt32(&calls))
			require.Len(t, progress, pages)
			assert.Equal(t, [2]int{total, total}, progress[pages-1])
			assert.Equal(t, []string{"acc-1"}, accounts)

			// every id exactly once, in offset order
			require.Len(t, txs, total)
			for i, tx := range txs {
				assert.Equal(t, fmt.Sprintf("T%04d", i), tx.TransactionID)
			}
		})
	}
}

func TestClient_Transactions_DecodesFields(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, 500, pagingHandler(t, 2, &calls))

	txs, _, err := c.Transactions(context.Background(), "token", start, end, []string{"acc-1"}, nil)
	require.NoError(t, err)
	require.Len(t, txs, 2)

	tx := txs[0]
	assert.True(t, tx.Pending)
	assert.False(t, txs[1].Pending)
	assert.True(t, decimal.RequireFromString("12.5").Equal(tx.Amount))
	assert.Equal(t, civil.Date{Year: 2024, Month: time.January, Day: 15}, tx.Date)
	assert.Equal(t, "USD", tx.CurrencyCode)
	assert.Equal(t, "Coffee", tx.MerchantName)
	assert.Contains(t, string(tx.Raw), `"transaction_id":"T0000"`)
}

func TestClient_Transactions_StopsOnEmptyPage(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, 500, func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			writeJSON(w, http.StatusOK, map[string]any{
				"transactions":       []map[string]any{{"transaction_id": "T1", "account_id": "A", "date": "2024-01-02", "amount": 1}},
				"total_transactions": 10,
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"transactions": []any{}, "total_transactions": 10})
	})

	txs, _, err := c.Transactions(context.Background(), "token", start, end, nil, nil)
	require.NoError(t, err)
	assert.Len(t, txs, 1)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClient_Transactions_NoneInWindow(t *testing.T) {
	c, _ := newTestClient(t, 500, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"accounts":           []map[string]any{{"account_id": "B"}, {"account_id": "A"}},
			"transactions":       []any{},
			"total_transactions": 0,
		})
	})

	txs, accounts, err := c.Transactions(context.Background(), "token", start, end, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, txs)
	assert.Equal(t, []string{"A", "B"}, accounts, "accounts without transactions are still covered")
}

func TestClient_ErrorKinds(t *testing.T) {
	tests := []struct {
		name string
		code string
		kind Kind
	}{
		{"LoginRequired", "ITEM_LOGIN_REQUIRED", KindReauth},
		{"NoAccounts", "NO_ACCOUNTS", KindNoAccounts},
		{"Other", "INVALID_ACCESS_TOKEN", KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			c, timer := newTestClient(t, 500, func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				writeJSON(w, http.StatusBadRequest, map[string]any{
					"error_type":    "ITEM_ERROR",
					"error_code":    tt.code,
					"error_message": "something went wrong",
					"request_id":    "req-1",
				})
			})

			_, err := c.ItemInfo(context.Background(), "token")
			require.Error(t, err)

			var perr *Error
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tt.kind, perr.Kind)
			assert.Equal(t, tt.code, perr.Code)
			assert.Equal(t, "req-1", perr.RequestID)
			assert.Equal(t, tt.code+": something went wrong", err.Error())
			assert.Equal(t, tt.kind == KindReauth, IsReauth(err))
			assert.Equal(t, tt.kind == KindNoAccounts, IsNoAccounts(err))

			assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "client errors are not retried")
			assert.Empty(t, timer.waits)
		})
	}
}

func TestClient_RetriesTransientFailures(t *testing.T) {
	var calls int32
	c, timer := newTestClient(t, 500, func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&calls, 1) {
		case 1:
			writeJSON(w, http.StatusTooManyRequests, map[string]any{"error_code": "RATE_LIMIT_EXCEEDED"})
		case 2:
			w.Header().Set("Retry-After", "3")
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error_code": "INTERNAL_SERVER_ERROR"})
		default:
			writeJSON(w, http.StatusOK, map[string]any{
				"item": map[string]any{
					"item_id":                 "item-1",
					"institution_id":          "ins_3",
					"consent_expiration_time": nil,
				},
				"status": map[string]any{
					"transactions": map[string]any{
						"last_successful_update": "2024-01-04T10:00:00.12Z",
						"last_failed_update":     nil,
					},
				},
			})
		}
	})

	info, err := c.ItemInfo(context.Background(), "token")
	require.NoError(t, err)
	assert.Equal(t, "item-1", info.ItemID)
	assert.Equal(t, "ins_3", info.InstitutionID)
	require.NotNil(t, info.LastSuccessfulUpdate)
	assert.Nil(t, info.LastFailedUpdate)

	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, []time.Duration{baseBackoff, 3 * time.Second}, timer.waits)
}

func TestClient_RetriesExhausted(t *testing.T) {
	var calls int32
	c, timer := newTestClient(t, 500, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, http.StatusBadRequest, map[string]any{"error_code": "PRODUCT_NOT_READY", "error_message": "not yet"})
	})

	_, err := c.Balances(context.Background(), "token")
	require.Error(t, err)
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "PRODUCT_NOT_READY", perr.Code)
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
	assert.Equal(t, []time.Duration{baseBackoff, 2 * baseBackoff, 4 * baseBackoff}, timer.waits)
}

func TestClient_Balances(t *testing.T) {
	c, _ := newTestClient(t, 500, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts/balance/get", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"accounts":[{"account_id":"A","name":"Checking","type":"depository","subtype":"checking","mask":"0000",
			"balances":{"current":110.5,"available":100,"limit":null,"iso_currency_code":"USD"}}]}`))
	})

	balances, err := c.Balances(context.Background(), "token")
	require.NoError(t, err)
	require.Len(t, balances, 1)
	b := balances[0]
	assert.Equal(t, "A", b.AccountID)
	assert.Equal(t, "depository", b.Type)
	assert.True(t, b.Current.Valid)
	assert.True(t, decimal.RequireFromString("110.5").Equal(b.Current.Decimal))
	assert.False(t, b.Limit.Valid)
	assert.Equal(t, "USD", b.CurrencyCode)
}

func TestClient_ContextCancelled(t *testing.T) {
	c, _ := newTestClient(t, 500, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{})
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.ItemInfo(ctx, "token")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestError_Retryable(t *testing.T) {
	assert.True(t, (&Error{Status: 503}).Retryable())
	assert.True(t, (&Error{Status: 429}).Retryable())
	assert.True(t, (&Error{Status: 400, Code: "PRODUCT_NOT_READY"}).Retryable())
	assert.True(t, (&Error{Err: errors.New("connection reset")}).Retryable())
	assert.False(t, (&Error{Err: context.Canceled}).Retryable())
	assert.False(t, (&Error{Status: 400, Code: "ITEM_LOGIN_REQUIRED", Kind: KindReauth}).Retryable())
}

func TestRetryAfterBackOff(t *testing.T) {
	b := &retryAfterBackOff{BackOff: newExponential()}
	assert.Equal(t, baseBackoff, b.NextBackOff())

	b.hint = 5 * time.Second
	assert.Equal(t, 5*time.Second, b.NextBackOff(), "server hint wins when longer")
	assert.Equal(t, 4*baseBackoff, b.NextBackOff(), "hint applies once")

	b.hint = time.Millisecond
	assert.Equal(t, 8*baseBackoff, b.NextBackOff(), "shorter hint is ignored")
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 3*time.Second, parseRetryAfter("3"))
	assert.Zero(t, parseRetryAfter(""))
	assert.Zero(t, parseRetryAfter("-1"))
	assert.Zero(t, parseRetryAfter("Wed, 21 Oct 2015 07:28:00 GMT"))
}
