package plaid

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"plaid-sync/core/models"

	"cloud.google.com/go/civil"
	"github.com/cenkalti/backoff/v4"
	plaidgo "github.com/plaid/plaid-go/v29/plaid"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 500
	baseBackoff     = 500 * time.Millisecond
	maxBackoff      = 10 * time.Second
)

// ProgressFunc is called after every fetched transaction page.
type ProgressFunc func(fetched, total int)

// Client talks to the Plaid API through the official SDK.
type Client struct {
	api      *plaidgo.PlaidApiService
	baseURL  string
	pageSize int
	retries  int
	logger   *zap.Logger
	// timer drives backoff waits; nil means the wall clock.
	timer backoff.Timer
}

// NewClient creates a client for the configured environment.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.ClientID == "" || cfg.Secret == "" {
		return nil, errors.New("plaid client_id and secret are required")
	}
	base, err := cfg.URL()
	if err != nil {
		return nil, err
	}
	base = strings.TrimRight(base, "/")

	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 30
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}

	conf := plaidgo.NewConfiguration()
	conf.AddDefaultHeader("PLAID-CLIENT-ID", cfg.ClientID)
	conf.AddDefaultHeader("PLAID-SECRET", cfg.Secret)
	conf.Servers = plaidgo.ServerConfigurations{{URL: base}}
	conf.HTTPClient = &http.Client{Timeout: time.Duration(timeout) * time.Second}

	return &Client{
		api:      plaidgo.NewAPIClient(conf).PlaidApi,
		baseURL:  base,
		pageSize: pageSize,
		retries:  retries,
		logger:   logger,
	}, nil
}

// ItemInfo returns the item behind accessToken and its update health.
func (c *Client) ItemInfo(ctx context.Context, accessToken string) (*models.ItemInfo, error) {
	req := plaidgo.NewItemGetRequest(accessToken)
	resp, err := call(ctx, c, "/item/get", func() (plaidgo.ItemGetResponse, *http.Response, error) {
		return c.api.ItemGet(ctx).ItemGetRequest(*req).Execute()
	})
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("encode item: %w", err)
	}
	info, err := models.DecodeItemInfo(raw)
	if err != nil {
		return nil, fmt.Errorf("decode item: %w", err)
	}
	return info, nil
}

// Balances returns the live balances of every account of the item.
func (c *Client) Balances(ctx context.Context, accessToken string) ([]models.Balance, error) {
	req := plaidgo.NewAccountsBalanceGetRequest(accessToken)
	resp, err := call(ctx, c, "/accounts/balance/get", func() (plaidgo.AccountsGetResponse, *http.Response, error) {
		return c.api.AccountsBalanceGet(ctx).AccountsBalanceGetRequest(*req).Execute()
	})
	if err != nil {
		return nil, err
	}

	accounts := resp.GetAccounts()
	out := make([]models.Balance, 0, len(accounts))
	for _, a := range accounts {
		raw, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("encode balance: %w", err)
		}
		b, err := models.DecodeBalance(raw)
		if err != nil {
			return nil, fmt.Errorf("decode balance: %w", err)
		}
		out = append(out, b)
	}
	return out, nil
}

// Transactions fetches every transaction dated within [start, end], page by
// page, until the reported total is reached or a page comes back empty.
// accountIDs optionally restricts the accounts. The second result lists the
// accounts the fetch covered, including those without transactions.
func (c *Client) Transactions(ctx context.Context, accessToken string, start, end civil.Date, accountIDs []string, progress ProgressFunc) ([]models.Transaction, []string, error) {
	var out []models.Transaction
	covered := make(map[string]struct{})
	for {
		opts := plaidgo.TransactionsGetRequestOptions{}
		opts.SetCount(int32(c.pageSize))
		opts.SetOffset(int32(len(out)))
		if len(accountIDs) > 0 {
			opts.SetAccountIds(accountIDs)
		}
		req := plaidgo.NewTransactionsGetRequest(accessToken, start.String(), end.String())
		req.SetOptions(opts)

		resp, err := call(ctx, c, "/transactions/get", func() (plaidgo.TransactionsGetResponse, *http.Response, error) {
			return c.api.TransactionsGet(ctx).TransactionsGetRequest(*req).Execute()
		})
		if err != nil {
			return nil, nil, err
		}

		for _, a := range resp.GetAccounts() {
			covered[a.GetAccountId()] = struct{}{}
		}
		page := resp.GetTransactions()
		for _, pt := range page {
			raw, err := json.Marshal(pt)
			if err != nil {
				return nil, nil, fmt.Errorf("encode transaction: %w", err)
			}
			t, err := models.DecodeTransaction(raw)
			if err != nil {
				return nil, nil, fmt.Errorf("decode transaction: %w", err)
			}
			out = append(out, t)
		}

		total := int(resp.GetTotalTransactions())
		if progress != nil {
			progress(len(out), total)
		}
		if len(page) == 0 {
			if len(out) < total {
				c.logger.Warn("Empty transaction page before reaching total",
					zap.Int("fetched", len(out)),
					zap.Int("total", total))
			}
			break
		}
		if len(out) >= total {
			break
		}
	}

	accounts := make([]string, 0, len(covered))
	for id := range covered {
		accounts = append(accounts, id)
	}
	sort.Strings(accounts)
	return out, accounts, nil
}

// call runs one SDK request, retrying retryable failures with exponential
// backoff. A Retry-After header stretches the next wait.
func call[T any](ctx context.Context, c *Client, path string, do func() (T, *http.Response, error)) (T, error) {
	b := &retryAfterBackOff{BackOff: backoff.WithMaxRetries(newExponential(), uint64(c.retries))}
	op := func() (T, error) {
		out, resp, err := do()
		if err == nil {
			return out, nil
		}
		perr := apiError(err, resp)
		if ctx.Err() != nil || !perr.Retryable() {
			return out, backoff.Permanent(perr)
		}
		if resp != nil {
			b.hint = parseRetryAfter(resp.Header.Get("Retry-After"))
		}
		return out, perr
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("Retrying Plaid request",
			zap.String("path", path),
			zap.Duration("wait", wait),
			zap.Error(err))
	}
	return backoff.RetryNotifyWithTimerAndData[T](op, backoff.WithContext(b, ctx), notify, c.timer)
}

func newExponential() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = baseBackoff
	b.MaxInterval = maxBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// retryAfterBackOff waits at least as long as the server asked for.
type retryAfterBackOff struct {
	backoff.BackOff
	hint time.Duration
}

func (b *retryAfterBackOff) NextBackOff() time.Duration {
	d := b.BackOff.NextBackOff()
	if d != backoff.Stop && b.hint > d {
		d = b.hint
	}
	b.hint = 0
	return d
}
