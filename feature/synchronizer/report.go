package synchronizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"plaid-sync/core/models"
	"plaid-sync/core/plaid"
	"plaid-sync/core/reconcile"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Result is the outcome of one account pass. Remote failures are kept on
// the result so other accounts still run.
type Result struct {
	Account   string           `json:"account" yaml:"account"`
	Counts    reconcile.Counts `json:"counts" yaml:"counts"`
	Item      *models.ItemInfo `json:"item,omitempty" yaml:"item,omitempty"`
	Balances  []models.Balance `json:"balances,omitempty" yaml:"balances,omitempty"`
	Error     string           `json:"error,omitempty" yaml:"error,omitempty"`
	ErrorKind string           `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`

	Err error `json:"-" yaml:"-"`
}

func (r *Result) setError(err error) {
	r.Err = err
	r.Error = err.Error()
	var perr *plaid.Error
	if errors.As(err, &perr) {
		r.ErrorKind = perr.Kind.String()
	} else {
		r.ErrorKind = plaid.KindUnknown.String()
	}
}

// NeedsReauth reports whether the account failed because its login expired.
func (r *Result) NeedsReauth() bool {
	return r.Err != nil && plaid.IsReauth(r.Err)
}

// Report is the summary of one run.
type Report struct {
	RunID      string           `json:"run_id" yaml:"run_id"`
	StartedAt  time.Time        `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time        `json:"finished_at" yaml:"finished_at"`
	Window     reconcile.Window `json:"window" yaml:"window"`
	DryRun     bool             `json:"dry_run,omitempty" yaml:"dry_run,omitempty"`
	Results    []*Result        `json:"results" yaml:"results"`
	Totals     reconcile.Counts `json:"totals" yaml:"totals"`
	Stale      []StaleItem      `json:"stale,omitempty" yaml:"stale,omitempty"`
}

// Failed returns the results that carry a remote error.
func (r *Report) Failed() []*Result {
	var out []*Result
	for _, res := range r.Results {
		if res.Err != nil || res.Error != "" {
			out = append(out, res)
		}
	}
	return out
}

// Output formats accepted by Write.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// CheckFormat rejects formats Write does not support.
func CheckFormat(format string) error {
	switch format {
	case "", FormatText, FormatJSON, FormatYAML:
		return nil
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

// Write renders the report in the given format.
func (r *Report) Write(w io.Writer, format string) error {
	if err := CheckFormat(format); err != nil {
		return err
	}
	switch format {
	case FormatJSON:
		return r.WriteJSON(w)
	case FormatYAML:
		return r.WriteYAML(w)
	default:
		return r.WriteText(w)
	}
}

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteYAML writes the report as YAML.
func (r *Report) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}

// WriteText writes the human readable summary.
func (r *Report) WriteText(w io.Writer) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Finished syncing %d Plaid accounts (%s)", len(r.Results), r.Window)
	if r.DryRun {
		b.WriteString(" [dry run]")
	}
	b.WriteString("\n\n")

	for _, res := range r.Results {
		c := res.Counts
		fmt.Fprintf(&b, "%-30s: %2d new transactions (%d pending), %2d archived transactions (%d pending) over %d accounts\n",
			res.Account, c.New, c.NewPending, c.Archived, c.ArchivedPending, c.Accounts)
		if c.Resurfaced > 0 || c.Updated > 0 || c.Conflicts > 0 {
			fmt.Fprintf(&b, "%30s: %d resurfaced, %d updated, %d conflicts\n", "", c.Resurfaced, c.Updated, c.Conflicts)
		}
		for _, bal := range res.Balances {
			fmt.Fprintf(&b, "%30s: %s %s\n", "", balanceLabel(bal), formatMoney(bal.Current, bal.CurrencyCode))
		}
		if res.Error != "" {
			fmt.Fprintf(&b, "%30s: *** Plaid Error ***\n", "")
			fmt.Fprintf(&b, "%30s: %s\n", "", res.Error)
			if res.ErrorKind == plaid.KindReauth.String() {
				fmt.Fprintf(&b, "%30s: *** refresh the access token of '%s' to fix ***\n", "", res.Account)
			}
		}
	}

	if len(r.Stale) > 0 {
		b.WriteString("\n")
		writeStale(&b, r.Stale)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteStale writes one line per stale item.
func WriteStale(w io.Writer, items []StaleItem) error {
	var b strings.Builder
	writeStale(&b, items)
	_, err := io.WriteString(w, b.String())
	return err
}

func writeStale(b *strings.Builder, items []StaleItem) {
	for _, s := range items {
		fmt.Fprintf(b, "%-30s: %s  Last failure: %s  Last success: %s\n",
			s.Account, s.Reason, stamp(s.LastFailedUpdate), stamp(s.LastSuccessfulUpdate))
	}
}

func balanceLabel(b models.Balance) string {
	name := b.Name
	if name == "" {
		name = b.AccountID
	}
	if b.Mask != "" {
		return fmt.Sprintf("%s (%s)", name, b.Mask)
	}
	return name
}

// formatMoney renders an amount in its currency's display format.
func formatMoney(amount decimal.NullDecimal, currency string) string {
	if !amount.Valid {
		return "n/a"
	}
	cur := money.GetCurrency(currency)
	if cur == nil {
		return strings.TrimSpace(amount.Decimal.StringFixed(2) + " " + currency)
	}
	minor := amount.Decimal.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(minor, cur.Code).Display()
}

func stamp(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return models.FormatTimestamp(*t)
}
