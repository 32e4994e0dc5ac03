package synchronizer

import (
	"bytes"
	"fmt"
	"net/smtp"

	"github.com/jordan-wright/email"
	"go.uber.org/zap"
)

// NotifyConfig holds the SMTP settings for report emails.
type NotifyConfig struct {
	// Enabled turns report emails on.
	Enabled bool `mapstructure:"enabled" default:"false"`
	// SMTPHost is the mail server host name.
	SMTPHost string `mapstructure:"smtp_host" default:""`
	// SMTPPort is the mail server port.
	SMTPPort int `mapstructure:"smtp_port" default:"587"`
	// Username is the SMTP login; empty disables authentication.
	Username string `mapstructure:"username" default:""`
	Password string `mapstructure:"password" default:""`
	// From is the sender address.
	From string `mapstructure:"from" default:""`
	// To lists the recipients.
	To []string `mapstructure:"to" default:""`
	// OnlyOnErrors skips emails for runs without errors or stale items.
	OnlyOnErrors bool `mapstructure:"only_on_errors" default:"true"`
}

type sendFunc func(e *email.Email, addr string, auth smtp.Auth) error

// Notifier emails the text report after each run.
type Notifier struct {
	cfg    NotifyConfig
	logger *zap.Logger
	send   sendFunc
}

// NewNotifier creates a new notifier.
func NewNotifier(cfg NotifyConfig, logger *zap.Logger) *Notifier {
	return &Notifier{
		cfg:    cfg,
		logger: logger,
		send: func(e *email.Email, addr string, auth smtp.Auth) error {
			return e.Send(addr, auth)
		},
	}
}

// Notify sends the report unless notifications are off or, with
// OnlyOnErrors, the run needs no attention.
func (n *Notifier) Notify(r *Report) error {
	if !n.cfg.Enabled || len(n.cfg.To) == 0 {
		return nil
	}
	failed := r.Failed()
	if n.cfg.OnlyOnErrors && len(failed) == 0 && len(r.Stale) == 0 {
		return nil
	}

	var body bytes.Buffer
	if err := r.WriteText(&body); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}

	e := email.NewEmail()
	e.From = n.cfg.From
	e.To = n.cfg.To
	e.Subject = subject(r, len(failed))
	e.Text = body.Bytes()

	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.SMTPHost)
	}
	addr := fmt.Sprintf("%s:%d", n.cfg.SMTPHost, n.cfg.SMTPPort)
	if err := n.send(e, addr, auth); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	n.logger.Info("Report emailed", zap.Strings("to", n.cfg.To), zap.String("subject", e.Subject))
	return nil
}

func subject(r *Report, failed int) string {
	switch {
	case failed > 0:
		return fmt.Sprintf("plaid-sync: %d of %d accounts failed (%s)", failed, len(r.Results), r.Window)
	case len(r.Stale) > 0:
		return fmt.Sprintf("plaid-sync: %d stale items (%s)", len(r.Stale), r.Window)
	default:
		return fmt.Sprintf("plaid-sync: %d new, %d archived (%s)", r.Totals.New, r.Totals.Archived, r.Window)
	}
}
