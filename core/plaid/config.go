package plaid

import (
	"fmt"

	plaidgo "github.com/plaid/plaid-go/v29/plaid"
)

// Config holds configuration for the Plaid API client.
type Config struct {
	// ClientID is the Plaid client id.
	ClientID string `mapstructure:"client_id" default:""`
	// Secret is the secret for the selected environment.
	Secret string `mapstructure:"secret" default:""`
	// Environment selects the API host (sandbox or production).
	Environment string `mapstructure:"environment" default:"sandbox"`
	// BaseURL overrides the host derived from Environment.
	BaseURL string `mapstructure:"base_url" default:""`
	// PageSize is the number of transactions requested per page.
	PageSize int `mapstructure:"page_size" default:"500"`
	// TimeoutSeconds bounds a single HTTP request.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"30"`
	// MaxRetries is how many times a retryable failure is retried.
	MaxRetries int `mapstructure:"max_retries" default:"3"`
}

const (
	EnvSandbox    = "sandbox"
	EnvProduction = "production"
)

// URL returns the API base URL.
func (c Config) URL() (string, error) {
	if c.BaseURL != "" {
		return c.BaseURL, nil
	}
	switch c.Environment {
	case EnvSandbox:
		return string(plaidgo.Sandbox), nil
	case EnvProduction:
		return string(plaidgo.Production), nil
	default:
		return "", fmt.Errorf("unknown plaid environment %q", c.Environment)
	}
}
