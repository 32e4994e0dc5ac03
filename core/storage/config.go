package storage

import (
	"strings"
	"time"
)

// Config holds the object storage run reports are exported to.
type Config struct {
	// Enabled turns report export on.
	Enabled bool `mapstructure:"enabled" default:"false"`
	// Endpoint is host:port, optionally with an http:// or https:// scheme.
	Endpoint  string `mapstructure:"endpoint" default:"localhost:9000"`
	AccessKey string `mapstructure:"access_key" default:"minioadmin"`
	SecretKey string `mapstructure:"secret_key" default:"minioadmin"`
	// UseSSL forces TLS for a scheme-less endpoint.
	UseSSL bool   `mapstructure:"use_ssl" default:"false"`
	Bucket string `mapstructure:"bucket" default:"plaid-sync"`
	Region string `mapstructure:"region" default:""`
	// TimeoutSeconds bounds connection setup and the first response byte.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"30"`
}

// Host returns the endpoint without its scheme and whether TLS is used.
// An https:// scheme implies TLS regardless of UseSSL.
func (c Config) Host() (string, bool) {
	switch {
	case strings.HasPrefix(c.Endpoint, "https://"):
		return strings.TrimPrefix(c.Endpoint, "https://"), true
	case strings.HasPrefix(c.Endpoint, "http://"):
		return strings.TrimPrefix(c.Endpoint, "http://"), c.UseSSL
	}
	return c.Endpoint, c.UseSSL
}

// Timeout returns TimeoutSeconds as a duration, 30s when unset.
func (c Config) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}
