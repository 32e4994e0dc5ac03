package config

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"plaid-sync/core/database"
	"plaid-sync/core/logger"
	"plaid-sync/core/plaid"
	"plaid-sync/core/server"
	"plaid-sync/core/storage"
	"plaid-sync/feature/synchronizer"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// It is divided into partial configurations for better modularity.
type Config struct {
	// Plaid holds the API credentials and client settings.
	Plaid plaid.Config `mapstructure:"plaid"`
	// Database holds configuration for the database connection.
	Database database.Config `mapstructure:"database"`
	// Log holds configuration for the logger.
	Log logger.Config `mapstructure:"log"`
	// Server holds configuration for the HTTP server.
	Server server.Config `mapstructure:"server"`
	// Storage holds configuration for report export to object storage.
	Storage storage.Config `mapstructure:"storage"`
	// Sync holds configuration for sync runs.
	Sync synchronizer.Config `mapstructure:"sync"`
	// Notify holds configuration for report emails.
	Notify synchronizer.NotifyConfig `mapstructure:"notify"`
	// Accounts maps an account name to its credential. Only a config file
	// can populate it.
	Accounts map[string]AccountConfig `mapstructure:"accounts"`
}

// AccountConfig is one linked Plaid item.
type AccountConfig struct {
	AccessToken string `mapstructure:"access_token"`
	Disabled    bool   `mapstructure:"disabled"`
}

// configName is the file looked up in path when no file is given.
const configName = "plaid-sync"

// LoadConfig loads configuration from a config file, environment variables
// and a .env file in path. configFile may name any format viper reads; when
// empty, plaid-sync.{yaml,toml,json,...} in path is used if present.
func LoadConfig(path, configFile string) (*Config, error) {
	// 1. Load .env file if it exists
	envPath := path + "/.env"
	if path == "." || path == "" {
		envPath = ".env"
	}

	// Ignore error if file doesn't exist (e.g. production)
	_ = godotenv.Overload(envPath)

	v := viper.New()

	// Recursively parse struct tags to set default values
	bindValues(v, Config{}, "")

	// Map environment variables to nested keys (e.g. PLAID_SECRET -> plaid.secret)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// EnabledAccounts returns the accounts with an access token that are not
// disabled, sorted by name.
func (c *Config) EnabledAccounts() []synchronizer.Account {
	names := make([]string, 0, len(c.Accounts))
	for name, acct := range c.Accounts {
		if acct.Disabled || strings.TrimSpace(acct.AccessToken) == "" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]synchronizer.Account, 0, len(names))
	for _, name := range names {
		out = append(out, synchronizer.Account{Name: name, AccessToken: c.Accounts[name].AccessToken})
	}
	return out
}

// bindValues uses reflection to iterate over the struct and set default values in Viper
// based on the 'default' and 'mapstructure' tags.
func bindValues(v *viper.Viper, iface any, prefix string) {
	t := reflect.TypeOf(iface)

	// If it's a pointer, get the element
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")

		// Skip if no tag
		if tag == "" {
			continue
		}

		// Build the key
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		switch field.Type.Kind() {
		case reflect.Struct:
			bindValues(v, reflect.New(field.Type).Elem().Interface(), key)
			continue
		case reflect.Map:
			// Keys are only known from the config file.
			continue
		}

		defaultValue := field.Tag.Get("default")
		// Always set default (even if empty) to register the key for AutomaticEnv
		v.SetDefault(key, defaultValue)
	}
}
