// Package config holds the explicit configuration object every component is
// constructed from. Only the CLI consults the process environment; it hands
// its lookup function to Load.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variable names understood by Load.
const (
	EnvSourceURL         = "SHOPIFY_STORE_URL"
	EnvSourceToken       = "SHOPIFY_ACCESS_TOKEN"
	EnvDestinationURL    = "DEST_SHOPIFY_STORE_URL"
	EnvDestinationToken  = "DEST_SHOPIFY_ACCESS_TOKEN"
	EnvSnapshotDir       = "METAMIGRATE_SNAPSHOT_DIR"
	EnvStoreName         = "METAMIGRATE_STORE_NAME"
	EnvJournal           = "METAMIGRATE_JOURNAL"
	EnvRequestsPerSecond = "METAMIGRATE_RPS"
)

// Defaults applied by Load when neither the file nor the environment sets a value.
const (
	DefaultSnapshotDir       = "store"
	DefaultPageSize          = 50
	DefaultRequestsPerSecond = 2.0
)

// StoreConfig addresses one store's GraphQL endpoint.
type StoreConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

// Configured reports whether both the endpoint and the token are set.
func (s StoreConfig) Configured() bool {
	return s.URL != "" && s.Token != ""
}

// Config is the complete configuration of a migration run.
type Config struct {
	Source      StoreConfig `yaml:"source"`
	Destination StoreConfig `yaml:"destination"`

	// SnapshotDir is the parent of the store-name scoped snapshot root.
	SnapshotDir string `yaml:"snapshot_dir"`

	// StoreName scopes the snapshot root. Derived from the source URL when empty.
	StoreName string `yaml:"store_name"`

	// JournalPath is the SQLite journal. Empty disables journaling.
	JournalPath string `yaml:"journal"`

	// PageSize bounds each paginated instance query.
	PageSize int `yaml:"page_size"`

	// RequestsPerSecond throttles each store client. Zero disables throttling.
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// RequestTimeout bounds a single remote call. Zero keeps the transport default.
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// Load builds a Config from an optional YAML file and then applies
// overrides from getenv. An empty path skips the file.
func Load(path string, getenv func(string) string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if getenv != nil {
		if err := cfg.applyEnv(getenv); err != nil {
			return nil, err
		}
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	overrides := []struct {
		name string
		dst  *string
	}{
		{EnvSourceURL, &c.Source.URL},
		{EnvSourceToken, &c.Source.Token},
		{EnvDestinationURL, &c.Destination.URL},
		{EnvDestinationToken, &c.Destination.Token},
		{EnvSnapshotDir, &c.SnapshotDir},
		{EnvStoreName, &c.StoreName},
		{EnvJournal, &c.JournalPath},
	}
	for _, o := range overrides {
		if v := getenv(o.name); v != "" {
			*o.dst = v
		}
	}

	if v := getenv(EnvRequestsPerSecond); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRequestsPerSecond, err)
		}
		c.RequestsPerSecond = rps
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.SnapshotDir == "" {
		c.SnapshotDir = DefaultSnapshotDir
	}
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.RequestsPerSecond == 0 {
		c.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if c.StoreName == "" {
		c.StoreName = StoreNameFromURL(c.Source.URL)
	}
}

var storeNamePattern = regexp.MustCompile(`^https://(.*?)\.myshopify\.com`)

// StoreNameFromURL extracts the shop subdomain from an admin endpoint, or
// returns "" when the URL is not a myshopify.com address.
func StoreNameFromURL(url string) string {
	m := storeNamePattern.FindStringSubmatch(url)
	if m == nil {
		return ""
	}
	return m[1]
}

// Validate checks that the stores a command needs are configured.
func (c *Config) Validate(needSource, needDestination bool) error {
	var errs []error
	if needSource && !c.Source.Configured() {
		errs = append(errs, fmt.Errorf("source store not configured (set %s and %s)", EnvSourceURL, EnvSourceToken))
	}
	if needDestination && !c.Destination.Configured() {
		errs = append(errs, fmt.Errorf("destination store not configured (set %s and %s)", EnvDestinationURL, EnvDestinationToken))
	}
	if c.StoreName == "" {
		errs = append(errs, fmt.Errorf("store name unknown (set %s or store_name)", EnvStoreName))
	}
	if c.PageSize > 250 {
		errs = append(errs, fmt.Errorf("page_size %d exceeds the API maximum of 250", c.PageSize))
	}
	return errors.Join(errs...)
}
