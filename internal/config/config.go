// Package config provides configuration loading and management for the OPTIMADE index server.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stacklok/optimade-server/internal/telemetry"
)

const (
	// EnvPrefix is the prefix of the environment variables read by the server
	EnvPrefix = "OPTIMADE"

	// DefaultPageLimit is the page size used when a request does not set page_limit
	DefaultPageLimit = 20

	// DefaultPageLimitMax is the largest page_limit a request may ask for
	DefaultPageLimitMax = 500

	// DefaultProviderPrefix is the prefix of the example provider
	DefaultProviderPrefix = "exmpl"

	// DefaultProvidersURL is the canonical list of registered OPTIMADE providers
	DefaultProvidersURL = "https://providers.optimade.org/v1/links"
)

var prefixPattern = regexp.MustCompile(`^[a-z][a-z0-9]*$`)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) && !filepath.IsLocal(realPath) {
			return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	// ValidateQueryParameters enables query parameter name validation.
	// A nil value means true.
	ValidateQueryParameters *bool `yaml:"validateQueryParameters,omitempty"`

	// PageLimit is the default page size of listing endpoints
	PageLimit int `yaml:"pageLimit,omitempty"`

	// PageLimitMax caps page_limit
	PageLimitMax int `yaml:"pageLimitMax,omitempty"`

	// Provider describes the database provider running this server
	Provider ProviderConfig `yaml:"provider"`

	// SupportedPrefixes are additional provider prefixes whose fields this server implements
	SupportedPrefixes []string `yaml:"supportedPrefixes,omitempty"`

	// ProvidersPath is a local YAML or JSON file listing the known providers
	ProvidersPath string `yaml:"providersPath,omitempty"`

	// ProvidersURL is fetched when ProvidersPath is not set. Set to "-" to skip the fetch.
	ProvidersURL string `yaml:"providersURL,omitempty"`

	// ProvidersRefreshInterval re-fetches ProvidersURL periodically, for example "24h".
	// Empty disables the refresh.
	ProvidersRefreshInterval string `yaml:"providersRefreshInterval,omitempty"`

	// IndexLinksPath is the file holding the link resources served under /links
	IndexLinksPath string `yaml:"indexLinksPath,omitempty"`

	// InsertProviderLinks appends every known provider to the links as an external link
	InsertProviderLinks bool `yaml:"insertProviderLinks,omitempty"`

	// ProviderLinks selects which providers are inserted by InsertProviderLinks
	ProviderLinks *NameFilterConfig `yaml:"providerLinks,omitempty"`

	// BaseURL is the public URL of the server, used in links and meta.query
	BaseURL string `yaml:"baseURL,omitempty"`

	CORS *CORSConfig `yaml:"cors,omitempty"`

	Telemetry *telemetry.Config `yaml:"telemetry,omitempty"`
}

// ProviderConfig identifies the provider in response meta
type ProviderConfig struct {
	Prefix      string `yaml:"prefix"`
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Homepage    string `yaml:"homepage,omitempty"`
}

// NameFilterConfig holds glob patterns matched against link ids. Exclude wins over include.
type NameFilterConfig struct {
	Include []string `yaml:"include,omitempty"`
	Exclude []string `yaml:"exclude,omitempty"`
}

// CORSConfig defines cross-origin settings
type CORSConfig struct {
	// AllowedOrigins defaults to every origin
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	cfg := &Config{
		Provider: ProviderConfig{
			Prefix:      DefaultProviderPrefix,
			Name:        "Example provider",
			Description: "Provider used for examples, not to be assigned to a real database",
			Homepage:    "https://example.com",
		},
	}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	config.applyDefaults()

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// QueryValidationEnabled reports whether query parameter names are validated
func (c *Config) QueryValidationEnabled() bool {
	return c.ValidateQueryParameters == nil || *c.ValidateQueryParameters
}

// SupportedProviderPrefixes returns the prefix of this provider followed by the extra supported prefixes
func (c *Config) SupportedProviderPrefixes() []string {
	prefixes := make([]string, 0, len(c.SupportedPrefixes)+1)
	if c.Provider.Prefix != "" {
		prefixes = append(prefixes, c.Provider.Prefix)
	}
	for _, p := range c.SupportedPrefixes {
		if p != c.Provider.Prefix {
			prefixes = append(prefixes, p)
		}
	}
	return prefixes
}

// RefreshInterval returns how often the providers list is re-fetched, 0 when never.
// Only a remote list is refreshed.
func (c *Config) RefreshInterval() time.Duration {
	if c.ProvidersRefreshInterval == "" || c.ProvidersPath != "" || c.ProvidersURL == "" || c.ProvidersURL == "-" {
		return 0
	}
	d, err := time.ParseDuration(c.ProvidersRefreshInterval)
	if err != nil {
		return 0
	}
	return d
}

// AllowedOrigins returns the CORS origins, every origin when unset
func (c *Config) AllowedOrigins() []string {
	if c.CORS == nil || len(c.CORS.AllowedOrigins) == 0 {
		return []string{"*"}
	}
	return c.CORS.AllowedOrigins
}

func (c *Config) applyDefaults() {
	if c.PageLimit == 0 {
		c.PageLimit = DefaultPageLimit
	}
	if c.PageLimitMax == 0 {
		c.PageLimitMax = DefaultPageLimitMax
	}
	if c.ProvidersURL == "" && c.ProvidersPath == "" {
		c.ProvidersURL = DefaultProvidersURL
	}
}

func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	var errs []error

	if c.PageLimit < 0 {
		errs = append(errs, fmt.Errorf("pageLimit must not be negative, got %d", c.PageLimit))
	}
	if c.PageLimitMax < c.PageLimit {
		errs = append(errs, fmt.Errorf("pageLimitMax (%d) must not be smaller than pageLimit (%d)", c.PageLimitMax, c.PageLimit))
	}

	if c.Provider.Prefix == "" {
		errs = append(errs, fmt.Errorf("provider.prefix is required"))
	} else if !prefixPattern.MatchString(c.Provider.Prefix) {
		errs = append(errs, fmt.Errorf("provider.prefix %q must be lowercase alphanumeric starting with a letter", c.Provider.Prefix))
	}
	if c.Provider.Name == "" {
		errs = append(errs, fmt.Errorf("provider.name is required"))
	}

	for i, p := range c.SupportedPrefixes {
		if !prefixPattern.MatchString(p) {
			errs = append(errs, fmt.Errorf("supportedPrefixes[%d]: %q must be lowercase alphanumeric starting with a letter", i, p))
		}
	}

	if c.ProvidersURL != "" && c.ProvidersURL != "-" {
		if err := validateURL(c.ProvidersURL); err != nil {
			errs = append(errs, fmt.Errorf("providersURL: %w", err))
		}
	}
	if c.ProvidersRefreshInterval != "" {
		if d, err := time.ParseDuration(c.ProvidersRefreshInterval); err != nil {
			errs = append(errs, fmt.Errorf("providersRefreshInterval: %w", err))
		} else if d < time.Minute {
			errs = append(errs, fmt.Errorf("providersRefreshInterval must be at least 1m, got %s", d))
		}
	}
	if c.BaseURL != "" {
		if err := validateURL(c.BaseURL); err != nil {
			errs = append(errs, fmt.Errorf("baseURL: %w", err))
		}
	}

	if err := c.Telemetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}

	return errors.Join(errs...)
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL %q must use http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("URL %q has no host", raw)
	}
	return nil
}
