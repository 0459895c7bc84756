// Package providers keeps the provider prefixes used to judge provider-specific query parameters
package providers

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"sort"

	"github.com/samber/lo"

	"github.com/stacklok/optimade-server/internal/httpclient"
	"github.com/stacklok/optimade-server/internal/links"
)

//go:embed default_providers.json
var defaultProviders []byte

// Source names where the provider list came from
type Source string

// Provider list sources
const (
	SourceFile     Source = "file"
	SourceRemote   Source = "remote"
	SourceEmbedded Source = "embedded"
)

// Registry holds the prefixes supported by this server and the providers known to the
// OPTIMADE ecosystem. It is immutable once loaded.
type Registry struct {
	supported []string
	providers []links.Link
	source    Source
}

// Option configures Load
type Option func(*loadConfig)

type loadConfig struct {
	supported []string
	path      string
	url       string
	client    httpclient.Client
}

// WithSupportedPrefixes sets the prefixes whose fields this server implements
func WithSupportedPrefixes(prefixes ...string) Option {
	return func(c *loadConfig) {
		c.supported = prefixes
	}
}

// WithFile reads the providers list from a local YAML or JSON file
func WithFile(path string) Option {
	return func(c *loadConfig) {
		c.path = path
	}
}

// WithRemote fetches the providers list from url using client
func WithRemote(url string, client httpclient.Client) Option {
	return func(c *loadConfig) {
		c.url = url
		c.client = client
	}
}

// Load builds a Registry. A configured file must load. A remote list that cannot be
// fetched or parsed falls back to the embedded snapshot.
func Load(ctx context.Context, opts ...Option) (*Registry, error) {
	cfg := &loadConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.path != "" {
		list, err := links.LoadFile(cfg.path)
		if err != nil {
			return nil, fmt.Errorf("failed to load providers: %w", err)
		}
		return newRegistry(cfg.supported, list, SourceFile), nil
	}

	if cfg.url != "" && cfg.client != nil {
		list, err := fetch(ctx, cfg.client, cfg.url)
		if err == nil {
			return newRegistry(cfg.supported, list, SourceRemote), nil
		}
		slog.Warn("Could not retrieve the providers list, using the embedded copy",
			"url", cfg.url,
			"error", err,
		)
	}

	list, err := links.Decode("providers.json", defaultProviders)
	if err != nil {
		return nil, fmt.Errorf("failed to decode embedded providers: %w", err)
	}
	return newRegistry(cfg.supported, list, SourceEmbedded), nil
}

// Fetch builds a Registry from the remote list only. Unlike Load it never falls back,
// so a failed refresh can keep the previous Registry.
func Fetch(ctx context.Context, supported []string, url string, client httpclient.Client) (*Registry, error) {
	list, err := fetch(ctx, client, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch providers from %s: %w", url, err)
	}
	return newRegistry(supported, list, SourceRemote), nil
}

// New creates a Registry from an explicit provider list
func New(supported []string, providers []links.Link) *Registry {
	return newRegistry(supported, providers, SourceFile)
}

func newRegistry(supported []string, providers []links.Link, source Source) *Registry {
	sorted := make([]links.Link, len(providers))
	copy(sorted, providers)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	slog.Debug("Provider registry loaded", "source", source, "providers", len(sorted))

	return &Registry{
		supported: lo.Uniq(supported),
		providers: sorted,
		source:    source,
	}
}

func fetch(ctx context.Context, client httpclient.Client, url string) ([]links.Link, error) {
	body, err := client.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	list, err := links.Decode(url, body)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("providers list at %s is empty", url)
	}
	return list, nil
}

// Supported returns the prefixes implemented by this server
func (r *Registry) Supported() []string {
	return append([]string(nil), r.supported...)
}

// Known returns the ids of every known provider, sorted
func (r *Registry) Known() []string {
	return lo.Map(r.providers, func(l links.Link, _ int) string { return l.ID })
}

// Providers returns the provider links as external links
func (r *Registry) Providers() []links.Link {
	return lo.Map(r.providers, func(l links.Link, _ int) links.Link {
		l.LinkType = links.LinkTypeExternal
		return l
	})
}

// Source reports where the provider list came from
func (r *Registry) Source() Source {
	return r.source
}
