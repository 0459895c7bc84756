package sync

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/stacklok/optimade-server/internal/filtering"
	"github.com/stacklok/optimade-server/internal/httpclient"
	"github.com/stacklok/optimade-server/internal/links"
	"github.com/stacklok/optimade-server/internal/providers"
	"github.com/stacklok/optimade-server/internal/queryparams"
	"github.com/stacklok/optimade-server/internal/telemetry"
)

// Result contains the result of a successful sync operation
type Result struct {
	Hash          string
	ProviderCount int
	// Changed is false when the fetched list matched the one already applied
	Changed bool
}

// Error represents a failed sync with a message suitable for logs
type Error struct {
	Err     error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Manager refreshes the providers list of a running server
//
//go:generate mockgen -destination=mocks/mock_manager.go -package=mocks github.com/stacklok/optimade-server/internal/sync Manager
type Manager interface {
	// PerformSync fetches the providers list and applies it when it changed
	PerformSync(ctx context.Context) (*Result, *Error)
}

// ProvidersManager owns the current provider Registry and pushes every new one to the
// classifier and the link store. PerformSync must not be called concurrently.
type ProvidersManager struct {
	current  atomic.Pointer[providers.Registry]
	lastHash string

	url    string
	client httpclient.Client

	classifier   *queryparams.Classifier
	store        *links.MemoryStore
	baseLinks    []links.Link
	filter       *filtering.NameFilter
	linksMetrics *telemetry.LinksMetrics
}

var _ Manager = (*ProvidersManager)(nil)

// Option configures a ProvidersManager
type Option func(*ProvidersManager)

// WithRemote sets where PerformSync fetches the providers list from
func WithRemote(url string, client httpclient.Client) Option {
	return func(m *ProvidersManager) {
		m.url = url
		m.client = client
	}
}

// WithClassifier keeps the classifier's known provider prefixes in step with the registry
func WithClassifier(c *queryparams.Classifier) Option {
	return func(m *ProvidersManager) {
		m.classifier = c
	}
}

// WithLinkStore rebuilds store from base on every applied registry. When filter is not
// nil the provider links it lets through are merged into base.
func WithLinkStore(store *links.MemoryStore, base []links.Link, filter *filtering.NameFilter) Option {
	return func(m *ProvidersManager) {
		m.store = store
		m.baseLinks = base
		m.filter = filter
	}
}

// WithLinksMetrics records the served link counts after every applied registry
func WithLinksMetrics(metrics *telemetry.LinksMetrics) Option {
	return func(m *ProvidersManager) {
		m.linksMetrics = metrics
	}
}

// NewProvidersManager creates a manager and applies initial
func NewProvidersManager(ctx context.Context, initial *providers.Registry, opts ...Option) *ProvidersManager {
	m := &ProvidersManager{}
	for _, opt := range opts {
		opt(m)
	}
	m.Apply(ctx, initial)
	return m
}

// Registry returns the registry applied last
func (m *ProvidersManager) Registry() *providers.Registry {
	return m.current.Load()
}

// PerformSync fetches the remote list. A failed fetch leaves the current registry in place.
func (m *ProvidersManager) PerformSync(ctx context.Context) (*Result, *Error) {
	if m.url == "" || m.client == nil {
		return nil, &Error{Message: "no remote providers list is configured"}
	}

	current := m.Registry()
	registry, err := providers.Fetch(ctx, current.Supported(), m.url, m.client)
	if err != nil {
		return nil, &Error{Err: err, Message: fmt.Sprintf("failed to refresh providers: %v", err)}
	}

	hash, err := registryHash(registry)
	if err != nil {
		return nil, &Error{Err: err, Message: fmt.Sprintf("failed to hash providers: %v", err)}
	}

	result := &Result{Hash: hash, ProviderCount: len(registry.Known())}
	if hash == m.lastHash {
		return result, nil
	}

	m.Apply(ctx, registry)
	result.Changed = true
	return result, nil
}

// Apply makes registry current and updates the classifier and the link store
func (m *ProvidersManager) Apply(ctx context.Context, registry *providers.Registry) {
	m.current.Store(registry)
	if hash, err := registryHash(registry); err == nil {
		m.lastHash = hash
	}

	if m.classifier != nil {
		m.classifier.SetProviderPrefixes(registry.Known()...)
	}

	if m.store == nil {
		return
	}

	list := m.baseLinks
	if m.filter != nil {
		list = links.Merge(list, m.filter.Apply(ctx, registry.Providers()))
	}
	m.store.Replace(list...)

	counts := m.store.Count(ctx)
	for _, linkType := range []links.LinkType{
		links.LinkTypeChild, links.LinkTypeRoot, links.LinkTypeExternal, links.LinkTypeProviders,
	} {
		m.linksMetrics.RecordLinks(ctx, string(linkType), counts[linkType])
	}

	slog.Debug("Providers applied",
		"source", registry.Source(),
		"known", len(registry.Known()),
		"links", len(list),
	)
}

func registryHash(registry *providers.Registry) (string, error) {
	data, err := json.Marshal(registry.Providers())
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
