package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/optimade-server/internal/config"
	"github.com/stacklok/optimade-server/internal/filtering"
	"github.com/stacklok/optimade-server/internal/httpclient/mocks"
	"github.com/stacklok/optimade-server/internal/links"
	"github.com/stacklok/optimade-server/internal/providers"
	"github.com/stacklok/optimade-server/internal/queryparams"
)

const (
	testURL = "https://providers.example/v1/links"

	firstList = `{"data": [
  {"type": "links", "id": "exmpl", "attributes": {"name": "Example", "description": "", "base_url": null, "homepage": null, "link_type": "external"}},
  {"type": "links", "id": "mp", "attributes": {"name": "Materials Project", "description": "", "base_url": "https://optimade.materialsproject.org", "homepage": null, "link_type": "external"}}
]}`

	secondList = `{"data": [
  {"type": "links", "id": "exmpl", "attributes": {"name": "Example", "description": "", "base_url": null, "homepage": null, "link_type": "external"}},
  {"type": "links", "id": "mp", "attributes": {"name": "Materials Project", "description": "", "base_url": "https://optimade.materialsproject.org", "homepage": null, "link_type": "external"}},
  {"type": "links", "id": "newdb", "attributes": {"name": "New database", "description": "", "base_url": "https://newdb.example", "homepage": null, "link_type": "external"}}
]}`
)

func baseLinks() []links.Link {
	return []links.Link{{ID: "main", Type: "links", Name: "Main", LinkType: links.LinkTypeChild}}
}

func initialRegistry(t *testing.T) *providers.Registry {
	t.Helper()

	list, err := links.Decode("providers.json", []byte(firstList))
	require.NoError(t, err)
	return providers.New([]string{"exmpl"}, list)
}

func classify(c *queryparams.Classifier, name string) queryparams.Classification {
	return c.Classify([]string{name}, queryparams.EntryListingParams()).Of(name)
}

func TestNewProvidersManager_AppliesInitialRegistry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	classifier := queryparams.NewClassifier(queryparams.WithSupportedPrefixes("exmpl"))
	store := links.NewMemoryStore()
	filter, err := filtering.NewNameFilter(&config.NameFilterConfig{Exclude: []string{"exmpl"}})
	require.NoError(t, err)

	initial := initialRegistry(t)
	m := NewProvidersManager(ctx, initial,
		WithClassifier(classifier),
		WithLinkStore(store, baseLinks(), filter),
	)

	assert.Same(t, initial, m.Registry())
	assert.Equal(t, queryparams.ClassOK, classify(classifier, "_mp_x"))
	assert.Equal(t, queryparams.ClassUnknownProvider, classify(classifier, "_newdb_x"))

	counts := store.Count(ctx)
	assert.Equal(t, 1, counts[links.LinkTypeChild])
	assert.Equal(t, 1, counts[links.LinkTypeExternal])
	_, err = store.Get(ctx, "exmpl")
	require.ErrorIs(t, err, links.ErrLinkNotFound)
}

func TestProvidersManager_PerformSync(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	gomock.InOrder(
		client.EXPECT().Get(gomock.Any(), testURL).Return([]byte(firstList), nil),
		client.EXPECT().Get(gomock.Any(), testURL).Return([]byte(secondList), nil),
		client.EXPECT().Get(gomock.Any(), testURL).Return(nil, errors.New("connection refused")),
	)

	classifier := queryparams.NewClassifier(queryparams.WithSupportedPrefixes("exmpl"))
	store := links.NewMemoryStore()
	filter, err := filtering.NewNameFilter(nil)
	require.NoError(t, err)

	m := NewProvidersManager(ctx, initialRegistry(t),
		WithRemote(testURL, client),
		WithClassifier(classifier),
		WithLinkStore(store, baseLinks(), filter),
	)

	// Same list as the initial one
	result, syncErr := m.PerformSync(ctx)
	require.Nil(t, syncErr)
	assert.False(t, result.Changed)
	assert.Equal(t, 2, result.ProviderCount)
	assert.Len(t, result.Hash, 64)
	assert.Equal(t, providers.SourceFile, m.Registry().Source())

	// A new provider is registered
	result, syncErr = m.PerformSync(ctx)
	require.Nil(t, syncErr)
	assert.True(t, result.Changed)
	assert.Equal(t, 3, result.ProviderCount)
	assert.Equal(t, providers.SourceRemote, m.Registry().Source())
	assert.Equal(t, []string{"exmpl"}, m.Registry().Supported())
	assert.Equal(t, queryparams.ClassOK, classify(classifier, "_newdb_x"))
	link, err := store.Get(ctx, "newdb")
	require.NoError(t, err)
	assert.Equal(t, links.LinkTypeExternal, link.LinkType)
	_, err = store.Get(ctx, "main")
	require.NoError(t, err)

	// A failed fetch keeps what was applied
	current := m.Registry()
	result, syncErr = m.PerformSync(ctx)
	require.NotNil(t, syncErr)
	assert.Nil(t, result)
	assert.Contains(t, syncErr.Error(), "connection refused")
	assert.Same(t, current, m.Registry())
	assert.Equal(t, queryparams.ClassOK, classify(classifier, "_newdb_x"))
}

func TestProvidersManager_PerformSync_NotConfigured(t *testing.T) {
	t.Parallel()

	m := NewProvidersManager(context.Background(), initialRegistry(t))

	result, syncErr := m.PerformSync(context.Background())
	assert.Nil(t, result)
	require.NotNil(t, syncErr)
	assert.Contains(t, syncErr.Error(), "no remote providers list")
}

func TestProvidersManager_PerformSync_EmptyList(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	client.EXPECT().Get(gomock.Any(), testURL).Return([]byte(`{"data": []}`), nil)

	m := NewProvidersManager(context.Background(), initialRegistry(t), WithRemote(testURL, client))

	_, syncErr := m.PerformSync(context.Background())
	require.NotNil(t, syncErr)
	assert.Contains(t, syncErr.Error(), "is empty")
	assert.Equal(t, []string{"exmpl", "mp"}, m.Registry().Known())
}

func TestProvidersManager_NoProviderLinks(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := links.NewMemoryStore()
	NewProvidersManager(ctx, initialRegistry(t), WithLinkStore(store, baseLinks(), nil))

	counts := store.Count(ctx)
	assert.Equal(t, 1, counts[links.LinkTypeChild])
	assert.Zero(t, counts[links.LinkTypeExternal])
}
