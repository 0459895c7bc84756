package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/optimade-server/internal/api/index"
	"github.com/stacklok/optimade-server/internal/config"
	"github.com/stacklok/optimade-server/internal/httpclient/mocks"
	"github.com/stacklok/optimade-server/internal/links"
	"github.com/stacklok/optimade-server/internal/providers"
	"github.com/stacklok/optimade-server/internal/telemetry"
)

const testLinks = `[
  // the database served next to this index
  {"id": "main", "name": "Main", "description": "Main database", "base_url": "https://db.example.com", "homepage": null, "link_type": "child"},
]`

// warnings returns the meta.warnings of a response as "title: detail" strings
func warnings(t *testing.T, rec *httptest.ResponseRecorder) []string {
	t.Helper()

	var doc index.Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	var out []string
	for _, w := range doc.Meta.Warnings {
		out = append(out, w.Title+": "+w.Detail)
	}
	return out
}

// createTestConfig returns a config that never reaches the network
func createTestConfig(t *testing.T) *config.Config {
	t.Helper()

	path := filepath.Join(t.TempDir(), "links.json")
	require.NoError(t, os.WriteFile(path, []byte(testLinks), 0o600))

	cfg := config.Default()
	cfg.ProvidersURL = "-"
	cfg.IndexLinksPath = path
	return cfg
}

func TestBaseConfig_Defaults(t *testing.T) {
	t.Parallel()

	built, err := baseConfig()
	require.NoError(t, err)
	assert.Equal(t, defaultHTTPAddress, built.address)
	assert.Equal(t, defaultRequestTimeout, built.requestTimeout)
	require.NotNil(t, built.config)
	assert.Equal(t, config.DefaultProviderPrefix, built.config.Provider.Prefix)
}

func TestWithAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		addr    string
		wantErr bool
	}{
		{name: "port only", addr: ":9090"},
		{name: "localhost", addr: "localhost:8080"},
		{name: "ipv4", addr: "127.0.0.1:0"},
		{name: "ipv6", addr: "[::1]:8080"},
		{name: "empty", addr: "", wantErr: true},
		{name: "missing port", addr: ":", wantErr: true},
		{name: "no colon", addr: "8080", wantErr: true},
		{name: "bad port", addr: ":http-alt", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			built, err := baseConfig(WithAddress(tt.addr))
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, built)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.addr, built.address)
		})
	}
}

func TestWithRequestTimeout(t *testing.T) {
	t.Parallel()

	built, err := baseConfig(WithRequestTimeout(3 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, built.requestTimeout)

	_, err = baseConfig(WithRequestTimeout(0))
	require.Error(t, err)
}

func TestNewOptimadeApp(t *testing.T) {
	t.Parallel()

	cfg := createTestConfig(t)
	cfg.InsertProviderLinks = true

	app, err := NewOptimadeApp(context.Background(), WithConfig(cfg), WithAddress("127.0.0.1:0"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Stop(time.Second) })

	c := app.Components()
	assert.Equal(t, providers.SourceEmbedded, c.Providers().Source())
	assert.Equal(t, []string{"exmpl"}, c.Providers().Supported())
	assert.True(t, c.Classifier.Enabled())
	assert.Nil(t, c.SyncCoordinator)

	counts := c.Links.Count(context.Background())
	assert.Equal(t, 1, counts[links.LinkTypeChild])
	assert.Equal(t, len(c.Providers().Known()), counts[links.LinkTypeExternal])

	handler := app.GetHTTPServer().Handler

	req := httptest.NewRequest(http.MethodGet, "/v1/links?page_limit=500", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var doc index.Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	data, ok := doc.Data.([]any)
	require.True(t, ok)
	ids := make([]string, 0, len(data))
	for _, d := range data {
		ids = append(ids, d.(map[string]any)["id"].(string))
	}
	assert.Contains(t, ids, "main")
	assert.Contains(t, ids, "mp")

	req = httptest.NewRequest(http.MethodGet, "/info", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"default"`)
	assert.Contains(t, rec.Body.String(), `"main"`)
}

func TestNewOptimadeApp_QueryParameterNames(t *testing.T) {
	t.Parallel()

	app, err := NewOptimadeApp(context.Background(), WithConfig(createTestConfig(t)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Stop(time.Second) })

	tests := []struct {
		name         string
		query        string
		wantStatus   int
		wantInBody   []string
		wantWarnings []string
	}{
		{
			name:       "own prefix is rejected",
			query:      "_exmpl_chemsys=Si",
			wantStatus: http.StatusBadRequest,
			wantInBody: []string{"The query parameter(s) '['_exmpl_chemsys']' are not recognised by this endpoint."},
		},
		{
			name:       "unknown prefix is a warning",
			query:      "_zzz_chemsys=Si",
			wantStatus:   http.StatusOK,
			wantWarnings: []string{"UnknownProviderQueryParameter: The query parameter(s) '['_zzz_chemsys']' are unrecognised and have been ignored."},
		},
		{
			name:       "registered provider prefix is silent",
			query:      "_mp_chemsys=Si",
			wantStatus: http.StatusOK,
		},
		{
			name:       "unsupported parameter is a warning",
			query:      "page_cursor=1",
			wantStatus:   http.StatusOK,
			wantWarnings: []string{"QueryParamNotUsed: The query parameter(s) '['page_cursor']' are not supported by this server and have been ignored."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/links?"+tt.query, nil)
			rec := httptest.NewRecorder()
			app.GetHTTPServer().Handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			for _, s := range tt.wantInBody {
				assert.Contains(t, rec.Body.String(), s)
			}
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.wantWarnings, warnings(t, rec))
			}
		})
	}
}

func TestNewOptimadeApp_ValidationDisabled(t *testing.T) {
	t.Parallel()

	cfg := createTestConfig(t)
	disabled := false
	cfg.ValidateQueryParameters = &disabled

	app, err := NewOptimadeApp(context.Background(), WithConfig(cfg))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Stop(time.Second) })

	req := httptest.NewRequest(http.MethodGet, "/links?garbage=1&_exmpl_x=2", nil)
	rec := httptest.NewRecorder()
	app.GetHTTPServer().Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, warnings(t, rec))
}

func TestNewOptimadeApp_RemoteProviders(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	client.EXPECT().
		Get(gomock.Any(), config.DefaultProvidersURL).
		Return([]byte(`{"data": [{"type": "links", "id": "vendor", "attributes": {"name": "Vendor", "description": "", "base_url": null, "homepage": null, "link_type": "external"}}]}`), nil)

	cfg := createTestConfig(t)
	cfg.ProvidersURL = config.DefaultProvidersURL

	app, err := NewOptimadeApp(context.Background(), WithConfig(cfg), WithHTTPClient(client))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Stop(time.Second) })

	assert.Equal(t, providers.SourceRemote, app.Components().Providers().Source())
	assert.Equal(t, []string{"vendor"}, app.Components().Providers().Known())

	// mp is no longer a registered provider
	req := httptest.NewRequest(http.MethodGet, "/links?_mp_chemsys=Si&_vendor_x=1", nil)
	rec := httptest.NewRecorder()
	app.GetHTTPServer().Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t,
		[]string{"UnknownProviderQueryParameter: The query parameter(s) '['_mp_chemsys']' are unrecognised and have been ignored."},
		warnings(t, rec),
	)
}

func TestNewOptimadeApp_ProvidersRefresh(t *testing.T) {
	t.Parallel()

	vendor := `{"type": "links", "id": "vendor", "attributes": {"name": "Vendor", "description": "", "base_url": null, "homepage": null, "link_type": "external"}}`
	newdb := `{"type": "links", "id": "newdb", "attributes": {"name": "New database", "description": "", "base_url": "https://newdb.example", "homepage": null, "link_type": "external"}}`

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	gomock.InOrder(
		client.EXPECT().Get(gomock.Any(), config.DefaultProvidersURL).
			Return([]byte(`{"data": [`+vendor+`]}`), nil),
		client.EXPECT().Get(gomock.Any(), config.DefaultProvidersURL).
			Return([]byte(`{"data": [`+vendor+`, `+newdb+`]}`), nil),
	)

	cfg := createTestConfig(t)
	cfg.ProvidersURL = config.DefaultProvidersURL
	cfg.ProvidersRefreshInterval = "1h"
	cfg.InsertProviderLinks = true

	app, err := NewOptimadeApp(context.Background(), WithConfig(cfg), WithHTTPClient(client))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Stop(time.Second) })

	c := app.Components()
	require.NotNil(t, c.SyncCoordinator)

	get := func(target string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		app.GetHTTPServer().Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		return rec
	}

	assert.Len(t, warnings(t, get("/links?_newdb_x=1")), 1)
	assert.Equal(t, http.StatusNotFound, get("/links/newdb").Code)

	result, syncErr := c.Sync.PerformSync(context.Background())
	require.Nil(t, syncErr)
	assert.True(t, result.Changed)
	assert.Equal(t, []string{"newdb", "vendor"}, c.Providers().Known())

	assert.Empty(t, warnings(t, get("/links?_newdb_x=1")))
	assert.Equal(t, http.StatusOK, get("/links/newdb").Code)
}

func TestNewOptimadeApp_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{
			name:   "missing links file",
			mutate: func(c *config.Config) { c.IndexLinksPath = "/nonexistent/links.json" },
		},
		{
			name:   "missing providers file",
			mutate: func(c *config.Config) { c.ProvidersPath = "/nonexistent/providers.yaml" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := createTestConfig(t)
			tt.mutate(cfg)

			app, err := NewOptimadeApp(context.Background(), WithConfig(cfg))
			require.Error(t, err)
			assert.Nil(t, app)
		})
	}
}

func TestNewOptimadeApp_PrometheusEndpoint(t *testing.T) {
	t.Parallel()

	cfg := createTestConfig(t)
	cfg.Telemetry = &telemetry.Config{
		Enabled: true,
		Metrics: &telemetry.MetricsConfig{Enabled: true, Prometheus: true},
	}

	app, err := NewOptimadeApp(context.Background(), WithConfig(cfg))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Stop(time.Second) })

	handler := app.GetHTTPServer().Handler
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/links?_zzz_a=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "optimade_links_total")
	assert.Contains(t, body, "optimade_query_param_notices")
	assert.Contains(t, body, "optimade_http_requests")
}

func TestNewOptimadeApp_ProviderLinksFilter(t *testing.T) {
	t.Parallel()

	cfg := createTestConfig(t)
	cfg.InsertProviderLinks = true
	cfg.ProviderLinks = &config.NameFilterConfig{Exclude: []string{"exmpl"}}

	app, err := NewOptimadeApp(context.Background(), WithConfig(cfg))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Stop(time.Second) })

	c := app.Components()
	counts := c.Links.Count(context.Background())
	assert.Equal(t, len(c.Providers().Known())-1, counts[links.LinkTypeExternal])

	_, err = c.Links.Get(context.Background(), "exmpl")
	require.ErrorIs(t, err, links.ErrLinkNotFound)

	cfg = createTestConfig(t)
	cfg.InsertProviderLinks = true
	cfg.ProviderLinks = &config.NameFilterConfig{Include: []string{"[a-"}}
	_, err = NewOptimadeApp(context.Background(), WithConfig(cfg))
	require.Error(t, err)
}
