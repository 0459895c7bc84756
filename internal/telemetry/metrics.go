package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// QueryParamMetricsMeterName is the name used for the query parameter validation meter
	QueryParamMetricsMeterName = "github.com/stacklok/optimade-server/queryparams"

	// LinksMetricsMeterName is the name used for the links store meter
	LinksMetricsMeterName = "github.com/stacklok/optimade-server/links"

	// SyncMetricsMeterName is the name used for the providers refresh meter
	SyncMetricsMeterName = "github.com/stacklok/optimade-server/sync"
)

// QueryParamMetrics counts the outcome of query parameter name validation per endpoint
type QueryParamMetrics struct {
	notices    metric.Int64Counter
	rejections metric.Int64Counter
}

// NewQueryParamMetrics creates a new QueryParamMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewQueryParamMetrics(provider metric.MeterProvider) (*QueryParamMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(QueryParamMetricsMeterName)

	notices, err := meter.Int64Counter(
		"optimade_query_param_notices_total",
		metric.WithDescription("Query parameter names ignored with a warning, by notice kind"),
		metric.WithUnit("{parameter}"),
	)
	if err != nil {
		return nil, err
	}

	rejections, err := meter.Int64Counter(
		"optimade_query_param_rejections_total",
		metric.WithDescription("Requests rejected for unrecognised query parameter names"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	return &QueryParamMetrics{
		notices:    notices,
		rejections: rejections,
	}, nil
}

// RecordNotice adds count ignored names of the given notice kind for endpoint
func (m *QueryParamMetrics) RecordNotice(ctx context.Context, endpoint, kind string, count int) {
	if m == nil || m.notices == nil || count == 0 {
		return
	}

	m.notices.Add(ctx, int64(count), metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("kind", kind),
	))
}

// RecordRejection counts one rejected request for endpoint
func (m *QueryParamMetrics) RecordRejection(ctx context.Context, endpoint string) {
	if m == nil || m.rejections == nil {
		return
	}

	m.rejections.Add(ctx, 1, metric.WithAttributes(attribute.String("endpoint", endpoint)))
}

// LinksMetrics reports the size of the links store
type LinksMetrics struct {
	linksTotal metric.Int64Gauge
}

// NewLinksMetrics creates a new LinksMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewLinksMetrics(provider metric.MeterProvider) (*LinksMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	linksTotal, err := provider.Meter(LinksMetricsMeterName).Int64Gauge(
		"optimade_links_total",
		metric.WithDescription("Number of link resources served, by link type"),
		metric.WithUnit("{link}"),
	)
	if err != nil {
		return nil, err
	}

	return &LinksMetrics{linksTotal: linksTotal}, nil
}

// RecordLinks records the number of links of one link type
func (m *LinksMetrics) RecordLinks(ctx context.Context, linkType string, count int) {
	if m == nil || m.linksTotal == nil {
		return
	}

	m.linksTotal.Record(ctx, int64(count), metric.WithAttributes(attribute.String("link_type", linkType)))
}

// SyncMetrics holds the OpenTelemetry instruments for providers list refreshes
type SyncMetrics struct {
	syncDuration   metric.Float64Histogram
	providersTotal metric.Int64Gauge
}

// NewSyncMetrics creates a new SyncMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SyncMetricsMeterName)

	syncDuration, err := meter.Float64Histogram(
		"optimade_providers_sync_duration_seconds",
		metric.WithDescription("Duration of providers list refreshes in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 30, 60),
	)
	if err != nil {
		return nil, err
	}

	providersTotal, err := meter.Int64Gauge(
		"optimade_providers_known",
		metric.WithDescription("Number of registered providers known to the server"),
		metric.WithUnit("{provider}"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		syncDuration:   syncDuration,
		providersTotal: providersTotal,
	}, nil
}

// RecordSyncDuration records the duration of one refresh of the list at source
func (m *SyncMetrics) RecordSyncDuration(ctx context.Context, source string, duration time.Duration, success bool) {
	if m == nil || m.syncDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("source", source),
		attribute.Bool("success", success),
	}

	m.syncDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordProviders records the number of known providers
func (m *SyncMetrics) RecordProviders(ctx context.Context, count int) {
	if m == nil || m.providersTotal == nil {
		return
	}

	m.providersTotal.Record(ctx, int64(count))
}
