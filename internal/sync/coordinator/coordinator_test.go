package coordinator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/goleak"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/optimade-server/internal/sync"
	syncmocks "github.com/stacklok/optimade-server/internal/sync/mocks"
	"github.com/stacklok/optimade-server/internal/telemetry"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNextInterval(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		interval time.Duration
		jitter   time.Duration
		min, max time.Duration
	}{
		{name: "no jitter", interval: time.Hour, jitter: 0, min: time.Hour, max: time.Hour},
		{name: "default jitter", interval: time.Hour, jitter: defaultJitter, min: time.Hour - defaultJitter, max: time.Hour + defaultJitter},
		{name: "jitter larger than interval stays positive", interval: time.Second, jitter: time.Minute, min: time.Nanosecond, max: time.Minute + time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := New(nil, tt.interval, WithJitter(tt.jitter)).(*defaultCoordinator)
			for range 100 {
				got := c.nextInterval()
				assert.GreaterOrEqual(t, got, tt.min)
				assert.LessOrEqual(t, got, tt.max)
			}
		})
	}
}

func TestCoordinator_New(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	manager := syncmocks.NewMockManager(ctrl)

	c := New(manager, time.Hour).(*defaultCoordinator)
	assert.Equal(t, time.Hour, c.interval)
	assert.Equal(t, defaultJitter, c.jitter)
	assert.Nil(t, c.syncMetrics)
	assert.NotNil(t, c.done)
}

func TestCoordinator_Stop_BeforeStart(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	manager := syncmocks.NewMockManager(ctrl)

	c := New(manager, time.Hour)
	require.NoError(t, c.Stop())
}

func TestCoordinator_RefreshesUntilStopped(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	manager := syncmocks.NewMockManager(ctrl)

	calls := make(chan struct{}, 16)
	manager.EXPECT().PerformSync(gomock.Any()).DoAndReturn(
		func(context.Context) (*sync.Result, *sync.Error) {
			select {
			case calls <- struct{}{}:
			default:
			}
			return &sync.Result{Hash: "0123456789abcdef", ProviderCount: 3, Changed: true}, nil
		}).MinTimes(2)

	c := New(manager, 10*time.Millisecond, WithJitter(0))

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Start(context.Background())
	}()

	for range 2 {
		select {
		case <-calls:
		case <-time.After(5 * time.Second):
			t.Fatal("expected a providers refresh")
		}
	}

	require.NoError(t, c.Stop())
	require.NoError(t, <-errCh)
}

func TestCoordinator_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	manager := syncmocks.NewMockManager(ctrl)

	c := New(manager, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Start(ctx)
	}()
	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("coordinator did not stop")
	}
}

func TestCoordinator_RecordsMetrics(t *testing.T) {
	t.Parallel()

	reader := metric.NewManualReader()
	syncMetrics, err := telemetry.NewSyncMetrics(metric.NewMeterProvider(metric.WithReader(reader)))
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	manager := syncmocks.NewMockManager(ctrl)
	gomock.InOrder(
		manager.EXPECT().PerformSync(gomock.Any()).
			Return(&sync.Result{Hash: "abc", ProviderCount: 7}, nil),
		manager.EXPECT().PerformSync(gomock.Any()).
			Return(nil, &sync.Error{Err: errors.New("boom"), Message: "failed to refresh providers: boom"}),
	)

	c := New(manager, time.Hour, WithSyncMetrics(syncMetrics)).(*defaultCoordinator)
	c.performSync(context.Background())
	c.performSync(context.Background())

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	found := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			found[m.Name] = m.Data
		}
	}

	known, ok := found["optimade_providers_known"].(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, known.DataPoints, 1)
	assert.Equal(t, int64(7), known.DataPoints[0].Value)

	durations, ok := found["optimade_providers_sync_duration_seconds"].(metricdata.Histogram[float64])
	require.True(t, ok)
	assert.Len(t, durations.DataPoints, 2)
}
