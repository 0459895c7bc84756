package coordinator

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	pkgsync "github.com/stacklok/optimade-server/internal/sync"
	"github.com/stacklok/optimade-server/internal/telemetry"
)

const (
	// defaultJitter is the maximum random offset (±30 seconds) applied to the refresh interval
	defaultJitter = 30 * time.Second

	syncSource = "remote"
)

// Coordinator schedules background refreshes of the providers list
type Coordinator interface {
	// Start runs the refresh loop.
	// Blocks until context is cancelled or Stop is called
	Start(ctx context.Context) error

	// Stop gracefully stops the refresh loop
	Stop() error
}

// defaultCoordinator is the default implementation of Coordinator
type defaultCoordinator struct {
	manager  pkgsync.Manager
	interval time.Duration
	jitter   time.Duration

	// Lifecycle management
	mu         sync.Mutex
	cancelFunc context.CancelFunc
	done       chan struct{}

	syncMetrics *telemetry.SyncMetrics
}

// Option is a function that configures the coordinator
type Option func(*defaultCoordinator)

// WithSyncMetrics sets the sync metrics for the coordinator
func WithSyncMetrics(metrics *telemetry.SyncMetrics) Option {
	return func(c *defaultCoordinator) {
		c.syncMetrics = metrics
	}
}

// WithJitter sets the maximum random offset applied to every interval. Zero disables it.
func WithJitter(d time.Duration) Option {
	return func(c *defaultCoordinator) {
		c.jitter = d
	}
}

// New creates a coordinator that calls manager.PerformSync every interval
func New(manager pkgsync.Manager, interval time.Duration, opts ...Option) Coordinator {
	c := &defaultCoordinator{
		manager:  manager,
		interval: interval,
		jitter:   defaultJitter,
		done:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// nextInterval returns the refresh interval with a random jitter applied
func (c *defaultCoordinator) nextInterval() time.Duration {
	if c.jitter <= 0 {
		return c.interval
	}
	//nolint:gosec // G404: Non-cryptographic randomness is sufficient for polling jitter
	offset := time.Duration(rand.Int64N(int64(2*c.jitter))) - c.jitter
	if next := c.interval + offset; next > 0 {
		return next
	}
	return c.interval
}

// Start runs the refresh loop. The list loaded at startup counts as the first refresh.
func (c *defaultCoordinator) Start(ctx context.Context) error {
	coordCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancelFunc = cancel
	c.mu.Unlock()
	defer func() {
		cancel()
		close(c.done)
		slog.Info("Providers refresh coordinator shut down")
	}()

	interval := c.nextInterval()
	slog.Info("Starting providers refresh coordinator",
		"base_interval", c.interval,
		"actual_interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.performSync(coordCtx)

			// Recalculate interval with new jitter for next iteration
			ticker.Reset(c.nextInterval())
		case <-coordCtx.Done():
			return nil
		}
	}
}

// Stop cancels the loop and waits for it to return. It is a no-op before Start.
func (c *defaultCoordinator) Stop() error {
	c.mu.Lock()
	cancel := c.cancelFunc
	c.mu.Unlock()

	if cancel != nil {
		slog.Info("Stopping providers refresh coordinator")
		cancel()
		<-c.done
	}
	return nil
}

func (c *defaultCoordinator) performSync(ctx context.Context) {
	startTime := time.Now()
	result, syncErr := c.manager.PerformSync(ctx)
	syncDuration := time.Since(startTime)

	if syncErr != nil {
		slog.Error("Providers refresh failed, keeping the current list", "error", syncErr.Message)
		c.syncMetrics.RecordSyncDuration(ctx, syncSource, syncDuration, false)
		return
	}

	hashPreview := result.Hash
	if len(hashPreview) > 8 {
		hashPreview = hashPreview[:8]
	}
	slog.Info("Providers refresh completed",
		"changed", result.Changed,
		"provider_count", result.ProviderCount,
		"hash", hashPreview)

	c.syncMetrics.RecordSyncDuration(ctx, syncSource, syncDuration, true)
	c.syncMetrics.RecordProviders(ctx, result.ProviderCount)
}
