// Package coordinator runs the periodic providers list refresh of a running server.
//
// The coordinator sits on top of sync.Manager and only handles scheduling:
//
//   - a time.Ticker at the configured interval, with random jitter
//   - refresh metrics through telemetry.SyncMetrics
//   - graceful shutdown
//
// # Usage Example
//
//	manager := sync.NewProvidersManager(ctx, registry,
//	    sync.WithRemote(cfg.ProvidersURL, client),
//	    sync.WithClassifier(classifier),
//	)
//	c := coordinator.New(manager, cfg.RefreshInterval())
//
//	go func() {
//	    if err := c.Start(ctx); err != nil {
//	        slog.Error("Providers refresh coordinator failed", "error", err)
//	    }
//	}()
//	defer c.Stop()
//
// A failed refresh is logged and recorded; the next tick tries again.
package coordinator
