// Package app provides application lifecycle management for the OPTIMADE index server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stacklok/optimade-server/internal/config"
)

// errShuttingDown is reported by the readiness check once Stop has been called
var errShuttingDown = errors.New("server is shutting down")

// OptimadeApp encapsulates all components needed to run the index server.
// It provides lifecycle management and graceful shutdown capabilities.
type OptimadeApp struct {
	config     *config.Config
	components *AppComponents
	httpServer *http.Server

	mu       sync.Mutex
	listener net.Listener
	stopping atomic.Bool

	ctx        context.Context
	cancelFunc context.CancelFunc
}

// Start listens on the configured address and serves requests.
// It blocks until the HTTP server stops or encounters an error.
func (app *OptimadeApp) Start() error {
	ln, err := net.Listen("tcp", app.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", app.httpServer.Addr, err)
	}

	app.mu.Lock()
	app.listener = ln
	app.mu.Unlock()

	if syncCoordinator := app.components.SyncCoordinator; syncCoordinator != nil {
		go func() {
			if err := syncCoordinator.Start(app.ctx); err != nil {
				slog.Error("Providers refresh coordinator failed", "error", err)
			}
		}()
	}

	slog.Info("Server listening", "address", ln.Addr().String())
	if err := app.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}

// Stop gracefully stops the application with the given timeout.
// It stops the providers refresh, shuts down the HTTP server and then flushes telemetry.
func (app *OptimadeApp) Stop(timeout time.Duration) error {
	slog.Info("Shutting down server...")
	app.stopping.Store(true)

	if syncCoordinator := app.components.SyncCoordinator; syncCoordinator != nil {
		if err := syncCoordinator.Stop(); err != nil {
			slog.Error("Failed to stop providers refresh coordinator", "error", err)
		}
	}

	if app.cancelFunc != nil {
		app.cancelFunc()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server forced to shutdown: %w", err))
	}
	if tel := app.components.Telemetry; tel != nil {
		if err := tel.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}

	slog.Info("Server shutdown complete")
	return nil
}

// Addr returns the address the server listens on, or nil before Start
func (app *OptimadeApp) Addr() net.Addr {
	app.mu.Lock()
	defer app.mu.Unlock()
	if app.listener == nil {
		return nil
	}
	return app.listener.Addr()
}

// GetConfig returns the application configuration
func (app *OptimadeApp) GetConfig() *config.Config {
	return app.config
}

// GetHTTPServer returns the HTTP server
func (app *OptimadeApp) GetHTTPServer() *http.Server {
	return app.httpServer
}

// Components returns the wired application components
func (app *OptimadeApp) Components() *AppComponents {
	return app.components
}

func (app *OptimadeApp) ready(_ context.Context) error {
	if app.stopping.Load() {
		return errShuttingDown
	}
	return nil
}
