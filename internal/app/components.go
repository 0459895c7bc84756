package app

import (
	"github.com/stacklok/optimade-server/internal/links"
	"github.com/stacklok/optimade-server/internal/providers"
	"github.com/stacklok/optimade-server/internal/queryparams"
	pkgsync "github.com/stacklok/optimade-server/internal/sync"
	"github.com/stacklok/optimade-server/internal/sync/coordinator"
	"github.com/stacklok/optimade-server/internal/telemetry"
)

// AppComponents groups all application components
//
//nolint:revive // This name is fine
type AppComponents struct {
	// Sync owns the current provider registry
	Sync *pkgsync.ProvidersManager

	// SyncCoordinator refreshes the providers list. Nil when refresh is disabled.
	SyncCoordinator coordinator.Coordinator

	// Links serves the /links endpoint
	Links links.Store

	// Classifier validates query parameter names on every request
	Classifier *queryparams.Classifier

	// Telemetry owns the tracer and meter providers
	Telemetry *telemetry.Telemetry
}

// Providers returns the supported and known provider prefixes currently in use
func (c *AppComponents) Providers() *providers.Registry {
	return c.Sync.Registry()
}
