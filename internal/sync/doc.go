// Package sync keeps the registered providers list of a running server current.
//
// The Manager interface performs one refresh: fetch the list, compare its hash with
// the list applied last and, when it changed, apply it. ProvidersManager is the
// implementation used by the server. Applying a registry updates:
//
//   - the known provider prefixes of the query parameter classifier
//   - the provider links served by /links, when provider links are enabled
//
// A failed fetch returns an *Error and leaves the previous registry in place.
//
// The sync/coordinator subpackage schedules PerformSync on a ticker.
package sync
