package telemetry

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/stacklok/optimade-server/internal/versions"
)

// Label values for requests outside the versioned OPTIMADE endpoints
const (
	unknownRoute       = "unknown_route"
	baseURLUnversioned = "unversioned"
	baseURLUnsupported = "unsupported"
	endpointOther      = "other"

	// EndpointUnsupportedVersion labels requests answered with 553
	EndpointUnsupportedVersion = "unsupported_version"
)

// optimadeEndpoints are the endpoints an index meta-database serves under every base URL
var optimadeEndpoints = map[string]struct{}{
	"info":     {},
	"links":    {},
	"versions": {},
}

// Route describes a routed request in OPTIMADE terms
type Route struct {
	// Pattern is the full chi route pattern, "/v1/links/{id}"
	Pattern string

	// Path is the pattern below the versioned base URL, "/links/{id}"
	Path string

	// BaseURL is the versioned prefix the request was served under: "/v1", "/v1.2", "/v1.2.0",
	// "unversioned" or "unsupported"
	BaseURL string

	// Endpoint is "info", "links", "versions", "unsupported_version" or "other"
	Endpoint string
}

// RouteOf describes r once chi has routed it. Unmatched requests keep a constant pattern
// so that metric cardinality stays bounded.
func RouteOf(r *http.Request) Route {
	pattern := unknownRoute
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
		pattern = rctx.RoutePattern()
	}

	if strings.HasPrefix(pattern, "/{version") {
		return Route{Pattern: pattern, Path: pattern, BaseURL: baseURLUnsupported, Endpoint: EndpointUnsupportedVersion}
	}

	route := Route{Pattern: pattern, Path: pattern, BaseURL: baseURLUnversioned}
	for _, prefix := range versions.APIPrefixes().All() {
		rest, ok := strings.CutPrefix(pattern, prefix)
		if !ok || (rest != "" && rest[0] != '/') {
			continue
		}
		route.BaseURL = prefix
		route.Path = rest
		if route.Path == "" {
			route.Path = "/"
		}
		break
	}

	route.Endpoint = endpointOther
	segment, _, _ := strings.Cut(strings.TrimPrefix(route.Path, "/"), "/")
	if _, ok := optimadeEndpoints[segment]; ok {
		route.Endpoint = segment
	}
	return route
}
