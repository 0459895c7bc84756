// Package index provides the OPTIMADE index meta-database endpoints: info, links and versions.
package index

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/optimade-server/internal/api/common"
	"github.com/stacklok/optimade-server/internal/links"
	"github.com/stacklok/optimade-server/internal/otel"
	"github.com/stacklok/optimade-server/internal/queryparams"
	"github.com/stacklok/optimade-server/internal/telemetry"
	"github.com/stacklok/optimade-server/internal/versions"
)

// ErrNotImplemented is returned for features this server does not offer
var ErrNotImplemented = errors.New("not implemented")

// Option configures Routes
type Option func(*Routes)

// WithPageLimits sets the default and the maximum page_limit
func WithPageLimits(defaultLimit, maxLimit int) Option {
	return func(rt *Routes) {
		rt.pageLimit = defaultLimit
		rt.pageLimitMax = maxLimit
	}
}

// WithProvider sets the provider reported in meta
func WithProvider(p ProviderMeta) Option {
	return func(rt *Routes) {
		rt.provider = p
	}
}

// WithBaseURL sets the public URL used in links and meta
func WithBaseURL(baseURL string) Option {
	return func(rt *Routes) {
		rt.baseURL = baseURL
	}
}

// WithQueryParamMetrics records the validation outcome of every request
func WithQueryParamMetrics(m *telemetry.QueryParamMetrics) Option {
	return func(rt *Routes) {
		rt.metrics = m
	}
}

// WithTracer traces query parameter validation
func WithTracer(tracer trace.Tracer) Option {
	return func(rt *Routes) {
		rt.tracer = tracer
	}
}

// Routes handles the index meta-database endpoints
type Routes struct {
	store        links.Store
	classifier   *queryparams.Classifier
	listing      *queryparams.ParamSet
	single       *queryparams.ParamSet
	pageLimit    int
	pageLimitMax int
	provider     ProviderMeta
	baseURL      string
	metrics      *telemetry.QueryParamMetrics
	tracer       trace.Tracer
}

// NewRoutes creates the index routes over store. classifier decides which query parameter
// names are accepted.
func NewRoutes(store links.Store, classifier *queryparams.Classifier, opts ...Option) *Routes {
	rt := &Routes{
		store:        store,
		classifier:   classifier,
		listing:      queryparams.EntryListingParams(),
		single:       queryparams.SingleEntryParams(),
		pageLimit:    20,
		pageLimitMax: 500,
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// Register adds the info and links endpoints to r. It is called once for the unversioned
// base URL and once per versioned prefix.
func (rt *Routes) Register(r chi.Router) {
	r.Get("/info", rt.getInfo)
	r.Get("/links", rt.listLinks)
	r.Get("/links/{id}", rt.getLink)
}

// VersionsHandler serves GET /versions, the major versions this server implements
func VersionsHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/csv; header=present")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "version\n%s\n", versions.APIPrefixes().Major[2:])
}

func (rt *Routes) getInfo(w http.ResponseWriter, r *http.Request) {
	warnings, ok := rt.checkParams(w, r, "info", rt.single)
	if !ok {
		return
	}
	q, err := queryparams.NewBinder(rt.single, rt.pageLimit).BindSingleEntry(r.URL.Query())
	if err != nil {
		rt.writeError(w, r, http.StatusBadRequest, err.Error(), warnings)
		return
	}
	if !rt.checkCommon(w, r, q.ResponseFormat, q.APIHint, &warnings) {
		return
	}

	base := common.RequestBaseURL(r, rt.baseURL)
	prefixes := versions.APIPrefixes()

	info := &Resource{
		ID:   "/",
		Type: "info",
		Attributes: map[string]any{
			"api_version": versions.APIVersion,
			"available_api_versions": []map[string]string{
				{"url": base + prefixes.Major + "/", "version": versions.APIVersion},
			},
			"formats":               []string{"json"},
			"entry_types_by_format": map[string][]string{"json": {}},
			"available_endpoints":   []string{"info", "links"},
			"is_index":              true,
		},
	}
	if id := rt.defaultChild(r); id != "" {
		info.Relationships = map[string]Relationship{
			"default": {Data: ResourceIdentifier{ID: id, Type: links.ResourceType}},
		}
	}
	info.Attributes = project(info.Attributes, q.ResponseFields)

	meta := rt.meta(r, warnings)
	meta.DataReturned = 1
	meta.DataAvailable = 1
	common.WriteResponse(w, MediaType, Document{Data: info, Meta: meta}, http.StatusOK)
}

func (rt *Routes) listLinks(w http.ResponseWriter, r *http.Request) {
	warnings, ok := rt.checkParams(w, r, "links", rt.listing)
	if !ok {
		return
	}
	q, err := queryparams.NewBinder(rt.listing, rt.pageLimit).BindEntryListing(r.URL.Query())
	if err != nil {
		rt.writeError(w, r, http.StatusBadRequest, err.Error(), warnings)
		return
	}
	if !rt.checkCommon(w, r, q.ResponseFormat, q.APIHint, &warnings) {
		return
	}

	switch {
	case q.Filter != "":
		rt.writeError(w, r, http.StatusNotImplemented,
			fmt.Errorf("filter: %w", ErrNotImplemented).Error(), warnings)
		return
	case q.Sort != "":
		rt.writeError(w, r, http.StatusNotImplemented,
			fmt.Errorf("sort: %w", ErrNotImplemented).Error(), warnings)
		return
	case q.PageLimit > rt.pageLimitMax:
		rt.writeError(w, r, http.StatusForbidden,
			fmt.Sprintf("Max allowed page_limit is %d, you requested %d", rt.pageLimitMax, q.PageLimit), warnings)
		return
	}

	offset := q.PageOffset
	if q.PageNumber != nil && offset == 0 {
		if *q.PageNumber < 1 {
			rt.writeError(w, r, http.StatusBadRequest, "page_number must be 1 or larger", warnings)
			return
		}
		offset = pageOffset(*q.PageNumber, q.PageLimit)
	}

	res, err := rt.store.List(r.Context(), links.ListOptions{Offset: offset, Limit: q.PageLimit})
	if err != nil {
		slog.Error("Failed to list links", "error", err)
		rt.writeError(w, r, http.StatusInternalServerError, "Failed to list links", warnings)
		return
	}

	data := make([]Resource, len(res.Links))
	for i := range res.Links {
		data[i] = linkResource(&res.Links[i], q.ResponseFields)
	}

	meta := rt.meta(r, warnings)
	meta.DataReturned = len(data)
	meta.DataAvailable = res.Available
	meta.MoreDataAvailable = res.More

	doc := Document{Data: data, Meta: meta, Links: &Links{}}
	// A zero page_limit only counts, following next would never advance
	if res.More && q.PageLimit > 0 {
		next := rt.nextURL(r, offset+q.PageLimit)
		doc.Links.Next = &next
	}
	common.WriteResponse(w, MediaType, doc, http.StatusOK)
}

// pageOffset converts a 1-based page number to an offset. Pages past the end saturate
// to math.MaxInt and come back empty.
func pageOffset(pageNumber, pageLimit int) int {
	if pageLimit == 0 {
		return 0
	}
	if pageNumber-1 > math.MaxInt/pageLimit {
		return math.MaxInt
	}
	return (pageNumber - 1) * pageLimit
}

func (rt *Routes) getLink(w http.ResponseWriter, r *http.Request) {
	warnings, ok := rt.checkParams(w, r, "links", rt.single)
	if !ok {
		return
	}
	q, err := queryparams.NewBinder(rt.single, rt.pageLimit).BindSingleEntry(r.URL.Query())
	if err != nil {
		rt.writeError(w, r, http.StatusBadRequest, err.Error(), warnings)
		return
	}
	if !rt.checkCommon(w, r, q.ResponseFormat, q.APIHint, &warnings) {
		return
	}

	id, err := common.GetAndValidateURLParam(r, "id")
	if err != nil {
		rt.writeError(w, r, http.StatusBadRequest, err.Error(), warnings)
		return
	}

	ctx, span := otel.StartSpan(r.Context(), rt.tracer, "links.Get",
		trace.WithAttributes(otel.AttrLinkID.String(id)))
	link, err := rt.store.Get(ctx, id)
	otel.RecordError(span, err)
	span.End()

	switch {
	case errors.Is(err, links.ErrLinkNotFound):
		rt.writeError(w, r, http.StatusNotFound, fmt.Sprintf("No link found with id %q", id), warnings)
		return
	case err != nil:
		slog.Error("Failed to get link", "id", id, "error", err)
		rt.writeError(w, r, http.StatusInternalServerError, "Failed to get link", warnings)
		return
	}

	res := linkResource(link, q.ResponseFields)
	meta := rt.meta(r, warnings)
	meta.DataReturned = 1
	meta.DataAvailable = 1
	common.WriteResponse(w, MediaType, Document{Data: &res, Meta: meta}, http.StatusOK)
}

// defaultChild returns the id of the first child link, the database clients land on
func (rt *Routes) defaultChild(r *http.Request) string {
	res, err := rt.store.List(r.Context(), links.ListOptions{Limit: rt.pageLimitMax})
	if err != nil {
		return ""
	}
	for _, l := range res.Links {
		if l.LinkType == links.LinkTypeChild {
			return l.ID
		}
	}
	return ""
}

func (rt *Routes) meta(r *http.Request, warnings []Warning) Meta {
	return Meta{
		Query:      QueryMeta{Representation: r.URL.RequestURI()},
		APIVersion: versions.APIVersion,
		TimeStamp:  time.Now().UTC().Format(time.RFC3339),
		Provider:   rt.provider,
		Implementation: &ImplementationMeta{
			Name:    "optimade-api",
			Version: versions.GetVersionInfo().Version,
		},
		Warnings: warnings,
	}
}

func (rt *Routes) writeError(w http.ResponseWriter, r *http.Request, status int, detail string, warnings []Warning) {
	writeErrorDocument(w, status, detail, rt.meta(r, warnings))
}

func writeErrorDocument(w http.ResponseWriter, status int, detail string, meta Meta) {
	doc := ErrorDocument{
		Errors: []ErrorObject{{
			Status: strconv.Itoa(status),
			Title:  http.StatusText(status),
			Detail: detail,
		}},
		Meta: meta,
	}
	common.WriteResponse(w, MediaType, doc, status)
}

func (rt *Routes) nextURL(r *http.Request, offset int) string {
	values := r.URL.Query()
	values.Del(queryparams.ParamPageNumber)
	values.Set(queryparams.ParamPageOffset, strconv.Itoa(offset))
	u := url.URL{Path: r.URL.Path, RawQuery: values.Encode()}
	return common.RequestBaseURL(r, rt.baseURL) + u.String()
}

func linkResource(l *links.Link, fields []string) Resource {
	return Resource{
		ID:         l.ID,
		Type:       links.ResourceType,
		Attributes: project(l.Attributes(), fields),
	}
}

// project keeps the requested attributes. A requested attribute that does not exist is
// returned as null. No fields means all attributes.
func project(attrs map[string]any, fields []string) map[string]any {
	if len(fields) == 0 {
		return attrs
	}
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if f == "id" || f == "type" {
			continue
		}
		out[f] = attrs[f]
	}
	return out
}

// NotFound writes a JSON:API 404 for unknown paths
func (rt *Routes) NotFound(w http.ResponseWriter, r *http.Request) {
	rt.writeError(w, r, http.StatusNotFound, fmt.Sprintf("Endpoint %s does not exist", r.URL.Path), nil)
}

// StatusVersionNotSupported is the OPTIMADE status for a versioned base URL the server does not serve
const StatusVersionNotSupported = 553

// VersionNotSupported answers requests to versioned base URLs other than the served ones
func (rt *Routes) VersionNotSupported(w http.ResponseWriter, r *http.Request) {
	doc := ErrorDocument{
		Errors: []ErrorObject{{
			Status: strconv.Itoa(StatusVersionNotSupported),
			Title:  "Version Not Supported",
			Detail: fmt.Sprintf("The parsed versioned base URL %q from %q is not supported by this implementation. "+
				"Supported versioned base URLs are: %v", "/"+chi.URLParam(r, "version"), r.URL.Path, versions.APIPrefixes().All()),
		}},
		Meta: rt.meta(r, nil),
	}
	common.WriteResponse(w, MediaType, doc, StatusVersionNotSupported)
}
