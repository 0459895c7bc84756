package index

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/optimade-server/internal/otel"
	"github.com/stacklok/optimade-server/internal/queryparams"
	"github.com/stacklok/optimade-server/internal/versions"
)

// Warning titles not produced by the name classifier
const (
	warningAPIHintNotSupported = "APIHintNotSupported"
)

// checkParams validates the query parameter names of r against params. Notices become
// warnings. When a name is rejected the 400 response is written and ok is false.
func (rt *Routes) checkParams(
	w http.ResponseWriter,
	r *http.Request,
	endpoint string,
	params *queryparams.ParamSet,
) (warnings []Warning, ok bool) {
	names := queryparams.Names(r.URL.Query())

	ctx, span := otel.StartSpan(r.Context(), rt.tracer, "queryparams.Check",
		trace.WithAttributes(
			otel.AttrEndpoint.String(endpoint),
			otel.AttrParamKind.String(string(params.Kind())),
			otel.AttrParamCount.Int(len(names)),
		))
	defer span.End()

	ignored := 0
	sink := queryparams.NoticeFunc(func(n queryparams.Notice) {
		ignored += len(n.Params)
		slog.WarnContext(ctx, n.Message(),
			"endpoint", endpoint,
			"kind", string(n.Kind),
			"params", n.Params,
		)
		rt.metrics.RecordNotice(ctx, endpoint, string(n.Kind), len(n.Params))
		warnings = append(warnings, Warning{
			Type:   "warning",
			Title:  string(n.Kind),
			Detail: n.Message(),
		})
	})

	err := rt.classifier.Check(names, params, sink)
	span.SetAttributes(otel.AttrIgnoredCount.Int(ignored))
	if err == nil {
		return warnings, true
	}

	var invalid *queryparams.InvalidParameterError
	if errors.As(err, &invalid) {
		span.SetAttributes(otel.AttrInvalidCount.Int(len(invalid.Params)))
	}
	otel.RecordError(span, err)
	rt.metrics.RecordRejection(ctx, endpoint)
	slog.DebugContext(ctx, "Rejected request", "endpoint", endpoint, "error", err)

	rt.writeError(w, r, http.StatusBadRequest, err.Error(), warnings)
	return warnings, false
}

// checkCommon validates response_format and api_hint, which every endpoint shares.
// An api_hint this server cannot honour is reported as a warning and otherwise ignored.
func (rt *Routes) checkCommon(
	w http.ResponseWriter,
	r *http.Request,
	responseFormat, apiHint string,
	warnings *[]Warning,
) bool {
	if responseFormat != "json" {
		rt.writeError(w, r, http.StatusBadRequest,
			fmt.Sprintf("Response format %s is not supported, please use response_format='json'", responseFormat),
			*warnings)
		return false
	}

	satisfied, err := versions.HintSatisfied(apiHint, versions.APIVersion)
	if err != nil || !satisfied {
		*warnings = append(*warnings, Warning{
			Type:   "warning",
			Title:  warningAPIHintNotSupported,
			Detail: fmt.Sprintf("api_hint %s cannot be honoured, serving API version %s", apiHint, versions.APIVersion),
		})
	}
	return true
}
