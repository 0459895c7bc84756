package common

import (
	"context"
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requestWithParam(name, value string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/links/x", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(name, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestGetAndValidateURLParam(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		value      string
		wantValue  string
		wantErrMsg string
	}{
		{name: "plain id", value: "mp", wantValue: "mp"},
		{name: "id with dots and dashes", value: "index.v1-main_db", wantValue: "index.v1-main_db"},
		{name: "encoded slash", value: "a%2Fb", wantValue: "a/b"},
		{name: "empty", value: "", wantErrMsg: "id cannot be empty"},
		{name: "encoded whitespace only", value: "%20%20", wantErrMsg: "id cannot be empty"},
		{name: "inner whitespace", value: "a%20b", wantErrMsg: "id cannot contain whitespace"},
		{name: "bad encoding", value: "%zz", wantErrMsg: "invalid URL encoding in id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := GetAndValidateURLParam(requestWithParam("id", tt.value), "id")
			if tt.wantErrMsg != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantErrMsg, err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantValue, got)
		})
	}
}

func TestRequestBaseURL(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "http://db.example.org/v1/links", nil)
	assert.Equal(t, "https://public.example.org", RequestBaseURL(req, "https://public.example.org/"))
	assert.Equal(t, "http://db.example.org", RequestBaseURL(req, ""))

	req.Header.Set("X-Forwarded-Proto", "https")
	assert.Equal(t, "https://db.example.org", RequestBaseURL(req, ""))

	req = httptest.NewRequest(http.MethodGet, "http://db.example.org/v1/links", nil)
	req.TLS = &tls.ConnectionState{}
	assert.Equal(t, "https://db.example.org", RequestBaseURL(req, ""))
}
