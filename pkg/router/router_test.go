package router

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func respond(body string) HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, body)
	}
}

func do(t *testing.T, r *Router, method, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	return rec.Code, string(body)
}

func TestRouter_ExactAndWildcardOrder(t *testing.T) {
	r := New()
	r.GET("/api/v1/runs", respond("list"))
	r.GET("/api/v1/runs/*/errors", respond("errors"))
	r.GET("/api/v1/runs/*", respond("run"))
	r.DELETE("/api/v1/runs/*", respond("cancel"))

	for i := 0; i < 20; i++ {
		code, body := do(t, r, http.MethodGet, "/api/v1/runs/abc/errors")
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "errors", body)
	}

	_, body := do(t, r, http.MethodGet, "/api/v1/runs")
	assert.Equal(t, "list", body)
	_, body = do(t, r, http.MethodGet, "/api/v1/runs/abc")
	assert.Equal(t, "run", body)
	_, body = do(t, r, http.MethodDelete, "/api/v1/runs/abc")
	assert.Equal(t, "cancel", body)
}

func TestRouter_NotFoundAndMethodNotAllowed(t *testing.T) {
	r := New()
	r.POST("/api/v1/runs", respond("created"))
	r.GET("/api/v1/runs/*/result", respond("result"))

	code, _ := do(t, r, http.MethodGet, "/api/v1/runs")
	assert.Equal(t, http.StatusMethodNotAllowed, code)
	code, _ = do(t, r, http.MethodPost, "/api/v1/runs/abc/result")
	assert.Equal(t, http.StatusMethodNotAllowed, code)
	code, _ = do(t, r, http.MethodGet, "/nothing")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestRouter_Handle(t *testing.T) {
	r := New()
	r.Handle("/metrics", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	code, _ := do(t, r, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusTeapot, code)
}

func TestMatchWildcardRoute(t *testing.T) {
	tests := []struct {
		path, pattern string
		want          bool
	}{
		{"/api/v1/runs/abc", "/api/v1/runs/*", true},
		{"/api/v1/runs/abc/errors", "/api/v1/runs/*", true},
		{"/api/v1/runs/", "/api/v1/runs/*", false},
		{"/api/v1/runs/abc/errors", "/api/v1/runs/*/errors", true},
		{"/api/v1/runs/abc/result", "/api/v1/runs/*/errors", false},
		{"/api/v1/runs//errors", "/api/v1/runs/*/errors", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchWildcardRoute(tt.path, tt.pattern), "%s ~ %s", tt.path, tt.pattern)
	}
}

func TestRouter_RegisteredRoutes(t *testing.T) {
	r := New()
	r.GET("/a", respond("a"))
	r.POST("/a", respond("a"))
	assert.Len(t, r.Routes(), 2)
	assert.Len(t, r.Paths(), 1)
}
