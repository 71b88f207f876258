package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func named(name string) HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(name))
	}
}

func serve(r *Router, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestRouter_Specificity(t *testing.T) {
	r := New(nil)
	r.GET("/api/v1/runs", named("list"))
	r.GET("/api/v1/runs/*", named("get"))
	r.GET("/api/v1/runs/*/csv", named("csv"))
	r.POST("/api/v1/runs/*/retry", named("retry"))
	r.POST("/api/v1/reports/*", named("report"))

	tests := []struct {
		method, path, want string
		status             int
	}{
		{http.MethodGet, "/api/v1/runs", "list", http.StatusOK},
		{http.MethodGet, "/api/v1/runs/abc", "get", http.StatusOK},
		{http.MethodGet, "/api/v1/runs/abc/csv", "csv", http.StatusOK},
		{http.MethodPost, "/api/v1/runs/abc/retry", "retry", http.StatusOK},
		{http.MethodPost, "/api/v1/reports/returns", "report", http.StatusOK},
		{http.MethodGet, "/api/v1/runs/abc/retry", "get", http.StatusOK},
		{http.MethodDelete, "/api/v1/runs", "", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/v2/runs", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := serve(r, tt.method, tt.path)
			assert.Equal(t, tt.status, rec.Code)
			if tt.want != "" {
				assert.Equal(t, tt.want, rec.Body.String())
			}
		})
	}
}

func TestMatchWildcardRoute(t *testing.T) {
	assert.True(t, matchWildcardRoute("/a/b/c", "/a/*/c"))
	assert.False(t, matchWildcardRoute("/a//c", "/a/*/c"))
	assert.False(t, matchWildcardRoute("/a/b", "/a/*/c"))
	assert.True(t, matchWildcardRoute("/a/b/c/d", "/a/*"))
	assert.True(t, matchWildcardRoute("/a", "/a/*"))
	assert.False(t, matchWildcardRoute("/b/c", "/a/*"))
}

func TestSegment(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/run-1/csv", nil)
	assert.Equal(t, "run-1", Segment(req, 3))
	assert.Equal(t, "csv", Segment(req, 4))
	assert.Equal(t, "", Segment(req, 5))
	assert.Equal(t, "", Segment(req, -1))
}

func TestMount(t *testing.T) {
	r := New(nil)
	r.GET("/api/v1/runs", named("list"))
	r.Mount("/metrics", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte("metrics"))
	}))

	assert.Equal(t, "metrics", serve(r, http.MethodGet, "/metrics").Body.String())
	assert.Equal(t, "list", serve(r, http.MethodGet, "/api/v1/runs").Body.String())
	assert.Len(t, r.Routes(), 1)
	assert.True(t, r.Paths()["/api/v1/runs"])
}
