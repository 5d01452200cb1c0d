package cli

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/pipeline/pkg/config"
	"github.com/getmockd/pipeline/pkg/logging"
)

func resetSettings(t *testing.T) {
	t.Helper()
	old := settings
	t.Cleanup(func() { settings = old })
	settings.manifest = nil
	settings.Collection = ""
	settings.IDField = ""
	settings.log = logging.Nop()
}

func post(t *testing.T, h http.Handler, path, body string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestBuildServer_Backends(t *testing.T) {
	tests := []struct {
		name    string
		backend string
		data    func(t *testing.T) string
	}{
		{"memory", BackendMemory, func(*testing.T) string { return "" }},
		{"file", BackendFile, func(t *testing.T) string { return t.TempDir() }},
		{"sqlite", BackendSQLite, func(t *testing.T) string { return filepath.Join(t.TempDir(), "p.db") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetSettings(t)
			opts := serveOptions{Backend: tt.backend, Data: tt.data(t), Collections: []string{"users", "orders"}}

			h, closeFn, err := buildServer(context.Background(), opts, logging.Nop())
			require.NoError(t, err)
			assert.Equal(t, http.StatusCreated, post(t, h, "/users", `{"name":"Alice"}`))
			assert.Equal(t, http.StatusOK, get(t, h, "/orders").Code)
			require.NoError(t, closeFn())

			if tt.backend == BackendMemory {
				return
			}
			h, closeFn, err = buildServer(context.Background(), opts, logging.Nop())
			require.NoError(t, err)
			defer func() { _ = closeFn() }()
			rec := get(t, h, "/users")
			assert.Contains(t, rec.Body.String(), "Alice", "records survive a restart")
		})
	}
}

func TestBuildServer_Errors(t *testing.T) {
	resetSettings(t)

	_, _, err := buildServer(context.Background(), serveOptions{}, logging.Nop())
	assert.ErrorIs(t, err, ErrNoCollection)

	_, _, err = buildServer(context.Background(), serveOptions{Backend: "redis", Collections: []string{"users"}}, logging.Nop())
	assert.ErrorContains(t, err, "unknown store backend")

	_, _, err = buildServer(context.Background(), serveOptions{Backend: BackendFile, Collections: []string{"users"}}, logging.Nop())
	assert.ErrorContains(t, err, "--data")
}

func TestBuildServer_ManifestAndMetrics(t *testing.T) {
	resetSettings(t)
	m, err := config.ParseYAML([]byte(`
collections:
  - name: users
    identityField: userId
    schema: '{"type":"object","required":["name"]}'
`))
	require.NoError(t, err)
	settings.manifest = m

	h, closeFn, err := buildServer(context.Background(), serveOptions{Metrics: true}, logging.Nop())
	require.NoError(t, err)
	defer func() { _ = closeFn() }()

	assert.Equal(t, http.StatusBadRequest, post(t, h, "/users", `{"age":3}`), "schema from the manifest applies")
	assert.Equal(t, http.StatusCreated, post(t, h, "/users", `{"name":"Alice"}`))

	rec := get(t, h, "/")
	assert.Contains(t, rec.Body.String(), `"identityField":"userId"`)

	rec = get(t, h, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `pipeline_store_records{collection="users"} 1`)
}

func TestBuildServer_GeneratorAndRateLimit(t *testing.T) {
	resetSettings(t)
	m, err := config.ParseYAML([]byte(`
collections:
  - name: events
    generator: ulid
`))
	require.NoError(t, err)
	settings.manifest = m

	h, closeFn, err := buildServer(context.Background(), serveOptions{RateLimit: 1}, logging.Nop())
	require.NoError(t, err)
	defer func() { _ = closeFn() }()

	req := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(`{"kind":"login"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var saved map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &saved))
	assert.Len(t, saved["id"], 26, "ulid identities are 26 characters")

	assert.Equal(t, http.StatusTooManyRequests, get(t, h, "/events").Code)
}
