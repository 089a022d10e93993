package main

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

const testConfigTemplate = `
server:
  listen: %q
logging:
  level: error
  format: json
  output: stderr
upstream:
  kind: hostes
  base_url: %q
  login: manager
  password: secret
stats:
  timezone: UTC
  max_attempts: 1
health:
  probe:
    enabled: false
`

func writeTestConfig(t *testing.T, listen, baseURL string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wrf.yaml")
	body := fmt.Sprintf(testConfigTemplate, listen, baseURL)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// startHostes serves the hostes login and filter endpoints with a fixed
// guest count and counts filter calls.
func startHostes(t *testing.T, guests int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var filters atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"access_token":"tok"}}`))
	})
	mux.HandleFunc("POST /api/internal/v2/booking/filter", func(w http.ResponseWriter, _ *http.Request) {
		filters.Add(1)
		_, _ = fmt.Fprintf(w, `{"data":{"statistics":{"all":{"guests":%d}}}}`, guests)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &filters
}
