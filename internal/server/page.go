package server

import (
	_ "embed"
	"net/http"
)

//go:embed page.html
var dashboardPage []byte

// PageHandler serves the auto-refreshing dashboard page.
func PageHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = w.Write(dashboardPage)
	})
}
