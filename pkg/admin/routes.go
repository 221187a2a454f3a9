// Route registration for the Admin API.

package admin

import (
	"net/http"

	"github.com/getmockd/mimic/pkg/httputil"
)

// registerRoutes sets up all API routes.
func (a *API) registerRoutes(mux *http.ServeMux) {
	// Health check and metrics
	mux.HandleFunc("GET "+Prefix+"/health", a.handleHealth)
	if a.metrics != nil {
		mux.Handle("GET "+Prefix+"/metrics", a.metrics.Handler())
	}

	// Mocks
	mux.HandleFunc("GET "+Prefix+"/mocks", a.handleListMocks)
	mux.HandleFunc("POST "+Prefix+"/mocks", a.handleCreateMock)
	mux.HandleFunc("GET "+Prefix+"/mocks/{id}", a.handleGetMock)
	mux.HandleFunc("PUT "+Prefix+"/mocks/{id}", a.handleUpdateMock)
	mux.HandleFunc("DELETE "+Prefix+"/mocks/{id}", a.handleDeleteMock)

	// Simulation
	mux.HandleFunc("GET "+Prefix+"/mocks/{id}/test", a.handleTestMock)
	mux.HandleFunc("POST "+Prefix+"/mocks/{id}/test", a.handleTestMock)

	// Import/export
	mux.HandleFunc("GET "+Prefix+"/export", a.handleExport)
	mux.HandleFunc("POST "+Prefix+"/import", a.handleImport)

	// Request logging
	mux.HandleFunc("GET "+Prefix+"/logs", a.handleListLogs)
	mux.HandleFunc("GET "+Prefix+"/logs/stream", a.handleStreamLogs)
	mux.HandleFunc("GET "+Prefix+"/logs/{id}", a.handleGetLog)

	mux.HandleFunc(Prefix+"/", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteNotFound(w, "Unknown admin endpoint: "+r.Method+" "+r.URL.Path)
	})
}
