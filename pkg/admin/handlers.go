package admin

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/getmockd/mimic/pkg/httputil"
)

// HealthResponse is returned by GET /_admin/health.
type HealthResponse struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	Uptime     int64  `json:"uptime"`
	Mocks      int    `json:"mocks"`
	LogEntries int    `json:"logEntries"`
}

// handleHealth handles GET /_admin/health.
func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteOK(w, HealthResponse{
		Status:     "ok",
		Version:    a.version,
		Uptime:     int64(a.Uptime().Seconds()),
		Mocks:      a.registry.Count(),
		LogEntries: a.traffic.Count(),
	})
}

// readBody reads a request body up to MaxBodySize.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodySize))
}

// decodeJSON strictly decodes the request body into v. It writes the error
// response itself and reports whether decoding succeeded.
func (a *API) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	body, err := readBody(w, r)
	if err != nil {
		a.writeDomainError(w, err, "read body")
		return false
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		msg := ErrMsgInvalidJSON
		if !errors.Is(err, io.EOF) {
			msg += ": " + err.Error()
		}
		httputil.WriteError(w, http.StatusBadRequest, httputil.ErrInvalidJSON, msg)
		return false
	}
	if dec.More() {
		httputil.WriteError(w, http.StatusBadRequest, httputil.ErrInvalidJSON, ErrMsgInvalidJSON+": unexpected data after object")
		return false
	}
	return true
}

// parsePositiveInt returns a parsed int only when the value is a valid positive integer.
func parsePositiveInt(v string) (int, bool) {
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
