package admin

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/getmockd/mimic/pkg/httputil"
	"github.com/getmockd/mimic/pkg/requestlog"
)

// LogListResponse is returned by GET /_admin/logs.
type LogListResponse struct {
	Entries  []requestlog.Entry `json:"entries"`
	Count    int                `json:"count"`
	Total    int                `json:"total"`
	Capacity int                `json:"capacity"`
}

// logFilter builds a filter from query parameters.
func logFilter(r *http.Request) *requestlog.Filter {
	q := r.URL.Query()
	f := &requestlog.Filter{
		Outcome: requestlog.Outcome(strings.ToUpper(q.Get("outcome"))),
		MockID:  q.Get("mockId"),
		Origin:  requestlog.Origin(strings.ToLower(q.Get("origin"))),
		Method:  strings.ToUpper(q.Get("method")),
	}
	if n, ok := parsePositiveInt(q.Get("limit")); ok {
		f.Limit = n
	}
	return f
}

// handleListLogs handles GET /_admin/logs. Entries are newest first.
func (a *API) handleListLogs(w http.ResponseWriter, r *http.Request) {
	entries := a.traffic.List(logFilter(r))
	if entries == nil {
		entries = []requestlog.Entry{}
	}
	httputil.WriteOK(w, LogListResponse{
		Entries:  entries,
		Count:    len(entries),
		Total:    a.traffic.Count(),
		Capacity: a.traffic.Capacity(),
	})
}

// handleGetLog handles GET /_admin/logs/{id}.
func (a *API) handleGetLog(w http.ResponseWriter, r *http.Request) {
	entry, ok := a.traffic.Get(r.PathValue("id"))
	if !ok {
		httputil.WriteNotFound(w, "Log entry not found")
		return
	}
	httputil.WriteOK(w, entry)
}

// handleStreamLogs handles GET /_admin/logs/stream as server-sent events.
// Each new entry is sent as a "request" event. Filters from the query
// string apply except limit.
func (a *API) handleStreamLogs(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteError(w, http.StatusInternalServerError, httputil.ErrInternal, "Streaming not supported")
		return
	}

	filter := logFilter(r)
	filter.Limit = 0

	// The server's WriteTimeout would cut the stream off.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	sub, unsubscribe := a.traffic.Subscribe()
	defer unsubscribe()

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// Send initial connection message
	_, _ = fmt.Fprint(w, "event: connected\ndata: {\"message\":\"Connected to log stream\"}\n\n")
	flusher.Flush()

	ticker := time.NewTicker(a.heartbeat)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.closing:
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case entry, ok := <-sub:
			if !ok {
				return
			}
			if !filter.Matches(&entry) {
				continue
			}
			data, err := json.Marshal(entry)
			if err != nil {
				a.log.Warn("failed to encode log entry", "id", entry.ID, "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %s\nevent: request\ndata: %s\n\n", entry.ID, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
