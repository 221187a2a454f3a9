package engine

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/getmockd/mimic/pkg/httputil"
	"github.com/getmockd/mimic/pkg/logging"
	"github.com/getmockd/mimic/pkg/requestlog"
)

// MaxRequestBodySize is the largest request body accepted (10MB).
const MaxRequestBodySize = 10 << 20

// Handler serves mocked traffic.
type Handler struct {
	composer *Composer
	log      *slog.Logger
}

// NewHandler creates a Handler backed by composer.
func NewHandler(composer *Composer) *Handler {
	return &Handler{
		composer: composer,
		log:      logging.Nop(),
	}
}

// SetLogger sets the operational logger for the handler.
func (h *Handler) SetLogger(log *slog.Logger) {
	if log != nil {
		h.log = log
	} else {
		h.log = logging.Nop()
	}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if p := recover(); p != nil {
			h.log.Error("panic while handling request", "method", r.Method, "path", r.URL.Path, "panic", p)
			httputil.WriteInternalError(w)
		}
	}()

	// MaxBytesReader fails the read instead of silently truncating.
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.log.Warn("request body too large", "path", r.URL.Path, "limit", MaxRequestBodySize)
			httputil.WriteError(w, http.StatusRequestEntityTooLarge, httputil.ErrBodyTooLarge,
				"Request body exceeds maximum allowed size")
			return
		}
		h.log.Warn("failed to read request body", "path", r.URL.Path, "error", err)
	}

	out := h.composer.Compose(r.Context(), &Request{
		Method:     r.Method,
		Path:       r.URL.Path,
		Query:      r.URL.Query(),
		RawQuery:   r.URL.RawQuery,
		Headers:    r.Header,
		Body:       body,
		RemoteAddr: r.RemoteAddr,
		Origin:     requestlog.OriginTraffic,
	})

	// The client went away during the latency wait.
	if r.Context().Err() != nil {
		h.log.Debug("client disconnected", "method", r.Method, "path", r.URL.Path)
		return
	}

	h.log.Debug("request handled",
		"method", r.Method,
		"path", r.URL.Path,
		"outcome", out.Outcome,
		"mockId", out.MockID,
		"status", out.Status,
	)
	writeComposed(w, r, out)
}

func writeComposed(w http.ResponseWriter, r *http.Request, out *Composed) {
	hdr := w.Header()
	for _, h := range out.Headers {
		hdr.Add(h.Key, h.Value)
	}
	// Keep net/http from sniffing a content type the definition did not ask for.
	if hdr.Get("Content-Type") == "" {
		hdr["Content-Type"] = nil
	}
	w.WriteHeader(out.Status)
	if r.Method == http.MethodHead || len(out.Body) == 0 || !bodyAllowed(out.Status) {
		return
	}
	_, _ = w.Write(out.Body)
}

func bodyAllowed(status int) bool {
	switch {
	case status >= 100 && status < 200:
		return false
	case status == http.StatusNoContent, status == http.StatusNotModified:
		return false
	}
	return true
}
