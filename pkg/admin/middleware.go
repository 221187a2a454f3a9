package admin

import (
	"net/http"

	"github.com/getmockd/mimic/pkg/httputil"
)

// recoverer turns a handler panic into a 500 response.
func (a *API) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				a.log.Error("panic in admin handler", "method", r.Method, "path", r.URL.Path, "panic", p)
				httputil.WriteInternalError(w)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
