// Error mapping for the admin API. Domain errors become the structured
// error body; anything unexpected is logged and reported generically.

package admin

import (
	"errors"
	"net/http"

	"github.com/getmockd/mimic/pkg/httputil"
	"github.com/getmockd/mimic/pkg/mock"
	"github.com/getmockd/mimic/pkg/portability"
	"github.com/getmockd/mimic/pkg/registry"
)

// Safe error messages for client responses.
const (
	ErrMsgInvalidJSON  = "Invalid JSON in request body"
	ErrMsgNotFound     = "Mock not found"
	ErrMsgBodyTooLarge = "Request body exceeds maximum allowed size"
)

// writeDomainError maps err onto an HTTP error response.
func (a *API) writeDomainError(w http.ResponseWriter, err error, operation string, details ...any) {
	var verr *mock.ValidationError
	var ife *portability.ImportFormatError
	var maxErr *http.MaxBytesError

	switch {
	case errors.As(err, &ife):
		msg := ife.Message
		if ife.Index >= 0 {
			msg = ife.Error()
		}
		httputil.WriteFieldError(w, http.StatusBadRequest, httputil.ErrImportFormat, ife.Field, msg)
	case errors.As(err, &verr):
		httputil.WriteFieldError(w, http.StatusBadRequest, httputil.ErrValidation, verr.Field, verr.Message)
	case errors.Is(err, registry.ErrNotFound):
		httputil.WriteNotFound(w, ErrMsgNotFound)
	case errors.As(err, &maxErr):
		httputil.WriteError(w, http.StatusRequestEntityTooLarge, httputil.ErrBodyTooLarge, ErrMsgBodyTooLarge)
	default:
		// Log full error details server-side
		args := append([]any{"operation", operation, "error", err}, details...)
		a.log.Error("operation failed", args...)
		httputil.WriteInternalError(w)
	}
}
