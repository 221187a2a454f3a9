package admin

import (
	"net/http"

	"github.com/getmockd/mimic/pkg/httputil"
	"github.com/getmockd/mimic/pkg/portability"
)

// ImportResponse is returned by a successful import.
type ImportResponse struct {
	Imported int `json:"imported"`
}

// handleExport handles GET /_admin/export[?format=yaml].
func (a *API) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := portability.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		httputil.WriteFieldError(w, http.StatusBadRequest, httputil.ErrValidation, "format", err.Error())
		return
	}

	data, err := a.codec.ExportData(format)
	if err != nil {
		a.writeDomainError(w, err, "export mocks")
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="mocks.`+format.String()+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleImport handles POST /_admin/import. The body is a JSON array, or
// YAML when the Content-Type or ?format= says so.
func (a *API) handleImport(w http.ResponseWriter, r *http.Request) {
	format := portability.FormatFromContentType(r.Header.Get("Content-Type"))
	if v := r.URL.Query().Get("format"); v != "" {
		f, err := portability.ParseFormat(v)
		if err != nil {
			httputil.WriteFieldError(w, http.StatusBadRequest, httputil.ErrValidation, "format", err.Error())
			return
		}
		format = f
	}

	body, err := readBody(w, r)
	if err != nil {
		a.writeDomainError(w, err, "read import body")
		return
	}

	if err := a.codec.ImportData(body, format); err != nil {
		a.writeDomainError(w, err, "import mocks")
		return
	}
	httputil.WriteOK(w, ImportResponse{Imported: a.registry.Count()})
}
