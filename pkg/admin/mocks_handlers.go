package admin

import (
	"net/http"

	"github.com/getmockd/mimic/pkg/httputil"
	"github.com/getmockd/mimic/pkg/mock"
)

// handleListMocks handles GET /_admin/mocks.
func (a *API) handleListMocks(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteOK(w, a.registry.List())
}

// handleCreateMock handles POST /_admin/mocks.
func (a *API) handleCreateMock(w http.ResponseWriter, r *http.Request) {
	var def mock.Definition
	if !a.decodeJSON(w, r, &def) {
		return
	}

	created, err := a.registry.Create(&def)
	if err != nil {
		a.writeDomainError(w, err, "create mock")
		return
	}
	w.Header().Set("Location", Prefix+"/mocks/"+created.ID)
	httputil.WriteCreated(w, created)
}

// handleGetMock handles GET /_admin/mocks/{id}.
func (a *API) handleGetMock(w http.ResponseWriter, r *http.Request) {
	def, err := a.registry.Get(r.PathValue("id"))
	if err != nil {
		a.writeDomainError(w, err, "get mock", "id", r.PathValue("id"))
		return
	}
	httputil.WriteOK(w, def)
}

// handleUpdateMock handles PUT /_admin/mocks/{id}.
func (a *API) handleUpdateMock(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var def mock.Definition
	if !a.decodeJSON(w, r, &def) {
		return
	}

	updated, err := a.registry.Update(id, &def)
	if err != nil {
		a.writeDomainError(w, err, "update mock", "id", id)
		return
	}
	httputil.WriteOK(w, updated)
}

// handleDeleteMock handles DELETE /_admin/mocks/{id}.
func (a *API) handleDeleteMock(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := a.registry.Delete(id); err != nil {
		a.writeDomainError(w, err, "delete mock", "id", id)
		return
	}
	httputil.WriteNoContent(w)
}

// handleTestMock handles GET and POST /_admin/mocks/{id}/test.
func (a *API) handleTestMock(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	res, err := a.simulator.Simulate(r.Context(), id)
	if err != nil {
		a.writeDomainError(w, err, "simulate mock", "id", id)
		return
	}
	httputil.WriteOK(w, res)
}
