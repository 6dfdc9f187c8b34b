package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"promptstudio/pkg/models"
	"promptstudio/pkg/telemetry"
	"promptstudio/pkg/utils"
)

// listFunctions handles GET /v1/functions. Disabled functions are hidden
// unless ?all=1 is set.
func (a *API) listFunctions(w http.ResponseWriter, r *http.Request) {
	done := telemetry.StartSpan(r.Context(), "catalog.list_functions")
	defer done()
	activeOnly := r.URL.Query().Get("all") != "1"
	fns, err := a.cat.ListFunctions(activeOnly)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	if fns == nil {
		fns = []models.Function{}
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Functions []models.Function `json:"functions"`
	}{Functions: fns})
}

func (a *API) getFunction(w http.ResponseWriter, r *http.Request) {
	f, err := a.cat.GetFunction(mux.Vars(r)["id"])
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, f)
}

// listCategories handles GET /v1/functions/{id}/categories.
func (a *API) listCategories(w http.ResponseWriter, r *http.Request) {
	done := telemetry.StartSpan(r.Context(), "catalog.list_categories")
	defer done()
	activeOnly := r.URL.Query().Get("all") != "1"
	cats, err := a.cat.ListCategories(mux.Vars(r)["id"], activeOnly)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	if cats == nil {
		cats = []models.Category{}
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Categories []models.Category `json:"categories"`
	}{Categories: cats})
}

// createCategory handles POST /v1/categories. The operation is get-or-create;
// resubmitting an equivalent name returns the existing record.
func (a *API) createCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FunctionID string `json:"function_id"`
		Name       string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	cat, err := a.cat.GetOrCreateCategory(req.FunctionID, req.Name)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, cat)
}

func (a *API) getCategory(w http.ResponseWriter, r *http.Request) {
	cat, err := a.cat.GetCategory(mux.Vars(r)["id"])
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, cat)
}

func (a *API) listAuthors(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("all") != "1"
	authors, err := a.cat.ListAuthors(activeOnly)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	if authors == nil {
		authors = []models.Author{}
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Authors []models.Author `json:"authors"`
	}{Authors: authors})
}

// createAuthor handles POST /v1/authors, a get-or-create keyed on the
// normalized display name. Reserved for backend and admin keys.
func (a *API) createAuthor(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	author, err := a.cat.GetOrCreateAuthor(req.DisplayName)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, author)
}

func (a *API) getAuthor(w http.ResponseWriter, r *http.Request) {
	author, err := a.cat.GetAuthor(mux.Vars(r)["id"])
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, author)
}
