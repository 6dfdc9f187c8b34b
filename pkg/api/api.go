package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"promptstudio/pkg/eventlog"
	"promptstudio/pkg/store"
	"promptstudio/pkg/utils"
)

// API bundles the catalog store and event log behind the HTTP surface.
// Handlers are methods so tests can stand up an API around their own store.
type API struct {
	cat    *store.Catalog
	events *eventlog.Log
}

// New builds the API around an opened catalog. events may be nil when usage
// logging is disabled.
func New(cat *store.Catalog, events *eventlog.Log) *API {
	return &API{cat: cat, events: events}
}

// Register attaches all versioned routes to the provided router, which is
// expected to be a subrouter already rooted at /v1.
func (a *API) Register(r *mux.Router) {
	r.HandleFunc("/functions", a.listFunctions).Methods(http.MethodGet)
	r.HandleFunc("/functions/{id}", a.getFunction).Methods(http.MethodGet)
	r.HandleFunc("/functions/{id}/categories", a.listCategories).Methods(http.MethodGet)

	r.HandleFunc("/categories", a.createCategory).Methods(http.MethodPost)
	r.HandleFunc("/categories/{id}", a.getCategory).Methods(http.MethodGet)

	r.HandleFunc("/authors", a.listAuthors).Methods(http.MethodGet)
	r.HandleFunc("/authors", a.createAuthor).Methods(http.MethodPost)
	r.HandleFunc("/authors/{id}", a.getAuthor).Methods(http.MethodGet)

	r.HandleFunc("/submissions", a.createSubmission).Methods(http.MethodPost)
	r.HandleFunc("/submissions", a.listSubmissions).Methods(http.MethodGet)
	r.HandleFunc("/submissions/{id}", a.getSubmission).Methods(http.MethodGet)
	r.HandleFunc("/submissions/{id}/approve", a.approveSubmission).Methods(http.MethodPost)
	r.HandleFunc("/submissions/{id}/reject", a.rejectSubmission).Methods(http.MethodPost)

	r.HandleFunc("/prompts", a.listPrompts).Methods(http.MethodGet)
	r.HandleFunc("/prompts/{id}", a.getPrompt).Methods(http.MethodGet)
	r.HandleFunc("/prompts/{id}/ratings", a.ratePrompt).Methods(http.MethodPost)
	r.HandleFunc("/prompts/{id}/bookmark", a.toggleBookmark).Methods(http.MethodPost)
	r.HandleFunc("/prompts/{id}/bookmark", a.getBookmark).Methods(http.MethodGet)

	r.HandleFunc("/bookmarks", a.listBookmarks).Methods(http.MethodGet)
}

// writeStoreErr maps store sentinel errors onto HTTP statuses.
func writeStoreErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		utils.JSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrInvalidInput):
		utils.JSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrStateConflict):
		utils.JSONError(w, http.StatusConflict, err.Error())
	default:
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
	}
}

// record appends a usage event; failures are swallowed so a full disk never
// breaks the request path.
func (a *API) record(event, userKey string, meta map[string]string) {
	_ = a.events.Write(event, userKey, meta)
}
