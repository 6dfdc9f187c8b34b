package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"promptstudio/pkg/auth"
	"promptstudio/pkg/models"
	"promptstudio/pkg/telemetry"
	"promptstudio/pkg/utils"
)

// listPrompts handles GET /v1/prompts?function=&category=&q=. The function
// and category filters are applied by the store; the free-text query is
// matched here over the already-filtered page.
func (a *API) listPrompts(w http.ResponseWriter, r *http.Request) {
	done := telemetry.StartSpan(r.Context(), "prompts.list")
	defer done()
	q := r.URL.Query()
	prompts, err := a.cat.ListPrompts(q.Get("function"), q.Get("category"))
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	if term := q.Get("q"); term != "" {
		telemetry.SetSpanData(r.Context(), "q", term)
		filtered := prompts[:0]
		for i := range prompts {
			if prompts[i].MatchesQuery(term) {
				filtered = append(filtered, prompts[i])
			}
		}
		prompts = filtered
	}
	telemetry.SetSpanData(r.Context(), "results", len(prompts))
	if prompts == nil {
		prompts = []models.Prompt{}
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Prompts []models.Prompt `json:"prompts"`
	}{Prompts: prompts})
}

// getPrompt handles GET /v1/prompts/{id} and records a view event.
func (a *API) getPrompt(w http.ResponseWriter, r *http.Request) {
	// collapse the per-id path in traces
	telemetry.SetRequestOp(r.Context(), "prompts.get")
	id := mux.Vars(r)["id"]
	p, err := a.cat.GetPrompt(id)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	a.record("view_prompt", auth.ResolveUserKey(r), map[string]string{"prompt_id": id})
	_ = utils.JSONWrite(w, http.StatusOK, p)
}

// ratePrompt handles POST /v1/prompts/{id}/ratings. One vote per user and
// prompt; a second vote replaces the first.
func (a *API) ratePrompt(w http.ResponseWriter, r *http.Request) {
	telemetry.SetRequestOp(r.Context(), "prompts.rate")
	done := telemetry.StartSpan(r.Context(), "prompts.rate")
	defer done()
	var req struct {
		Stars int `json:"stars"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	id := mux.Vars(r)["id"]
	userKey := auth.ResolveUserKey(r)
	p, err := a.cat.RatePrompt(userKey, id, req.Stars)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	a.record("rate_prompt", userKey, map[string]string{
		"prompt_id": id,
		"stars":     strconv.Itoa(req.Stars),
	})
	_ = utils.JSONWrite(w, http.StatusOK, p)
}

// toggleBookmark handles POST /v1/prompts/{id}/bookmark.
func (a *API) toggleBookmark(w http.ResponseWriter, r *http.Request) {
	telemetry.SetRequestOp(r.Context(), "prompts.bookmark")
	done := telemetry.StartSpan(r.Context(), "prompts.bookmark")
	defer done()
	id := mux.Vars(r)["id"]
	userKey := auth.ResolveUserKey(r)
	added, err := a.cat.ToggleBookmark(userKey, id)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	a.record("toggle_bookmark", userKey, map[string]string{
		"prompt_id":  id,
		"bookmarked": strconv.FormatBool(added),
	})
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Bookmarked bool `json:"bookmarked"`
	}{Bookmarked: added})
}

// getBookmark handles GET /v1/prompts/{id}/bookmark.
func (a *API) getBookmark(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	set, err := a.cat.IsBookmarked(auth.ResolveUserKey(r), id)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Bookmarked bool `json:"bookmarked"`
	}{Bookmarked: set})
}

// listBookmarks handles GET /v1/bookmarks and returns the caller's saved
// prompts, oldest first.
func (a *API) listBookmarks(w http.ResponseWriter, r *http.Request) {
	prompts, err := a.cat.ListBookmarks(auth.ResolveUserKey(r))
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	if prompts == nil {
		prompts = []models.Prompt{}
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Prompts []models.Prompt `json:"prompts"`
	}{Prompts: prompts})
}
