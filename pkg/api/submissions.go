package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"promptstudio/pkg/auth"
	"promptstudio/pkg/logger"
	"promptstudio/pkg/models"
	"promptstudio/pkg/telemetry"
	"promptstudio/pkg/utils"
)

// validateSubmission checks the content fields the review flow depends on.
// Description and tone are the only optional pieces of the CRAFT document.
func validateSubmission(s *models.Submission) string {
	switch {
	case strings.TrimSpace(s.Title) == "":
		return "title is required"
	case s.FunctionID == "":
		return "function_id is required"
	case s.CategoryID == "" && strings.TrimSpace(s.CategoryName) == "":
		return "category_id or category_name is required"
	case strings.TrimSpace(s.AuthorDisplayName) == "":
		return "author_display_name is required"
	case strings.TrimSpace(s.CraftContext) == "":
		return "craft_context is required"
	case strings.TrimSpace(s.CraftRole) == "":
		return "craft_role is required"
	case strings.TrimSpace(s.CraftAction) == "":
		return "craft_action is required"
	case strings.TrimSpace(s.CraftFormat) == "":
		return "craft_format is required"
	}
	if len(s.Title) > 256 {
		return "title too long"
	}
	return ""
}

// createSubmission handles POST /v1/submissions. The caller may reference an
// existing category by id or name a new one, which is created under the
// function on the fly. The author record is resolved the same way.
func (a *API) createSubmission(w http.ResponseWriter, r *http.Request) {
	done := telemetry.StartSpan(r.Context(), "submissions.create")
	defer done()

	var in models.Submission
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if msg := validateSubmission(&in); msg != "" {
		utils.JSONError(w, http.StatusBadRequest, msg)
		return
	}
	if in.CategoryID == "" {
		cat, err := a.cat.GetOrCreateCategory(in.FunctionID, in.CategoryName)
		if err != nil {
			writeStoreErr(w, err)
			return
		}
		in.CategoryID = cat.ID
	}
	author, err := a.cat.GetOrCreateAuthor(in.AuthorDisplayName)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	in.AuthorID = author.ID
	in.AuthorDisplayName = author.DisplayName
	in.CreatedBy = auth.ResolveUserKey(r)

	sub, err := a.cat.CreateSubmission(in)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	a.record("create_submission", sub.CreatedBy, map[string]string{
		"submission_id": sub.ID,
		"function":      sub.FunctionID,
	})
	_ = utils.JSONWrite(w, http.StatusCreated, sub)
}

// listSubmissions handles GET /v1/submissions?status=&mine=1.
func (a *API) listSubmissions(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status != "" && status != models.SubmissionStatusPending &&
		status != models.SubmissionStatusApproved && status != models.SubmissionStatusRejected {
		utils.JSONError(w, http.StatusBadRequest, "unknown status")
		return
	}
	createdBy := ""
	if r.URL.Query().Get("mine") == "1" {
		createdBy = auth.ResolveUserKey(r)
	}
	subs, err := a.cat.ListSubmissions(status, createdBy)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	if subs == nil {
		subs = []models.Submission{}
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Submissions []models.Submission `json:"submissions"`
	}{Submissions: subs})
}

func (a *API) getSubmission(w http.ResponseWriter, r *http.Request) {
	sub, err := a.cat.GetSubmission(mux.Vars(r)["id"])
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, sub)
}

// approveSubmission handles POST /v1/submissions/{id}/approve. Approval is
// one-shot; repeating it (or approving a rejected submission) returns 409.
func (a *API) approveSubmission(w http.ResponseWriter, r *http.Request) {
	telemetry.SetRequestOp(r.Context(), "submissions.approve")
	done := telemetry.StartSpan(r.Context(), "submissions.approve")
	defer done()
	id := mux.Vars(r)["id"]
	p, err := a.cat.ApproveSubmission(id)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	logger.Info("submission_review", "action", "approve", "submission", id, "prompt", p.ID)
	a.record("approve_submission", auth.ResolveUserKey(r), map[string]string{
		"submission_id": id,
		"prompt_id":     p.ID,
	})
	_ = utils.JSONWrite(w, http.StatusOK, p)
}

// rejectSubmission handles POST /v1/submissions/{id}/reject.
func (a *API) rejectSubmission(w http.ResponseWriter, r *http.Request) {
	telemetry.SetRequestOp(r.Context(), "submissions.reject")
	done := telemetry.StartSpan(r.Context(), "submissions.reject")
	defer done()
	var req struct {
		Comment string `json:"comment"`
	}
	if r.Body != nil {
		// an empty body means rejection without comment
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	id := mux.Vars(r)["id"]
	sub, err := a.cat.RejectSubmission(id, req.Comment)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	logger.Info("submission_review", "action", "reject", "submission", id)
	a.record("reject_submission", auth.ResolveUserKey(r), map[string]string{
		"submission_id": id,
		"has_comment":   strconv.FormatBool(req.Comment != ""),
	})
	_ = utils.JSONWrite(w, http.StatusOK, sub)
}
