package models

import "strings"

// Submission review states. Transitions are one-way: pending moves to
// approved or rejected exactly once.
const (
	SubmissionStatusPending  = "pending"
	SubmissionStatusApproved = "approved"
	SubmissionStatusRejected = "rejected"
)

// Submission is a user-authored draft awaiting review. Content fields are
// copied verbatim from the caller; CategoryName and AuthorDisplayName are
// denormalized snapshots taken at creation time.
type Submission struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	CreatedBy string `json:"created_by"`
	// Created timestamp (ns)
	CreatedTS int64 `json:"created_ts,omitempty"`

	Title             string `json:"title"`
	Description       string `json:"description"`
	FunctionID        string `json:"function_id"`
	CategoryID        string `json:"category_id"`
	CategoryName      string `json:"category_name"`
	AuthorID          string `json:"author_id"`
	AuthorDisplayName string `json:"author_display_name"`

	CraftContext string `json:"craft_context"`
	CraftRole    string `json:"craft_role"`
	CraftAction  string `json:"craft_action"`
	CraftFormat  string `json:"craft_format"`
	CraftTone    string `json:"craft_tone"`
	FullText     string `json:"full_text"`

	ReviewComment string `json:"review_comment"`
	// Set exactly once, when the submission is approved.
	PublishedPromptID string `json:"published_prompt_id,omitempty"`
}

// BuildFullText concatenates the five CRAFT fields into the canonical
// full-text form shown to reviewers and published with the prompt.
func (s *Submission) BuildFullText() string {
	return strings.Join([]string{
		s.CraftContext, s.CraftRole, s.CraftAction, s.CraftFormat, s.CraftTone,
	}, "\n\n")
}
