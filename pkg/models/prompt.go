package models

import "strings"

// PromptStatusPublished is the only status a prompt ever carries; prompts
// exist solely as the published form of an approved submission.
const PromptStatusPublished = "published"

// PromptVersion is fixed for all v1 prompts.
const PromptVersion = "1.0"

// Prompt is a published, browsable document. All content fields are copied
// from the approving submission at the moment of approval and never change;
// AvgRating is the only mutable field and is recomputed from ratings.
type Prompt struct {
	ID                string `json:"id"`
	SubmissionID      string `json:"submission_id"`
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

	AvgRating float64 `json:"avg_rating"`
	// Reserved counter; nothing increments it yet.
	UsesTotal int    `json:"uses_total"`
	Status    string `json:"status"`
	Version   string `json:"version"`
	// Created timestamp (ns)
	CreatedTS int64 `json:"created_ts,omitempty"`
}

// MatchesQuery reports whether every whitespace-separated term of q is a
// case-insensitive literal substring of the prompt's searchable text. An
// empty query matches everything. No relevance ranking is applied.
func (p *Prompt) MatchesQuery(q string) bool {
	terms := strings.Fields(strings.ToLower(q))
	if len(terms) == 0 {
		return true
	}
	text := strings.ToLower(p.Title + " " + p.Description + " " + p.FullText + " " + p.AuthorDisplayName)
	for _, t := range terms {
		if !strings.Contains(text, t) {
			return false
		}
	}
	return true
}

// Rating is one user's vote on one prompt. At most one rating exists per
// (user, prompt) pair; a new vote replaces the prior one entirely.
type Rating struct {
	UserKey  string `json:"user_key"`
	PromptID string `json:"prompt_id"`
	Stars    int    `json:"stars"`
	// Created timestamp (ns)
	CreatedTS int64 `json:"created_ts,omitempty"`
}

// Bookmark marks a prompt as saved by a user. Presence is the only state.
type Bookmark struct {
	UserKey  string `json:"user_key"`
	PromptID string `json:"prompt_id"`
	// Created timestamp (ns)
	CreatedTS int64 `json:"created_ts,omitempty"`
}
