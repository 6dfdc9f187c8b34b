package models

// Function is a top-level business domain scoping categories (v1 ships with
// exactly one: Sales).
type Function struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Icon   string `json:"icon,omitempty"`
	Active bool   `json:"active"`
}

// Category groups prompts inside a function. Its id derives deterministically
// from the normalized name, so get-or-create is idempotent per function.
type Category struct {
	ID         string `json:"id"`
	FunctionID string `json:"function_id"`
	Name       string `json:"name"`
	Active     bool   `json:"active"`
}

// Author is the global identity prompts are attributed to. NormalizedKey is
// derived from DisplayName and is the dedup key for get-or-create.
type Author struct {
	ID            string `json:"id"`
	DisplayName   string `json:"display_name"`
	NormalizedKey string `json:"normalized_key"`
	Active        bool   `json:"active"`
}
