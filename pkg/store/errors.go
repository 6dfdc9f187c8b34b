package store

import "errors"

var (
	// ErrNotFound indicates the referenced record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates a request that can never succeed as given.
	ErrInvalidInput = errors.New("invalid input")
	// ErrStateConflict indicates a transition attempted on a record that has
	// already reached a terminal state.
	ErrStateConflict = errors.New("state conflict")
)
