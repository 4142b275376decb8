package repository

import "errors"

// Sentinel kinds for persistence errors.
var (
	ErrNotFound = errors.New("not found")
	// ErrConflict signals a failed version check or a concurrent write;
	// callers should reload and may retry.
	ErrConflict = errors.New("concurrency conflict")
)
