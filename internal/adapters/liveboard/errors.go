package liveboard

import "errors"

// Sentinel kinds for live board errors.
var (
	ErrNotFound     = errors.New("live board row not found")
	ErrInvalidLimit = errors.New("invalid live board limit")
	ErrInvalidScore = errors.New("invalid live score")
)
