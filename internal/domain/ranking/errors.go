package ranking

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrEvaluationsIncomplete = errors.New("evaluations incomplete")
	ErrNotPublished          = errors.New("results not published")
)
