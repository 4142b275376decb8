package evaluation

import "errors"

// ErrInvalidScore is returned when a submitted score is missing or outside [0, 100].
var ErrInvalidScore = errors.New("invalid score")
