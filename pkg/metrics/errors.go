package metrics

import (
	"errors"
)

// Sentinel kinds for metrics errors.
var (
	ErrUnknownCollector = errors.New("metrics collector not registered")
)
