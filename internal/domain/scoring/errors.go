package scoring

import "errors"

// Sentinel kinds for scoring errors.
var (
	ErrInvalidConfig = errors.New("invalid scoring config")
	ErrUnknownMetric = errors.New("unknown metric")
)
