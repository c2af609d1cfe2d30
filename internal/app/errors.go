package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotStarted          = errors.New("service not started")
	ErrNoStore             = errors.New("event store not configured")
	ErrProviderUnavailable = errors.New("metric provider unavailable")
)
