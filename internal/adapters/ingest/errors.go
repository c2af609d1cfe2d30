package ingest

import "errors"

// Sentinel kinds for ingest errors.
var (
	ErrQueueFull   = errors.New("queue full")
	ErrBadPattern  = errors.New("invalid glob pattern")
	ErrDecode      = errors.New("cannot decode events")
	ErrPoolStopped = errors.New("worker pool stopped")
)
