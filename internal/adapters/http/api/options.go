package api

import (
	"time"

	"github.com/okian/gitlytix/pkg/logger"
)

const (
	defaultMaxLimit = 100
	defaultMaxBody  = 8 << 20
)

type options struct {
	maxLimit int
	maxBody  int64
	logger   logger.Logger
	now      func() time.Time
}

// Option configures a Server.
type Option func(*options)

// WithMaxLimit caps the leaderboard limit parameter.
func WithMaxLimit(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxLimit = n
		}
	}
}

// WithMaxBody caps request bodies in bytes.
func WithMaxBody(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.maxBody = n
		}
	}
}

// WithLogger sets the access and handler logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock sets the clock used for default end dates.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
