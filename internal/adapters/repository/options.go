package repository

import "time"

// Option applies a configuration option to the Scoreboard.
type Option func(*Scoreboard)

// WithSnapshotInterval sets how often the read snapshot is rebuilt.
func WithSnapshotInterval(interval time.Duration) Option {
	return func(s *Scoreboard) {
		if interval > 0 {
			s.snapshotInterval = interval
		}
	}
}

// WithTopCacheSize bounds the number of entries kept in each snapshot's top cache.
func WithTopCacheSize(n int) Option {
	return func(s *Scoreboard) {
		if n > 0 {
			s.topCacheSize = n
		}
	}
}

// WithClock overrides the time source used for UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Scoreboard) {
		if now != nil {
			s.now = now
		}
	}
}

// SQLiteOption configures a SQLiteStore.
type SQLiteOption func(*SQLiteStore)

// WithBusyTimeout sets how long writers wait on a locked database.
func WithBusyTimeout(d time.Duration) SQLiteOption {
	return func(s *SQLiteStore) {
		if d > 0 {
			s.busyTimeout = d
		}
	}
}
