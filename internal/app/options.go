package service

import (
	"time"

	"github.com/okian/gitlytix/internal/adapters/provider"
	"github.com/okian/gitlytix/internal/adapters/repository"
	"github.com/okian/gitlytix/internal/domain/scoring"
	"github.com/okian/gitlytix/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore sets the event store behind stats, ingest and the store provider.
func WithStore(store repository.EventStore) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithProvider sets where raw metric values come from.
func WithProvider(p provider.Provider) Option {
	return func(s *Service) {
		if p != nil {
			s.provider = p
		}
	}
}

// WithCalculator sets the score calculator.
func WithCalculator(c *scoring.Calculator) Option {
	return func(s *Service) {
		if c != nil {
			s.calc = c
		}
	}
}

// WithGitRepo makes releases and new contributors of repo come from a local
// clone. Other repositories keep reading the event store.
func WithGitRepo(repo string, h GitHistory) Option {
	return func(s *Service) {
		if h != nil && repo != "" {
			s.git, s.gitRepo = h, repo
		}
	}
}

// WithScoreboard replaces the in-memory leaderboard.
func WithScoreboard(b Scoreboard) Option {
	return func(s *Service) {
		if b != nil {
			s.board = b
		}
	}
}

// WithFreshness sets the data age thresholds for Fresh and Stale.
func WithFreshness(fresh, stale time.Duration) Option {
	return func(s *Service) {
		if fresh > 0 && stale >= fresh {
			s.fresh, s.stale = fresh, stale
		}
	}
}

// WithRefreshInterval sets how often configured repos are re-scored. Zero
// disables the refresher.
func WithRefreshInterval(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.refreshInterval = d
		}
	}
}

// WithRepos sets the repositories refreshed in the background.
func WithRepos(repos []string) Option {
	return func(s *Service) {
		s.repos = append([]string(nil), repos...)
	}
}

// WithWorkerCount sets the number of ingest workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the ingest queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the event id cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithBatchSize sets the ingest insert batch size.
func WithBatchSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.batchSize = size
		}
	}
}

// WithFlushInterval sets how long a partial ingest batch may wait.
func WithFlushInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.flushInterval = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
