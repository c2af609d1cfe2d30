package ingest

import (
	"time"

	"github.com/okian/gitlytix/internal/domain/dedupe"
	"github.com/okian/gitlytix/pkg/logger"
)

// QueueOption applies a configuration option to the InMemoryQueue.
type QueueOption func(*InMemoryQueue)

// WithCapacity sets the maximum number of queued events.
func WithCapacity(capacity int) QueueOption {
	return func(q *InMemoryQueue) {
		if capacity > 0 {
			q.capacity = capacity
		}
	}
}

// PoolOption applies a configuration option to the Pool.
type PoolOption func(*Pool)

// WithWorkers sets the number of workers.
func WithWorkers(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.workerCount = n
		}
	}
}

// WithBatchSize sets how many events a worker buffers before inserting.
func WithBatchSize(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithFlushInterval sets how long a partial batch may wait.
func WithFlushInterval(d time.Duration) PoolOption {
	return func(p *Pool) {
		if d > 0 {
			p.flushInterval = d
		}
	}
}

// WithOnInsert registers a callback run after each stored batch with the
// repositories it touched.
func WithOnInsert(fn func(repos []string)) PoolOption {
	return func(p *Pool) {
		p.onInsert = fn
	}
}

// WithPoolLogger sets the pool logger.
func WithPoolLogger(l logger.Logger) PoolOption {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

// LoaderOption applies a configuration option to the Loader.
type LoaderOption func(*Loader)

// WithDeduper replaces the loader's duplicate filter.
func WithDeduper(d dedupe.Deduper) LoaderOption {
	return func(l *Loader) {
		if d != nil {
			l.dedupe = d
		}
	}
}

// WithLoaderLogger sets the loader logger.
func WithLoaderLogger(lg logger.Logger) LoaderOption {
	return func(l *Loader) {
		if lg != nil {
			l.logger = lg
		}
	}
}
