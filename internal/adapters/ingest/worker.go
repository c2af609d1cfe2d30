package ingest

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/gitlytix/pkg/logger"
	"github.com/okian/gitlytix/pkg/metrics"
)

const (
	defaultBatchSize     = 500
	defaultFlushInterval = time.Second
	flushTimeout         = 10 * time.Second
	poolShutdownTimeout  = 30 * time.Second
)

// Inserter stores a batch of events and reports how many were new.
type Inserter interface {
	InsertEvents(ctx context.Context, events []Event) (int, error)
}

// Source is where workers receive events from.
type Source interface {
	Dequeue(ctx context.Context) <-chan Event
}

// Pool runs workers that drain a Source into an Inserter in batches.
type Pool struct {
	source        Source
	store         Inserter
	workerCount   int
	batchSize     int
	flushInterval time.Duration
	onInsert      func(repos []string)
	logger        logger.Logger

	active   atomic.Int64
	inserted atomic.Int64
	failed   atomic.Int64

	wg       sync.WaitGroup
	shutdown chan struct{}
	stopOnce sync.Once
}

// PoolStats is a point-in-time view of pool counters.
type PoolStats struct {
	Workers  int   `json:"workers"`
	Active   int64 `json:"active"`
	Inserted int64 `json:"inserted"`
	Failed   int64 `json:"failed"`
}

// NewPool creates a worker pool. Call Start to launch it.
func NewPool(source Source, store Inserter, opts ...PoolOption) *Pool {
	p := &Pool{
		source:        source,
		store:         store,
		workerCount:   runtime.NumCPU(),
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
		logger:        logger.NewNop(),
		shutdown:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the workers. They run until the source channel closes, ctx
// ends, or Shutdown is called.
func (p *Pool) Start(ctx context.Context) {
	events := p.source.Dequeue(ctx)
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.run(ctx, "worker-"+strconv.Itoa(i), events)
	}
	metrics.UpdateWorkerActiveCount(p.workerCount)
}

func (p *Pool) run(ctx context.Context, name string, events <-chan Event) {
	defer p.wg.Done()
	log := p.logger.Named(name)

	batch := make([]Event, 0, p.batchSize)
	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		p.flush(ctx, log, batch)
		batch = batch[:0]
	}
	defer flush()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			// Drain whatever is already queued before leaving.
			for {
				select {
				case e, ok := <-events:
					if !ok {
						return
					}
					batch = append(batch, e)
					if len(batch) >= p.batchSize {
						flush()
					}
				default:
					return
				}
			}
		case e, ok := <-events:
			if !ok {
				return
			}
			batch = append(batch, e)
			if len(batch) >= p.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (p *Pool) flush(ctx context.Context, log logger.Logger, batch []Event) {
	p.active.Add(1)
	defer p.active.Add(-1)

	start := time.Now()
	// A final flush during shutdown must outlive the cancelled run context.
	ictx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
	defer cancel()

	n, err := p.store.InsertEvents(ictx, batch)
	ms := float64(time.Since(start).Microseconds()) / 1000
	metrics.RecordIngestBatchLatency(ms)
	metrics.RecordWorkerProcessingLatency(ms)
	if err != nil {
		p.failed.Add(int64(len(batch)))
		metrics.RecordEventsFailed(len(batch))
		metrics.RecordErrorByComponent("ingest", "insert_error")
		log.Error(ctx, "batch insert failed", logger.Int("size", len(batch)), logger.Error(err))
		return
	}

	p.inserted.Add(int64(n))
	metrics.RecordEventsProcessed(n)
	for i := n; i < len(batch); i++ {
		metrics.RecordEventDuplicate()
	}
	log.Debug(ctx, "batch stored", logger.Int("size", len(batch)), logger.Int("inserted", n))

	if p.onInsert != nil && n > 0 {
		p.onInsert(reposOf(batch))
	}
}

// Shutdown stops the workers after they drain queued events. Close the
// queue first so nothing new arrives.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.stopOnce.Do(func() { close(p.shutdown) })

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timeout, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()
	select {
	case <-done:
		metrics.UpdateWorkerActiveCount(0)
		return nil
	case <-timeout.Done():
		p.logger.Warn(ctx, "worker pool shutdown timed out")
		return fmt.Errorf("%w: %w", ErrPoolStopped, timeout.Err())
	}
}

// Stats returns the pool counters.
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Workers:  p.workerCount,
		Active:   p.active.Load(),
		Inserted: p.inserted.Load(),
		Failed:   p.failed.Load(),
	}
}

func reposOf(batch []Event) []string {
	seen := make(map[string]struct{})
	for i := range batch {
		seen[batch[i].Repo] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for r := range seen {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}
