// Package service wires the event store, metric provider, calculator and
// leaderboard into the operations the HTTP API and CLI need.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/okian/gitlytix/internal/adapters/ingest"
	"github.com/okian/gitlytix/internal/adapters/provider"
	"github.com/okian/gitlytix/internal/adapters/repository"
	"github.com/okian/gitlytix/internal/domain/dedupe"
	"github.com/okian/gitlytix/internal/domain/model"
	"github.com/okian/gitlytix/internal/domain/scoring"
	"github.com/okian/gitlytix/internal/domain/types"
	"github.com/okian/gitlytix/pkg/logger"
	"github.com/okian/gitlytix/pkg/metrics"
)

// Scoreboard is the leaderboard the service keeps current.
type Scoreboard interface {
	repository.Ranking
	Close() error
}

// snapshotter is implemented by boards that publish a periodic read copy.
type snapshotter interface {
	Snapshot() *repository.Snapshot
}

// GitHistory answers release and contributor questions from a local clone of
// one repository.
type GitHistory interface {
	MonthlyReleases(ctx context.Context, now time.Time, months int) ([]model.MonthlyReleases, error)
	NewContributors(ctx context.Context, since time.Time) (int, error)
}

// Service implements the API dependencies for the project-health dashboard.
type Service struct {
	mu sync.RWMutex

	// Core components
	store    repository.EventStore
	provider provider.Provider
	calc     *scoring.Calculator
	git      GitHistory
	board    Scoreboard
	queue    *ingest.InMemoryQueue
	pool     *ingest.Pool
	loader   *ingest.Loader

	// Configuration
	workerCount     int
	queueSize       int
	dedupeSize      int
	batchSize       int
	flushInterval   time.Duration
	refreshInterval time.Duration
	repos           []string
	gitRepo         string
	fresh, stale    time.Duration
	now             func() time.Time

	// State
	started bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
	dirty   chan string

	logger logger.Logger
}

// New constructs a Service. Without WithProvider it reads metrics from the
// store, or serves demo data when there is no store either.
func New(opts ...Option) *Service {
	s := &Service{
		calc:            scoring.NewCalculator(scoring.DefaultTable()),
		workerCount:     runtime.NumCPU(),
		queueSize:       100000,
		dedupeSize:      500000,
		batchSize:       500,
		flushInterval:   time.Second,
		refreshInterval: 5 * time.Minute,
		fresh:           24 * time.Hour,
		stale:           7 * 24 * time.Hour,
		now:             time.Now,
		dirty:           make(chan string, 256),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.provider == nil {
		if s.store != nil {
			s.provider = provider.NewStoreProvider(s.store, provider.WithNow(s.now))
		} else {
			s.provider = provider.NewMockProvider(nil)
		}
	}
	return s
}

// Start launches the ingest pipeline and the background refresher.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.logger.Info(ctx, "starting gitlytix service...")

	if s.board == nil {
		s.board = repository.NewScoreboard(ctx)
	}
	s.stopCh = make(chan struct{})

	if s.store != nil {
		s.queue = ingest.NewInMemoryQueue(ingest.WithCapacity(s.queueSize))
		s.pool = ingest.NewPool(s.queue, s.store,
			ingest.WithWorkers(s.workerCount),
			ingest.WithBatchSize(s.batchSize),
			ingest.WithFlushInterval(s.flushInterval),
			ingest.WithOnInsert(s.markDirty),
			ingest.WithPoolLogger(s.logger.Named("ingest")),
		)
		s.loader = ingest.NewLoader(s.queue,
			ingest.WithDeduper(dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))),
			ingest.WithLoaderLogger(s.logger.Named("loader")),
		)
		s.pool.Start(ctx)
	}

	if s.refreshInterval > 0 {
		s.wg.Add(1)
		go s.refreshLoop(ctx, s.stopCh)
	}

	s.started = true
	s.logger.Info(ctx, "gitlytix service started",
		logger.String("provider", s.provider.Name()),
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("repos", len(s.repos)),
		logger.Duration("refresh", s.refreshInterval),
	)
	return nil
}

// Stop drains the ingest queue and stops background work.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	queue, pool, board, stopCh := s.queue, s.pool, s.board, s.stopCh
	s.mu.Unlock()

	ctx := context.Background()
	s.logger.Info(ctx, "stopping gitlytix service...")

	// The refresher may be mid-Score, which takes s.mu; stop it unlocked.
	close(stopCh)
	if queue != nil {
		_ = queue.Close()
	}
	if pool != nil {
		if err := pool.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "ingest pool shutdown", logger.Error(err))
		}
	}
	s.wg.Wait()
	if board != nil {
		_ = board.Close()
	}
	s.logger.Info(ctx, "gitlytix service stopped")
}

// refreshLoop re-scores configured repos on a ticker and repos touched by
// ingest as soon as their batch lands.
func (s *Service) refreshLoop(ctx context.Context, stop <-chan struct{}) {
	defer s.wg.Done()

	s.refreshAll(ctx, stop)
	ticker := time.NewTicker(s.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			s.refreshAll(ctx, stop)
		case repo := <-s.dirty:
			s.refresh(ctx, repo)
		}
	}
}

func (s *Service) refreshAll(ctx context.Context, stop <-chan struct{}) {
	for _, repo := range s.repos {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		default:
		}
		s.refresh(ctx, repo)
	}
}

func (s *Service) refresh(ctx context.Context, repo string) {
	if _, err := s.Score(ctx, repo); err != nil {
		s.logger.Warn(ctx, "background refresh failed", logger.String("repo", repo), logger.Error(err))
	}
}

func (s *Service) markDirty(repos []string) {
	for _, r := range repos {
		select {
		case s.dirty <- r:
		default:
			// The periodic refresh will catch it.
		}
	}
}

// Ingest validates, dedupes and enqueues events for storage.
func (s *Service) Ingest(ctx context.Context, events []model.Event) (ingest.Counts, error) {
	s.mu.RLock()
	loader, started := s.loader, s.started
	s.mu.RUnlock()

	switch {
	case !started:
		return ingest.Counts{}, ErrNotStarted
	case loader == nil:
		return ingest.Counts{}, ErrNoStore
	}
	c := loader.Submit(ctx, events)
	if c.Rejected > 0 {
		s.logger.Warn(ctx, "ingest queue rejected events", logger.Int("rejected", c.Rejected))
	}
	return c, nil
}

// IngestDir loads event files under root matching pattern.
func (s *Service) IngestDir(ctx context.Context, root, pattern string) (ingest.Counts, error) {
	s.mu.RLock()
	loader, started := s.loader, s.started
	s.mu.RUnlock()

	switch {
	case !started:
		return ingest.Counts{}, ErrNotStarted
	case loader == nil:
		return ingest.Counts{}, ErrNoStore
	}
	return loader.LoadDir(ctx, root, pattern)
}

// TopN returns the top N leaderboard entries.
func (s *Service) TopN(ctx context.Context, n int) ([]types.Entry, error) {
	board, err := s.scoreboard()
	if err != nil {
		return nil, err
	}
	return board.TopN(ctx, n)
}

// Rank returns the leaderboard position of repo.
func (s *Service) Rank(ctx context.Context, repo string) (types.Entry, error) {
	board, err := s.scoreboard()
	if err != nil {
		return types.Entry{}, err
	}
	return board.Rank(ctx, repo)
}

func (s *Service) scoreboard() (Scoreboard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.board == nil {
		return nil, ErrNotStarted
	}
	return s.board, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":         s.started,
		"provider":        s.provider.Name(),
		"workerCount":     s.workerCount,
		"queueSize":       s.queueSize,
		"dedupeSize":      s.dedupeSize,
		"batchSize":       s.batchSize,
		"refreshInterval": s.refreshInterval.String(),
		"repos":           s.repos,
		"gitRepo":         s.gitRepo,
	}

	if s.started {
		stats["totalRepos"] = s.board.Count(ctx)
		if sb, ok := s.board.(snapshotter); ok {
			if snap := sb.Snapshot(); snap != nil {
				stats["leaderboard"] = map[string]interface{}{
					"takenAt": snap.TakenAt,
					"ranked":  len(snap.RankByRepo),
					"top":     snap.TopCache,
				}
			}
		}
		if s.queue != nil {
			stats["queueLength"] = s.queue.Len(ctx)
		}
		if s.pool != nil {
			stats["ingest"] = s.pool.Stats()
		}
	}
	return stats
}

// Score fetches the metrics of repo, scores them and records the result on
// the leaderboard. Metrics the provider could not deliver are scored as
// missing and listed in Warnings.
func (s *Service) Score(ctx context.Context, repo string) (ScoreReport, error) {
	if err := model.ValidateRepo(repo); err != nil {
		return ScoreReport{}, err
	}
	start := time.Now()

	in, err := s.provider.Fetch(ctx, repo)
	var warnings []string
	if err != nil {
		fe, partial := provider.AsFetchError(err)
		if !partial || len(in) == 0 {
			metrics.RecordErrorByComponent("service", "provider_unavailable")
			return ScoreReport{}, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
		}
		for _, m := range scoring.Metrics() {
			if cause, ok := fe.Failed[m]; ok {
				warnings = append(warnings, fmt.Sprintf("%s: %v", m, cause))
			}
		}
		s.log().Warn(ctx, "scoring with partial metrics", logger.String("repo", repo), logger.Error(err))
	}

	res := s.calc.Explain(in)
	report := s.report(repo, in, res)
	report.Warnings = warnings

	if board, berr := s.scoreboard(); berr == nil {
		if err := board.Put(ctx, repo, res.Score, string(res.State)); err != nil {
			s.log().Error(ctx, "scoreboard update failed", logger.String("repo", repo), logger.Error(err))
		}
	}
	s.recordScore(repo, res, start)
	return report, nil
}

// ScoreInput scores caller-supplied values without fetching or touching the
// leaderboard.
func (s *Service) ScoreInput(_ context.Context, in scoring.Input) ScoreReport {
	start := time.Now()
	res := s.calc.Explain(in)
	s.recordScore("", res, start)
	return s.report("", in, res)
}

func (s *Service) report(repo string, in scoring.Input, res scoring.Result) ScoreReport {
	return ScoreReport{
		Repository: repo,
		Provider:   s.provider.Name(),
		Input:      in,
		Result:     res,
		ComputedAt: s.now().UTC(),
	}
}

func (s *Service) recordScore(repo string, res scoring.Result, start time.Time) {
	metrics.RecordScore(repo, string(res.State), res.Score, float64(time.Since(start).Microseconds())/1000)
	if repo != "" {
		for _, c := range res.Contributions {
			metrics.UpdateMetricNormalized(repo, c.Metric.Key(), c.Normalized)
		}
	}
	for _, sk := range res.Skipped {
		metrics.RecordMetricSkipped(sk.Metric.Key(), string(sk.Reason))
	}
}

func (s *Service) log() logger.Logger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.logger == nil {
		return logger.NewNop()
	}
	return s.logger
}

// IsNotFound reports whether err means there was no data to answer with.
func IsNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}
