package provider

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/okian/gitlytix/internal/adapters/repository"
	"github.com/okian/gitlytix/internal/domain/model"
	"github.com/okian/gitlytix/internal/domain/scoring"
	"github.com/okian/gitlytix/pkg/metrics"
)

// StatsReader is the subset of repository.EventStore the store provider needs.
type StatsReader interface {
	FirstResponse(ctx context.Context, repo string, since time.Time, excludeOpener bool) (model.FirstResponse, error)
	Resolution(ctx context.Context, repo string, start, end time.Time) (model.Resolution, error)
	PRReview(ctx context.Context, repo string) (model.PRReview, error)
}

// StoreProvider reads metric averages from the local event store.
type StoreProvider struct {
	store StatsReader
	since time.Time
	now   func() time.Time
}

// StoreOption configures a StoreProvider.
type StoreOption func(*StoreProvider)

// WithSince sets the start of the first-response and resolution windows.
func WithSince(t time.Time) StoreOption {
	return func(p *StoreProvider) {
		if !t.IsZero() {
			p.since = t
		}
	}
}

// WithNow overrides the clock that ends the resolution window.
func WithNow(now func() time.Time) StoreOption {
	return func(p *StoreProvider) {
		if now != nil {
			p.now = now
		}
	}
}

// NewStoreProvider returns a provider over store.
func NewStoreProvider(store StatsReader, opts ...StoreOption) *StoreProvider {
	p := &StoreProvider{store: store, since: DefaultSince, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements Provider.
func (p *StoreProvider) Name() string { return "store" }

// Fetch implements Provider. The three queries run concurrently. A query with
// nothing to average leaves its metric missing without an error.
func (p *StoreProvider) Fetch(ctx context.Context, repo string) (scoring.Input, error) {
	start := time.Now()
	defer func() {
		metrics.RecordProviderLatency(p.Name(), float64(time.Since(start).Microseconds())/1000)
	}()

	queries := map[scoring.Metric]func() (float64, bool, error){
		scoring.FirstResponse: func() (float64, bool, error) {
			r, err := p.store.FirstResponse(ctx, repo, p.since, true)
			return r.AverageSeconds, err == nil, err
		},
		scoring.IssueResolution: func() (float64, bool, error) {
			r, err := p.store.Resolution(ctx, repo, p.since, p.now())
			return r.AverageSeconds, err == nil, err
		},
		scoring.PRReview: func() (float64, bool, error) {
			r, err := p.store.PRReview(ctx, repo)
			if err != nil || r.AverageSeconds == nil {
				return 0, false, err
			}
			return *r.AverageSeconds, true, nil
		},
	}

	results := make([]fetchResult, 0, len(queries))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for m, q := range queries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, ok, err := q()
			if errors.Is(err, repository.ErrNotFound) {
				err = nil
			}
			metrics.RecordProviderFetch(p.Name(), m.Key(), outcome(ok, err))
			mu.Lock()
			results = append(results, fetchResult{metric: m, value: v, ok: ok, err: err})
			mu.Unlock()
		}()
	}
	wg.Wait()

	return collect(p.Name(), results)
}

func outcome(ok bool, err error) string {
	switch {
	case err != nil:
		return "error"
	case ok:
		return "ok"
	default:
		return "empty"
	}
}
