package provider

import (
	"context"
	"maps"
	"math"

	"github.com/okian/gitlytix/internal/domain/scoring"
	"github.com/okian/gitlytix/pkg/logger"
	"github.com/okian/gitlytix/pkg/metrics"
)

// Fallback wraps a Provider and fills metrics it failed to deliver.
type Fallback struct {
	next     Provider
	defaults scoring.Input
	log      logger.Logger
}

// NewFallback returns next with defaults substituted for failed or non-finite
// metrics. Metrics without a default stay missing.
func NewFallback(next Provider, defaults scoring.Input, log logger.Logger) *Fallback {
	if log == nil {
		log = logger.NewNop()
	}
	return &Fallback{next: next, defaults: maps.Clone(defaults), log: log}
}

// Name implements Provider.
func (f *Fallback) Name() string { return f.next.Name() }

// Fetch implements Provider. The returned error still lists metrics that had
// no default; metrics that were filled are dropped from it.
func (f *Fallback) Fetch(ctx context.Context, repo string) (scoring.Input, error) {
	in, err := f.next.Fetch(ctx, repo)
	if in == nil {
		in = make(scoring.Input, len(f.defaults))
	}

	fe, partial := AsFetchError(err)
	if err != nil && !partial {
		// Whole-provider failure: every metric is a candidate.
		fe = &FetchError{Provider: f.next.Name(), Failed: make(map[scoring.Metric]error)}
		for _, m := range scoring.Metrics() {
			if _, ok := in[m]; !ok {
				fe.Failed[m] = err
			}
		}
	}

	remaining := make(map[scoring.Metric]error)
	for _, m := range scoring.Metrics() {
		v, have := in[m]
		var cause error
		if fe != nil {
			cause = fe.Failed[m]
		}
		nonFinite := have && (math.IsNaN(v) || math.IsInf(v, 0))
		if cause == nil && !nonFinite {
			continue
		}
		def, ok := f.defaults[m]
		if !ok {
			if nonFinite {
				delete(in, m)
			}
			if cause != nil {
				remaining[m] = cause
			}
			continue
		}
		in[m] = def
		metrics.RecordProviderFallback(m.Key())
		fields := []logger.Field{
			logger.String("repo", repo),
			logger.String("metric", m.Key()),
			logger.Float64("fallback_seconds", def),
		}
		if cause != nil {
			fields = append(fields, logger.Error(cause))
		}
		f.log.Warn(ctx, "using fallback metric value", fields...)
	}

	if len(remaining) > 0 {
		return in, &FetchError{Provider: f.next.Name(), Failed: remaining}
	}
	return in, nil
}
