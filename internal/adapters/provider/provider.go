// Package provider supplies raw metric values for the score calculator.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/gitlytix/internal/domain/scoring"
)

// Provider fetches the raw metric values for one repository.
//
// Fetch returns whatever it could obtain. Metrics that failed are absent from
// the Input and reported through a *FetchError, so callers may still use a
// partial result.
type Provider interface {
	Fetch(ctx context.Context, repo string) (scoring.Input, error)
	Name() string
}

// Sentinel kinds for provider errors.
var (
	ErrUnavailable = errors.New("provider unavailable")
	ErrNoData      = errors.New("no data")
)

// DefaultSince is the lower bound of the stats windows when none is given.
var DefaultSince = time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)

// FetchError lists the metrics a provider could not fetch.
type FetchError struct {
	Provider string
	Failed   map[scoring.Metric]error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %d metric(s) unavailable: %v", e.Provider, len(e.Failed), e.Unwrap())
}

// Unwrap exposes the per-metric causes to errors.Is.
func (e *FetchError) Unwrap() error {
	errs := make([]error, 0, len(e.Failed))
	for _, m := range scoring.Metrics() {
		if err, ok := e.Failed[m]; ok {
			errs = append(errs, fmt.Errorf("%s: %w", m, err))
		}
	}
	return errors.Join(errs...)
}

// AsFetchError returns the FetchError inside err, if any.
func AsFetchError(err error) (*FetchError, bool) {
	var fe *FetchError
	ok := errors.As(err, &fe)
	return fe, ok
}

// fetchResult is one metric's outcome.
type fetchResult struct {
	metric scoring.Metric
	value  float64
	ok     bool
	err    error
}

// collect merges per-metric outcomes into an Input and an optional FetchError.
func collect(name string, results []fetchResult) (scoring.Input, error) {
	in := make(scoring.Input, len(results))
	var failed map[scoring.Metric]error
	for _, r := range results {
		switch {
		case r.err != nil:
			if failed == nil {
				failed = make(map[scoring.Metric]error)
			}
			failed[r.metric] = r.err
		case r.ok:
			in[r.metric] = r.value
		}
	}
	if failed != nil {
		return in, &FetchError{Provider: name, Failed: failed}
	}
	return in, nil
}
