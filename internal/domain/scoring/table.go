package scoring

import (
	"fmt"
	"math"
)

// Seconds in the default operating ranges.
const (
	day = 24 * 60 * 60

	defaultFirstResponseMax   = 7 * day
	defaultIssueResolutionMax = 30 * day
	defaultPRReviewMax        = 5 * day

	weightSumTolerance = 1e-9
)

// MetricConfig is the normalization range and weight of one metric.
type MetricConfig struct {
	Weight float64 `json:"weight" yaml:"weight" koanf:"weight"`
	Min    float64 `json:"min" yaml:"min" koanf:"min"`
	Max    float64 `json:"max" yaml:"max" koanf:"max"`
}

func (c MetricConfig) validate(m Metric) error {
	switch {
	case math.IsNaN(c.Weight) || math.IsInf(c.Weight, 0),
		math.IsNaN(c.Min) || math.IsInf(c.Min, 0),
		math.IsNaN(c.Max) || math.IsInf(c.Max, 0):
		return fmt.Errorf("%w: %s has a non-finite value", ErrInvalidConfig, m.Key())
	case c.Weight < 0 || c.Weight > 1:
		return fmt.Errorf("%w: %s weight %v outside [0,1]", ErrInvalidConfig, m.Key(), c.Weight)
	case c.Min > c.Max:
		return fmt.Errorf("%w: %s min %v above max %v", ErrInvalidConfig, m.Key(), c.Min, c.Max)
	}
	return nil
}

// Table is the immutable set of configured metrics. The zero value is empty;
// build one with NewTable or DefaultTable. Copies share nothing mutable.
type Table struct {
	entries [numMetrics]MetricConfig
	present [numMetrics]bool
}

// DefaultTable returns the stock configuration.
func DefaultTable() Table {
	return MustTable(map[Metric]MetricConfig{
		FirstResponse:   {Weight: 0.40, Min: 0, Max: defaultFirstResponseMax},
		IssueResolution: {Weight: 0.20, Min: 0, Max: defaultIssueResolutionMax},
		PRReview:        {Weight: 0.40, Min: 0, Max: defaultPRReviewMax},
	})
}

// NewTable validates cfg and freezes it. Weights must lie in [0,1] and sum
// to 1, bounds must be finite with min <= max.
func NewTable(cfg map[Metric]MetricConfig) (Table, error) {
	var t Table
	if len(cfg) == 0 {
		return t, fmt.Errorf("%w: no metrics configured", ErrInvalidConfig)
	}
	sum := 0.0
	for m, c := range cfg {
		if !m.Valid() {
			return Table{}, fmt.Errorf("%w: %d", ErrUnknownMetric, int(m))
		}
		if err := c.validate(m); err != nil {
			return Table{}, err
		}
		t.entries[m] = c
		t.present[m] = true
		sum += c.Weight
	}
	if math.Abs(sum-1) > weightSumTolerance {
		return Table{}, fmt.Errorf("%w: weights sum to %v, want 1", ErrInvalidConfig, sum)
	}
	return t, nil
}

// MustTable is NewTable that panics on error.
func MustTable(cfg map[Metric]MetricConfig) Table {
	t, err := NewTable(cfg)
	if err != nil {
		panic(err)
	}
	return t
}

// Lookup returns the config of m and whether it is part of the table.
func (t Table) Lookup(m Metric) (MetricConfig, bool) {
	if !m.Valid() || !t.present[m] {
		return MetricConfig{}, false
	}
	return t.entries[m], true
}

// Len returns the number of configured metrics.
func (t Table) Len() int {
	n := 0
	for _, ok := range t.present {
		if ok {
			n++
		}
	}
	return n
}

// Each calls fn for every configured metric in table order.
func (t Table) Each(fn func(Metric, MetricConfig)) {
	for m := Metric(0); m < numMetrics; m++ {
		if t.present[m] {
			fn(m, t.entries[m])
		}
	}
}

// Map returns a copy of the table keyed by metric.
func (t Table) Map() map[Metric]MetricConfig {
	out := make(map[Metric]MetricConfig, numMetrics)
	t.Each(func(m Metric, c MetricConfig) { out[m] = c })
	return out
}
