package scoring

import "math"

const (
	maxScore = 100.0
	minScore = 0.0
)

// Input maps metrics to raw measurements in seconds. Metrics absent from the
// map are skipped, and so are NaN and infinite values: they add nothing to
// the total and the remaining weights are not rescaled.
type Input map[Metric]float64

// SkipReason says why a configured metric did not contribute.
type SkipReason string

const (
	SkipMissing   SkipReason = "missing"
	SkipNonFinite SkipReason = "non_finite"
)

// Contribution is the share one metric added to a score.
type Contribution struct {
	Metric     Metric  `json:"metric" yaml:"metric"`
	Raw        float64 `json:"raw_seconds" yaml:"raw_seconds"`
	Normalized float64 `json:"normalized" yaml:"normalized"`
	Weight     float64 `json:"weight" yaml:"weight"`
	Weighted   float64 `json:"weighted" yaml:"weighted"`
}

// Skip records a configured metric that was left out.
type Skip struct {
	Metric Metric     `json:"metric" yaml:"metric"`
	Reason SkipReason `json:"reason" yaml:"reason"`
}

// Result is a score together with how it was reached.
type Result struct {
	Score         float64        `json:"score" yaml:"score"`
	State         State          `json:"state" yaml:"state"`
	Coverage      float64        `json:"coverage" yaml:"coverage"`
	Contributions []Contribution `json:"contributions" yaml:"contributions"`
	Skipped       []Skip         `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

// Calculator computes composite scores against a fixed Table. It holds no
// mutable state and may be shared between goroutines.
type Calculator struct {
	table Table
}

// NewCalculator returns a calculator bound to table.
func NewCalculator(table Table) *Calculator {
	return &Calculator{table: table}
}

// Table returns the calculator's configuration.
func (c *Calculator) Table() Table { return c.table }

// Compute returns the weighted score of in, rounded to two decimals.
func (c *Calculator) Compute(in Input) float64 {
	total := 0.0
	c.table.Each(func(m Metric, cfg MetricConfig) {
		v, ok := in[m]
		if !ok || !finite(v) {
			return
		}
		total += Normalize(v, cfg.Min, cfg.Max) * cfg.Weight
	})
	return round2(total)
}

// Explain computes the same score as Compute and reports each metric's part.
func (c *Calculator) Explain(in Input) Result {
	res := Result{Contributions: make([]Contribution, 0, c.table.Len())}
	total := 0.0
	c.table.Each(func(m Metric, cfg MetricConfig) {
		v, ok := in[m]
		switch {
		case !ok:
			res.Skipped = append(res.Skipped, Skip{Metric: m, Reason: SkipMissing})
			return
		case !finite(v):
			res.Skipped = append(res.Skipped, Skip{Metric: m, Reason: SkipNonFinite})
			return
		}
		n := Normalize(v, cfg.Min, cfg.Max)
		w := n * cfg.Weight
		total += w
		res.Coverage += cfg.Weight
		res.Contributions = append(res.Contributions, Contribution{
			Metric:     m,
			Raw:        v,
			Normalized: round2(n),
			Weight:     cfg.Weight,
			Weighted:   round2(w),
		})
	})
	res.Score = round2(total)
	res.Coverage = round2(res.Coverage)
	res.State = StateFor(res.Score, res.Coverage)
	return res
}

// Normalize maps value onto [0,100] where min scores 100 and max scores 0.
// Values outside the range are clamped. When min equals max only an exact
// match scores 100.
func Normalize(value, min, max float64) float64 {
	if min == max {
		if value == min {
			return maxScore
		}
		return minScore
	}
	capped := clamp(value, min, max)
	normalized := (max - capped) / (max - min)
	return clamp(normalized*maxScore, minScore, maxScore)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
