// Package scoring turns time-to-X project measurements into a single 0-100
// health score.
package scoring

import (
	"fmt"
	"strings"
)

// Metric identifies one scorable measurement. The set is closed.
type Metric int

const (
	// FirstResponse is the average time until the first maintainer comment on an issue.
	FirstResponse Metric = iota
	// IssueResolution is the average time from issue open to close.
	IssueResolution
	// PRReview is the average time from pull request open to its first review.
	PRReview

	numMetrics
)

var metricKeys = [numMetrics]string{
	FirstResponse:   "first_response_time",
	IssueResolution: "issue_resolution_time",
	PRReview:        "pr_review_time",
}

var metricNames = [numMetrics]string{
	FirstResponse:   "first-response time",
	IssueResolution: "average issue resolution time",
	PRReview:        "PR review time",
}

// Metrics returns every metric in table order.
func Metrics() []Metric {
	return []Metric{FirstResponse, IssueResolution, PRReview}
}

// Valid reports whether m is one of the declared metrics.
func (m Metric) Valid() bool { return m >= 0 && m < numMetrics }

// Key returns the wire name used in JSON, YAML and config files.
func (m Metric) Key() string {
	if !m.Valid() {
		return fmt.Sprintf("metric(%d)", int(m))
	}
	return metricKeys[m]
}

// String returns a human readable name.
func (m Metric) String() string {
	if !m.Valid() {
		return fmt.Sprintf("metric(%d)", int(m))
	}
	return metricNames[m]
}

// MarshalText encodes the metric as its key.
func (m Metric) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMetric, int(m))
	}
	return []byte(m.Key()), nil
}

// UnmarshalText accepts anything ParseMetric accepts.
func (m *Metric) UnmarshalText(b []byte) error {
	v, err := ParseMetric(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ParseMetric resolves a key or one of its common spellings
// ("firstResponse", "first-response-time", "prReviewTime", ...).
func ParseMetric(s string) (Metric, error) {
	k := strings.ToLower(strings.TrimSpace(s))
	k = strings.NewReplacer("_", "", "-", "", " ", "").Replace(k)
	switch k {
	case "firstresponse", "firstresponsetime", "firstresponsetimeseconds":
		return FirstResponse, nil
	case "issueresolution", "issueresolutiontime", "resolution", "avgissueresolution", "avgresolutiontime":
		return IssueResolution, nil
	case "prreview", "prreviewtime", "reviewtime":
		return PRReview, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMetric, s)
}
