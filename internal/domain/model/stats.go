package model

import "time"

// Period is an inclusive date window, formatted YYYY-MM-DD.
type Period struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// FirstResponse is the average delay before someone answers a new issue.
type FirstResponse struct {
	Repository      string  `json:"repository"`
	AverageSeconds  float64 `json:"average_response_time_seconds"`
	AverageReadable string  `json:"average_response_time_readable"`
	IssueCount      int     `json:"issue_count"`
}

// Resolution is the average issue open-to-close time over a period.
type Resolution struct {
	Repository          string  `json:"repository"`
	Period              Period  `json:"period"`
	AverageSeconds      float64 `json:"average_resolution_time_seconds"`
	AverageReadable     string  `json:"average_resolution_time_readable"`
	TotalIssuesResolved int     `json:"total_issues_resolved"`
}

// MonthlyIssueStat counts issue opens and closes in one month (YYYY-MM).
type MonthlyIssueStat struct {
	Month  string `json:"month"`
	Opened int    `json:"opened"`
	Closed int    `json:"closed"`
}

// PRSuccessRate is the share of closed pull requests that were merged.
type PRSuccessRate struct {
	Repository         string  `json:"repository"`
	TotalClosedPRs     int     `json:"total_closed_prs"`
	MergedPRs          int     `json:"merged_prs"`
	SuccessRatePercent float64 `json:"success_rate_percent"`
}

// PRClosingTime is the average pull request open-to-close time.
type PRClosingTime struct {
	Repository      string  `json:"repository"`
	AverageSeconds  float64 `json:"average_closing_time_seconds"`
	AverageReadable string  `json:"average_closing_time_readable"`
}

// PRReview is the average wait for a first review by someone other than the
// author. The average is nil when no pull request was reviewed.
type PRReview struct {
	Repository      string   `json:"repository"`
	ReviewedPRCount int      `json:"reviewed_pr_count"`
	AverageSeconds  *float64 `json:"average_review_time_seconds"`
	AverageReadable *string  `json:"average_review_time_readable"`
}

// Freshness buckets the age of the newest stored event.
type Freshness string

const (
	Fresh    Freshness = "Fresh"
	Stale    Freshness = "Stale"
	Outdated Freshness = "Outdated"
)

// DataQuality describes how current the stored events are.
type DataQuality struct {
	Repository           string    `json:"repository"`
	LatestEventTime      time.Time `json:"latest_event_time"`
	TimeSinceLatestEvent string    `json:"time_since_latest_event"`
	DataFreshnessStatus  Freshness `json:"data_freshness_status"`
}

// MonthlyReleases counts releases in one month (YYYY-MM).
type MonthlyReleases struct {
	Month    string `json:"month"`
	Releases int    `json:"releases"`
}

// BugFixRate is the share of bug-labelled issues that were closed.
type BugFixRate struct {
	Repository  string  `json:"repository"`
	BugsOpened  int     `json:"bugs_opened"`
	BugsClosed  int     `json:"bugs_closed"`
	RatePercent float64 `json:"rate_percent"`
}
