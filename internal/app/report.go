package service

import (
	"time"

	"github.com/okian/gitlytix/internal/domain/model"
	"github.com/okian/gitlytix/internal/domain/scoring"
)

// ScoreReport is a score with the inputs that produced it.
type ScoreReport struct {
	scoring.Result `yaml:",inline"`

	Repository string        `json:"repository,omitempty" yaml:"repository,omitempty"`
	Provider   string        `json:"provider" yaml:"provider"`
	Input      scoring.Input `json:"input" yaml:"input"`
	Warnings   []string      `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	ComputedAt time.Time     `json:"computed_at" yaml:"computed_at"`
}

// Dashboard is everything the dashboard page shows for one repository.
// Sections that could not be computed are left empty.
type Dashboard struct {
	Repository      string                   `json:"repository"`
	Score           *ScoreReport             `json:"score,omitempty"`
	FirstResponse   *model.FirstResponse     `json:"first_response,omitempty"`
	Resolution      *model.Resolution        `json:"resolution,omitempty"`
	PRReview        *model.PRReview          `json:"pr_review,omitempty"`
	NewContributors *int                     `json:"new_contributors,omitempty"`
	BugFixRate      *model.BugFixRate        `json:"bug_fix_rate,omitempty"`
	Releases        []model.MonthlyReleases  `json:"releases,omitempty"`
	Issues          []model.MonthlyIssueStat `json:"issues,omitempty"`
	DataQuality     *model.DataQuality       `json:"data_quality,omitempty"`
	Errors          map[string]string        `json:"errors,omitempty"`
	GeneratedAt     time.Time                `json:"generated_at"`
}
