// Package repository persists GitHub events and ranks repositories by score.
package repository

import (
	"context"
	"time"

	"github.com/okian/gitlytix/internal/domain/model"
	"github.com/okian/gitlytix/internal/domain/types"
)

// Entry is one scoreboard row.
type Entry = types.Entry

// EventStore persists GitHub events and answers the stats queries behind the
// dashboard. Averages are in seconds; queries with nothing to average return
// ErrNotFound.
type EventStore interface {
	// InsertEvents stores events, ignoring ids already present, and returns
	// the number of new rows.
	InsertEvents(ctx context.Context, events []model.Event) (int, error)

	FirstResponse(ctx context.Context, repo string, since time.Time, excludeOpener bool) (model.FirstResponse, error)
	Resolution(ctx context.Context, repo string, start, end time.Time) (model.Resolution, error)
	MonthlyIssues(ctx context.Context, repo string, now time.Time, months int) ([]model.MonthlyIssueStat, error)
	PRSuccessRate(ctx context.Context, repo string) (model.PRSuccessRate, error)
	PRClosingTime(ctx context.Context, repo string, since time.Time) (model.PRClosingTime, error)
	// PRReview never returns ErrNotFound; an unreviewed repository has a nil average.
	PRReview(ctx context.Context, repo string) (model.PRReview, error)
	LatestEvent(ctx context.Context, repo string) (time.Time, error)
	NewContributors(ctx context.Context, repo string, since time.Time) (int, error)
	BugFixRate(ctx context.Context, repo string, since time.Time) (model.BugFixRate, error)
	MonthlyReleases(ctx context.Context, repo string, now time.Time, months int) ([]model.MonthlyReleases, error)
	Repos(ctx context.Context) ([]string, error)

	Close() error
}

// Ranking provides read/write access to the repository leaderboard.
type Ranking interface {
	// Put records the latest score of repo, replacing any previous one.
	Put(ctx context.Context, repo string, score float64, state string) error

	// Rank returns the current rank and score for repo.
	// Returns ErrNotFound if the repo was never scored.
	Rank(ctx context.Context, repo string) (Entry, error)

	// TopN returns the top-N entries ordered by score desc.
	TopN(ctx context.Context, n int) ([]Entry, error)

	// Count returns the number of repositories on the board.
	Count(ctx context.Context) int
}
