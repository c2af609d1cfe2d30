package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/okian/gitlytix/internal/domain/model"
	"github.com/okian/gitlytix/internal/domain/timefmt"
	"github.com/okian/gitlytix/pkg/logger"
	"github.com/okian/gitlytix/pkg/metrics"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS github_events (
	id          TEXT PRIMARY KEY,
	event_type  TEXT    NOT NULL,
	action      TEXT    NOT NULL DEFAULT '',
	repo_name   TEXT    NOT NULL,
	number      INTEGER NOT NULL DEFAULT 0,
	actor_login TEXT    NOT NULL,
	created_at  INTEGER NOT NULL,
	merged      INTEGER NOT NULL DEFAULT 0,
	labels      TEXT    NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_events_repo_type ON github_events(repo_name, event_type, action, created_at);
CREATE INDEX IF NOT EXISTS idx_events_repo_number ON github_events(repo_name, number);`

// SQLiteStore is the EventStore backed by a single SQLite file.
// created_at is stored as unix seconds so durations are plain subtraction.
type SQLiteStore struct {
	db          *sql.DB
	dbPath      string
	busyTimeout time.Duration
}

var _ EventStore = (*SQLiteStore)(nil)

// NewSQLiteStore returns a store for path. Call Init before use.
func NewSQLiteStore(path string, opts ...SQLiteOption) *SQLiteStore {
	s := &SQLiteStore{dbPath: path, busyTimeout: 5 * time.Second}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init opens the database and creates the schema.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL", s.dbPath, s.busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return fmt.Errorf("error opening database: %w", err)
	}
	// One writer keeps SQLite out of "database is locked" territory.
	db.SetMaxOpenConns(1)

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("error connecting to database: %w", err)
	}
	if _, err = db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return fmt.Errorf("error creating schema: %w", err)
	}
	s.db = db

	logger.Get().Info(ctx, "sqlite store initialized", logger.String("path", s.dbPath))
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func observe(query string, start time.Time) {
	metrics.RecordStoreQueryLatency(query, float64(time.Since(start).Microseconds())/1000)
}

// InsertEvents implements EventStore.InsertEvents in one transaction.
func (s *SQLiteStore) InsertEvents(ctx context.Context, events []model.Event) (int, error) {
	if s.db == nil {
		return 0, ErrNotOpen
	}
	if len(events) == 0 {
		return 0, nil
	}
	defer observe("insert_events", time.Now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("error starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO github_events
		(id, event_type, action, repo_name, number, actor_login, created_at, merged, labels)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("error preparing insert statement: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for i := range events {
		e := &events[i]
		labels := e.Labels
		if labels == nil {
			labels = []string{}
		}
		rawLabels, err := json.Marshal(labels)
		if err != nil {
			return 0, fmt.Errorf("error encoding labels for %s: %w", e.ID, err)
		}
		res, err := stmt.ExecContext(ctx, e.ID, string(e.Type), e.Action, e.Repo, e.Number,
			e.Actor, e.CreatedAt.Unix(), e.Merged, string(rawLabels))
		if err != nil {
			return 0, fmt.Errorf("error inserting event %s: %w", e.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("error reading rows affected: %w", err)
		}
		inserted += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("error committing events: %w", err)
	}
	return inserted, nil
}

const firstResponseSQL = `
WITH openings AS (
	SELECT number, MIN(created_at) AS opened_at, actor_login AS opener
	FROM github_events
	WHERE repo_name = ? AND event_type = 'IssuesEvent' AND action = 'opened' AND created_at >= ?
	GROUP BY number
),
first_comments AS (
	SELECT o.number, o.opened_at, MIN(c.created_at) AS first_at
	FROM openings o
	JOIN github_events c ON c.repo_name = ? AND c.number = o.number
	WHERE c.event_type = 'IssueCommentEvent' AND c.action = 'created'
		AND c.created_at > o.opened_at
		AND (? = 0 OR c.actor_login <> o.opener)
	GROUP BY o.number, o.opened_at
)
SELECT AVG(first_at - opened_at), COUNT(*) FROM first_comments`

// FirstResponse implements EventStore.FirstResponse. Only comments made after
// the issue was opened count; excludeOpener ignores the opener's own replies.
func (s *SQLiteStore) FirstResponse(ctx context.Context, repo string, since time.Time, excludeOpener bool) (model.FirstResponse, error) {
	if s.db == nil {
		return model.FirstResponse{}, ErrNotOpen
	}
	defer observe("first_response", time.Now())

	var avg sql.NullFloat64
	var count int
	err := s.db.QueryRowContext(ctx, firstResponseSQL, repo, since.Unix(), repo, excludeOpener).Scan(&avg, &count)
	if err != nil {
		return model.FirstResponse{}, fmt.Errorf("error querying first response: %w", err)
	}
	if !avg.Valid {
		return model.FirstResponse{}, ErrNotFound
	}
	return model.FirstResponse{Repository: repo, AverageSeconds: round2(avg.Float64), IssueCount: count}, nil
}

const resolutionSQL = `
WITH timings AS (
	SELECT number,
		MIN(CASE WHEN action = 'opened' THEN created_at END) AS opened_at,
		MAX(CASE WHEN action = 'closed' THEN created_at END) AS closed_at
	FROM github_events
	WHERE repo_name = ? AND event_type = 'IssuesEvent' AND action IN ('opened', 'closed')
		AND created_at BETWEEN ? AND ?
	GROUP BY number
)
SELECT AVG(closed_at - opened_at), COUNT(*) FROM timings
WHERE opened_at IS NOT NULL AND closed_at IS NOT NULL AND closed_at > opened_at`

// Resolution implements EventStore.Resolution. Both bounds are inclusive.
func (s *SQLiteStore) Resolution(ctx context.Context, repo string, start, end time.Time) (model.Resolution, error) {
	if s.db == nil {
		return model.Resolution{}, ErrNotOpen
	}
	defer observe("resolution", time.Now())

	var avg sql.NullFloat64
	var count int
	err := s.db.QueryRowContext(ctx, resolutionSQL, repo, start.Unix(), end.Unix()).Scan(&avg, &count)
	if err != nil {
		return model.Resolution{}, fmt.Errorf("error querying resolution time: %w", err)
	}
	if !avg.Valid {
		return model.Resolution{}, ErrNotFound
	}
	return model.Resolution{
		Repository:          repo,
		AverageSeconds:      round2(avg.Float64),
		TotalIssuesResolved: count,
	}, nil
}

const monthlyIssuesSQL = `
SELECT strftime('%Y-%m', created_at, 'unixepoch') AS month,
	SUM(action = 'opened'), SUM(action = 'closed')
FROM github_events
WHERE repo_name = ? AND event_type = 'IssuesEvent' AND action IN ('opened', 'closed')
	AND created_at >= ? AND created_at <= ?
GROUP BY month`

// MonthlyIssues implements EventStore.MonthlyIssues. The result covers the
// last months calendar months up to now, oldest first, with empty months zeroed.
func (s *SQLiteStore) MonthlyIssues(ctx context.Context, repo string, now time.Time, months int) ([]model.MonthlyIssueStat, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}
	defer observe("monthly_issues", time.Now())

	keys, from := timefmt.MonthWindow(now, months)
	rows, err := s.db.QueryContext(ctx, monthlyIssuesSQL, repo, from.Unix(), now.Unix())
	if err != nil {
		return nil, fmt.Errorf("error querying monthly issues: %w", err)
	}
	defer rows.Close()

	type counts struct{ opened, closed int }
	byMonth := make(map[string]counts, len(keys))
	for rows.Next() {
		var month string
		var c counts
		if err := rows.Scan(&month, &c.opened, &c.closed); err != nil {
			return nil, fmt.Errorf("error scanning monthly issues: %w", err)
		}
		byMonth[month] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating monthly issues: %w", err)
	}

	out := make([]model.MonthlyIssueStat, 0, len(keys))
	for _, k := range keys {
		c := byMonth[k]
		out = append(out, model.MonthlyIssueStat{Month: k, Opened: c.opened, Closed: c.closed})
	}
	return out, nil
}

// The final row per pull request decides its state.
const prSuccessSQL = `
WITH last AS (
	SELECT number, action, merged, MAX(created_at)
	FROM github_events
	WHERE repo_name = ? AND event_type = 'PullRequestEvent'
	GROUP BY number
)
SELECT COUNT(*), COALESCE(SUM(merged), 0) FROM last WHERE action = 'closed'`

// PRSuccessRate implements EventStore.PRSuccessRate.
func (s *SQLiteStore) PRSuccessRate(ctx context.Context, repo string) (model.PRSuccessRate, error) {
	if s.db == nil {
		return model.PRSuccessRate{}, ErrNotOpen
	}
	defer observe("pr_success_rate", time.Now())

	var total, merged int
	if err := s.db.QueryRowContext(ctx, prSuccessSQL, repo).Scan(&total, &merged); err != nil {
		return model.PRSuccessRate{}, fmt.Errorf("error querying pr success rate: %w", err)
	}
	if total == 0 {
		return model.PRSuccessRate{}, ErrNotFound
	}
	return model.PRSuccessRate{
		Repository:         repo,
		TotalClosedPRs:     total,
		MergedPRs:          merged,
		SuccessRatePercent: round2(float64(merged) * 100 / float64(total)),
	}, nil
}

const prClosingSQL = `
WITH opened AS (
	SELECT number, MIN(created_at) AS opened_at
	FROM github_events
	WHERE repo_name = ? AND event_type = 'PullRequestEvent' AND action = 'opened' AND created_at >= ?
	GROUP BY number
),
closed AS (
	SELECT number, MAX(created_at) AS closed_at
	FROM github_events
	WHERE repo_name = ? AND event_type = 'PullRequestEvent' AND action = 'closed' AND created_at >= ?
	GROUP BY number
)
SELECT AVG(c.closed_at - o.opened_at) FROM opened o JOIN closed c ON c.number = o.number
WHERE c.closed_at > o.opened_at`

// PRClosingTime implements EventStore.PRClosingTime.
func (s *SQLiteStore) PRClosingTime(ctx context.Context, repo string, since time.Time) (model.PRClosingTime, error) {
	if s.db == nil {
		return model.PRClosingTime{}, ErrNotOpen
	}
	defer observe("pr_closing_time", time.Now())

	var avg sql.NullFloat64
	err := s.db.QueryRowContext(ctx, prClosingSQL, repo, since.Unix(), repo, since.Unix()).Scan(&avg)
	if err != nil {
		return model.PRClosingTime{}, fmt.Errorf("error querying pr closing time: %w", err)
	}
	if !avg.Valid {
		return model.PRClosingTime{}, ErrNotFound
	}
	return model.PRClosingTime{Repository: repo, AverageSeconds: round2(avg.Float64)}, nil
}

const prReviewSQL = `
WITH opened AS (
	SELECT number, MIN(created_at) AS opened_at, actor_login AS author
	FROM github_events
	WHERE repo_name = ? AND event_type = 'PullRequestEvent' AND action = 'opened'
	GROUP BY number
),
first_review AS (
	SELECT o.number, o.opened_at, MIN(r.created_at) AS reviewed_at
	FROM opened o
	JOIN github_events r ON r.repo_name = ? AND r.number = o.number
	WHERE r.event_type IN ('PullRequestReviewEvent', 'PullRequestReviewCommentEvent')
		AND r.actor_login <> o.author
		AND r.created_at >= o.opened_at
	GROUP BY o.number, o.opened_at
)
SELECT AVG(reviewed_at - opened_at), COUNT(*) FROM first_review`

// PRReview implements EventStore.PRReview.
func (s *SQLiteStore) PRReview(ctx context.Context, repo string) (model.PRReview, error) {
	if s.db == nil {
		return model.PRReview{}, ErrNotOpen
	}
	defer observe("pr_review", time.Now())

	var avg sql.NullFloat64
	var count int
	if err := s.db.QueryRowContext(ctx, prReviewSQL, repo, repo).Scan(&avg, &count); err != nil {
		return model.PRReview{}, fmt.Errorf("error querying pr review time: %w", err)
	}
	out := model.PRReview{Repository: repo, ReviewedPRCount: count}
	if avg.Valid {
		v := round2(avg.Float64)
		out.AverageSeconds = &v
	}
	return out, nil
}

// LatestEvent implements EventStore.LatestEvent.
func (s *SQLiteStore) LatestEvent(ctx context.Context, repo string) (time.Time, error) {
	if s.db == nil {
		return time.Time{}, ErrNotOpen
	}
	defer observe("latest_event", time.Now())

	var latest sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(created_at) FROM github_events WHERE repo_name = ?`, repo).Scan(&latest)
	if err != nil {
		return time.Time{}, fmt.Errorf("error querying latest event: %w", err)
	}
	if !latest.Valid {
		return time.Time{}, ErrNotFound
	}
	return time.Unix(latest.Int64, 0).UTC(), nil
}

const newContributorsSQL = `
SELECT COUNT(*) FROM (
	SELECT actor_login, MIN(created_at) AS first_at
	FROM github_events
	WHERE repo_name = ?
		AND (event_type = 'PushEvent' OR (event_type = 'PullRequestEvent' AND action = 'opened'))
	GROUP BY actor_login
) WHERE first_at >= ?`

// NewContributors implements EventStore.NewContributors: actors whose first
// push or opened pull request falls on or after since.
func (s *SQLiteStore) NewContributors(ctx context.Context, repo string, since time.Time) (int, error) {
	if s.db == nil {
		return 0, ErrNotOpen
	}
	defer observe("new_contributors", time.Now())

	var n int
	if err := s.db.QueryRowContext(ctx, newContributorsSQL, repo, since.Unix()).Scan(&n); err != nil {
		return 0, fmt.Errorf("error querying new contributors: %w", err)
	}
	return n, nil
}

const bugFixSQL = `
WITH bugs AS (
	SELECT number, MAX(action = 'opened') AS opened, MAX(action = 'closed') AS closed
	FROM github_events
	WHERE repo_name = ? AND event_type = 'IssuesEvent' AND lower(labels) LIKE '%bug%' AND created_at >= ?
	GROUP BY number
)
SELECT COALESCE(SUM(opened), 0), COALESCE(SUM(opened AND closed), 0) FROM bugs`

// BugFixRate implements EventStore.BugFixRate over issues opened since since.
func (s *SQLiteStore) BugFixRate(ctx context.Context, repo string, since time.Time) (model.BugFixRate, error) {
	if s.db == nil {
		return model.BugFixRate{}, ErrNotOpen
	}
	defer observe("bug_fix_rate", time.Now())

	var opened, closed int
	if err := s.db.QueryRowContext(ctx, bugFixSQL, repo, since.Unix()).Scan(&opened, &closed); err != nil {
		return model.BugFixRate{}, fmt.Errorf("error querying bug fix rate: %w", err)
	}
	if opened == 0 {
		return model.BugFixRate{}, ErrNotFound
	}
	return model.BugFixRate{
		Repository:  repo,
		BugsOpened:  opened,
		BugsClosed:  closed,
		RatePercent: round2(float64(closed) * 100 / float64(opened)),
	}, nil
}

const monthlyReleasesSQL = `
SELECT strftime('%Y-%m', created_at, 'unixepoch') AS month, COUNT(*)
FROM github_events
WHERE repo_name = ? AND event_type = 'ReleaseEvent' AND action = 'published'
	AND created_at >= ? AND created_at <= ?
GROUP BY month`

// MonthlyReleases implements EventStore.MonthlyReleases with the same window
// rules as MonthlyIssues.
func (s *SQLiteStore) MonthlyReleases(ctx context.Context, repo string, now time.Time, months int) ([]model.MonthlyReleases, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}
	defer observe("monthly_releases", time.Now())

	keys, from := timefmt.MonthWindow(now, months)
	rows, err := s.db.QueryContext(ctx, monthlyReleasesSQL, repo, from.Unix(), now.Unix())
	if err != nil {
		return nil, fmt.Errorf("error querying monthly releases: %w", err)
	}
	defer rows.Close()

	byMonth := make(map[string]int, len(keys))
	for rows.Next() {
		var month string
		var n int
		if err := rows.Scan(&month, &n); err != nil {
			return nil, fmt.Errorf("error scanning monthly releases: %w", err)
		}
		byMonth[month] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating monthly releases: %w", err)
	}

	out := make([]model.MonthlyReleases, 0, len(keys))
	for _, k := range keys {
		out = append(out, model.MonthlyReleases{Month: k, Releases: byMonth[k]})
	}
	return out, nil
}

// Repos implements EventStore.Repos.
func (s *SQLiteStore) Repos(ctx context.Context) ([]string, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}
	defer observe("repos", time.Now())

	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT repo_name FROM github_events ORDER BY repo_name`)
	if err != nil {
		return nil, fmt.Errorf("error querying repos: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var repo string
		if err := rows.Scan(&repo); err != nil {
			return nil, fmt.Errorf("error scanning repo: %w", err)
		}
		out = append(out, repo)
	}
	return out, rows.Err()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// IsNotFound reports whether err means the query had nothing to report.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
