package repository

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/okian/gitlytix/internal/domain/model"
	"github.com/okian/gitlytix/pkg/logger"
)

func TestMain(m *testing.M) {
	_ = logger.Init(logger.WithSink(zapcore.AddSync(io.Discard)))
	os.Exit(m.Run())
}

const testRepo = "octo/widgets"

var base = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func at(d time.Duration) time.Time { return base.Add(d) }

func ev(id string, typ model.EventType, action string, number int, actor string, when time.Time) model.Event {
	return model.Event{ID: id, Type: typ, Action: action, Repo: testRepo, Number: number, Actor: actor, CreatedAt: when}
}

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "events.db"), WithBusyTimeout(time.Second))
	require.NoError(t, store.Init(context.Background()), "Init should not return an error")
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seed(t *testing.T, store *SQLiteStore, events ...model.Event) {
	t.Helper()
	_, err := store.InsertEvents(context.Background(), events)
	require.NoError(t, err)
}

func TestSQLiteStore_Init(t *testing.T) {
	store := newTestStore(t)
	// Init is idempotent on an existing file.
	again := NewSQLiteStore(store.dbPath)
	assert.NoError(t, again.Init(context.Background()))
	assert.NoError(t, again.Close())
}

func TestSQLiteStore_NotOpen(t *testing.T) {
	store := NewSQLiteStore("unused.db")
	_, err := store.InsertEvents(context.Background(), []model.Event{ev("1", model.PushEvent, "", 0, "a", base)})
	assert.ErrorIs(t, err, ErrNotOpen)
	_, err = store.LatestEvent(context.Background(), testRepo)
	assert.ErrorIs(t, err, ErrNotOpen)
	assert.NoError(t, store.Close())
}

func TestSQLiteStore_InsertEvents(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	events := []model.Event{
		ev("1", model.IssuesEvent, model.ActionOpened, 1, "alice", at(0)),
		ev("2", model.IssuesEvent, model.ActionClosed, 1, "bob", at(time.Hour)),
	}
	n, err := store.InsertEvents(ctx, events)
	assert.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = store.InsertEvents(ctx, append(events, ev("3", model.PushEvent, "", 0, "carol", at(2*time.Hour))))
	assert.NoError(t, err)
	assert.Equal(t, 1, n, "duplicate ids should be ignored")

	n, err = store.InsertEvents(ctx, nil)
	assert.NoError(t, err)
	assert.Zero(t, n)

	repos, err := store.Repos(ctx)
	assert.NoError(t, err)
	assert.Equal(t, []string{testRepo}, repos)

	latest, err := store.LatestEvent(ctx, testRepo)
	assert.NoError(t, err)
	assert.True(t, latest.Equal(at(2*time.Hour)))

	_, err = store.LatestEvent(ctx, "nobody/here")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_FirstResponse(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seed(t, store,
		// Issue 1: opener replies first, then a maintainer after 2h.
		ev("1", model.IssuesEvent, model.ActionOpened, 1, "alice", at(0)),
		ev("2", model.IssueCommentEvent, model.ActionCreated, 1, "alice", at(30*time.Minute)),
		ev("3", model.IssueCommentEvent, model.ActionCreated, 1, "bob", at(2*time.Hour)),
		// Issue 2: answered after 4h.
		ev("4", model.IssuesEvent, model.ActionOpened, 2, "carol", at(0)),
		ev("5", model.IssueCommentEvent, model.ActionCreated, 2, "bob", at(4*time.Hour)),
		// Issue 3: never answered.
		ev("6", model.IssuesEvent, model.ActionOpened, 3, "dave", at(0)),
		// Issue 4: opened before the window.
		ev("7", model.IssuesEvent, model.ActionOpened, 4, "erin", at(-30*24*time.Hour)),
		ev("8", model.IssueCommentEvent, model.ActionCreated, 4, "bob", at(-29*24*time.Hour)),
	)
	since := at(-7 * 24 * time.Hour)

	got, err := store.FirstResponse(ctx, testRepo, since, true)
	assert.NoError(t, err)
	assert.Equal(t, testRepo, got.Repository)
	assert.Equal(t, 2, got.IssueCount)
	assert.Equal(t, float64(3*3600), got.AverageSeconds)

	got, err = store.FirstResponse(ctx, testRepo, since, false)
	assert.NoError(t, err)
	assert.Equal(t, float64((1800+4*3600)/2), got.AverageSeconds)

	_, err = store.FirstResponse(ctx, "other/repo", since, true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_Resolution(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seed(t, store,
		ev("1", model.IssuesEvent, model.ActionOpened, 1, "alice", at(0)),
		ev("2", model.IssuesEvent, model.ActionClosed, 1, "bob", at(24*time.Hour)),
		ev("3", model.IssuesEvent, model.ActionOpened, 2, "alice", at(0)),
		ev("4", model.IssuesEvent, model.ActionClosed, 2, "bob", at(time.Hour)),
		ev("5", model.IssuesEvent, model.ActionClosed, 2, "bob", at(3*24*time.Hour)),
		ev("6", model.IssuesEvent, model.ActionOpened, 3, "alice", at(0)),
	)

	got, err := store.Resolution(ctx, testRepo, at(-time.Hour), at(10*24*time.Hour))
	assert.NoError(t, err)
	assert.Equal(t, 2, got.TotalIssuesResolved)
	// Latest close wins: (1d + 3d) / 2.
	assert.Equal(t, float64(2*24*3600), got.AverageSeconds)

	_, err = store.Resolution(ctx, testRepo, at(100*24*time.Hour), at(200*24*time.Hour))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_MonthlyIssues(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	seed(t, store,
		ev("1", model.IssuesEvent, model.ActionOpened, 1, "a", time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)),
		ev("2", model.IssuesEvent, model.ActionOpened, 2, "a", time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)),
		ev("3", model.IssuesEvent, model.ActionClosed, 1, "b", time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)),
		ev("4", model.IssuesEvent, model.ActionOpened, 3, "a", time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)),
		ev("5", model.IssuesEvent, model.ActionOpened, 4, "a", time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)),
	)

	got, err := store.MonthlyIssues(ctx, testRepo, now, 6)
	assert.NoError(t, err)
	assert.Equal(t, []model.MonthlyIssueStat{
		{Month: "2025-01"},
		{Month: "2025-02"},
		{Month: "2025-03", Opened: 1},
		{Month: "2025-04"},
		{Month: "2025-05"},
		{Month: "2025-06", Opened: 2, Closed: 1},
	}, got)
}

func TestSQLiteStore_PullRequests(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	merged := ev("3", model.PullRequestEvent, model.ActionClosed, 1, "bob", at(10*time.Hour))
	merged.Merged = true
	seed(t, store,
		// PR 1: reviewed by the author first, then by bob after 2h, merged.
		ev("1", model.PullRequestEvent, model.ActionOpened, 1, "alice", at(0)),
		ev("2", model.PullRequestReviewEvent, "", 1, "alice", at(time.Hour)),
		ev("2b", model.PullRequestReviewCommentEvent, model.ActionCreated, 1, "bob", at(2*time.Hour)),
		merged,
		// PR 2: closed unmerged after 20h, no review.
		ev("4", model.PullRequestEvent, model.ActionOpened, 2, "carol", at(0)),
		ev("5", model.PullRequestEvent, model.ActionClosed, 2, "carol", at(20*time.Hour)),
		// PR 3: closed, then reopened, so it does not count as closed.
		ev("6", model.PullRequestEvent, model.ActionOpened, 3, "dave", at(0)),
		ev("7", model.PullRequestEvent, model.ActionClosed, 3, "dave", at(time.Hour)),
		ev("8", model.PullRequestEvent, model.ActionReopened, 3, "dave", at(2*time.Hour)),
		ev("9", model.PullRequestReviewEvent, "", 3, "bob", at(4*time.Hour)),
	)

	rate, err := store.PRSuccessRate(ctx, testRepo)
	assert.NoError(t, err)
	assert.Equal(t, 2, rate.TotalClosedPRs)
	assert.Equal(t, 1, rate.MergedPRs)
	assert.Equal(t, 50.0, rate.SuccessRatePercent)

	closing, err := store.PRClosingTime(ctx, testRepo, at(-time.Hour))
	assert.NoError(t, err)
	// (10h + 20h + 1h) / 3.
	assert.Equal(t, float64(31*3600/3), closing.AverageSeconds)

	review, err := store.PRReview(ctx, testRepo)
	assert.NoError(t, err)
	assert.Equal(t, 2, review.ReviewedPRCount)
	require.NotNil(t, review.AverageSeconds)
	assert.Equal(t, float64(3*3600), *review.AverageSeconds)

	empty, err := store.PRReview(ctx, "other/repo")
	assert.NoError(t, err)
	assert.Nil(t, empty.AverageSeconds)
	assert.Zero(t, empty.ReviewedPRCount)

	_, err = store.PRSuccessRate(ctx, "other/repo")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.PRClosingTime(ctx, "other/repo", base)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_Community(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	bug := func(id, action string, number int, when time.Time) model.Event {
		e := ev(id, model.IssuesEvent, action, number, "alice", when)
		e.Labels = []string{"Type: Bug"}
		return e
	}
	seed(t, store,
		ev("p1", model.PushEvent, "", 0, "old-timer", at(-60*24*time.Hour)),
		ev("p2", model.PushEvent, "", 0, "old-timer", at(0)),
		ev("p3", model.PushEvent, "", 0, "newcomer", at(time.Hour)),
		ev("p4", model.PullRequestEvent, model.ActionOpened, 9, "drive-by", at(2*time.Hour)),
		ev("p5", model.IssueCommentEvent, model.ActionCreated, 1, "commenter", at(time.Hour)),
		bug("b1", model.ActionOpened, 1, at(0)),
		bug("b2", model.ActionClosed, 1, at(time.Hour)),
		bug("b3", model.ActionOpened, 2, at(0)),
		bug("b4", model.ActionOpened, 3, at(0)),
		bug("b5", model.ActionClosed, 3, at(2*time.Hour)),
		ev("i1", model.IssuesEvent, model.ActionOpened, 4, "alice", at(0)),
		ev("r1", model.ReleaseEvent, model.ActionPublished, 0, "alice", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)),
		ev("r2", model.ReleaseEvent, model.ActionPublished, 0, "alice", time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)),
		ev("r3", model.ReleaseEvent, model.ActionPublished, 0, "alice", time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)),
	)

	n, err := store.NewContributors(ctx, testRepo, at(-24*time.Hour))
	assert.NoError(t, err)
	assert.Equal(t, 2, n)

	rate, err := store.BugFixRate(ctx, testRepo, at(-24*time.Hour))
	assert.NoError(t, err)
	assert.Equal(t, model.BugFixRate{Repository: testRepo, BugsOpened: 3, BugsClosed: 2, RatePercent: 66.67}, rate)

	_, err = store.BugFixRate(ctx, testRepo, at(24*time.Hour))
	assert.ErrorIs(t, err, ErrNotFound)

	releases, err := store.MonthlyReleases(ctx, testRepo, base, 3)
	assert.NoError(t, err)
	assert.Equal(t, []model.MonthlyReleases{
		{Month: "2025-01", Releases: 1},
		{Month: "2025-02"},
		{Month: "2025-03", Releases: 2},
	}, releases)
}
