package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/gitlytix/internal/adapters/ingest"
	"github.com/okian/gitlytix/internal/adapters/repository"
	service "github.com/okian/gitlytix/internal/app"
	"github.com/okian/gitlytix/internal/domain/model"
	"github.com/okian/gitlytix/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

const repo = "octo/widgets"

var t0 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func archive() []model.Event {
	ev := func(id string, typ model.EventType, action string, number int, actor string, after time.Duration) model.Event {
		return model.Event{ID: id, Type: typ, Action: action, Repo: repo, Number: number, Actor: actor, CreatedAt: t0.Add(after)}
	}
	merged := ev("7", model.PullRequestEvent, model.ActionClosed, 10, "bob", 10*time.Hour)
	merged.Merged = true
	bug := ev("1", model.IssuesEvent, model.ActionOpened, 1, "alice", 0)
	bug.Labels = []string{"bug"}
	fixed := ev("3", model.IssuesEvent, model.ActionClosed, 1, "bob", 24*time.Hour)
	fixed.Labels = []string{"bug"}
	return []model.Event{
		bug,
		ev("2", model.IssueCommentEvent, model.ActionCreated, 1, "bob", 2*time.Hour),
		fixed,
		ev("4", model.PullRequestEvent, model.ActionOpened, 10, "carol", 0),
		ev("5", model.PullRequestReviewEvent, "", 10, "bob", 3*time.Hour),
		ev("6", model.PushEvent, "", 0, "carol", time.Hour),
		merged,
	}
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func TestService_Integration(t *testing.T) {
	Convey("Given a service over a SQLite event store", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		store := repository.NewSQLiteStore(filepath.Join(t.TempDir(), "events.db"))
		So(store.Init(ctx), ShouldBeNil)
		defer store.Close()

		now := t0.Add(48 * time.Hour)
		svc := service.New(
			service.WithStore(store),
			service.WithClock(func() time.Time { return now }),
			service.WithWorkerCount(2),
			service.WithBatchSize(3),
			service.WithFlushInterval(20*time.Millisecond),
			service.WithRefreshInterval(time.Hour),
			service.WithFreshness(24*time.Hour, 7*24*time.Hour),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When the archive is ingested", func() {
			events := archive()
			counts, err := svc.Ingest(ctx, append(events, events[0], model.Event{ID: "bad"}))
			So(err, ShouldBeNil)
			So(counts.Enqueued, ShouldEqual, len(events))
			So(counts.Duplicate, ShouldEqual, 1)
			So(counts.Invalid, ShouldEqual, 1)

			stored := waitFor(func() bool {
				st, ok := svc.GetStats()["ingest"].(ingest.PoolStats)
				return ok && st.Inserted == int64(len(events))
			})
			So(stored, ShouldBeTrue)

			Convey("Then the stats endpoints answer with readable times", func() {
				fr, err := svc.FirstResponse(ctx, repo, t0.Add(-time.Hour), true)
				So(err, ShouldBeNil)
				So(fr.AverageSeconds, ShouldEqual, 7200)
				So(fr.AverageReadable, ShouldEqual, "2 hours")

				res, err := svc.Resolution(ctx, repo, t0.Add(-time.Hour), now)
				So(err, ShouldBeNil)
				So(res.AverageReadable, ShouldEqual, "1 day")
				So(res.Period.End, ShouldEqual, "2025-03-12")

				rv, err := svc.PRReview(ctx, repo)
				So(err, ShouldBeNil)
				So(*rv.AverageReadable, ShouldEqual, "3 hours")

				// The newest event closed the bug a day before now: still fresh.
				dq, err := svc.DataQuality(ctx, repo)
				So(err, ShouldBeNil)
				So(dq.DataFreshnessStatus, ShouldEqual, model.Fresh)
				So(dq.TimeSinceLatestEvent, ShouldEqual, "1 day")
			})

			Convey("Then the ingested repo is scored in the background", func() {
				So(waitFor(func() bool {
					_, err := svc.Rank(ctx, repo)
					return err == nil
				}), ShouldBeTrue)

				report, err := svc.Score(ctx, repo)
				So(err, ShouldBeNil)
				So(report.Provider, ShouldEqual, "store")
				So(report.Input, ShouldResemble, scoring.Input{
					scoring.FirstResponse:   7200,
					scoring.IssueResolution: 86400,
					scoring.PRReview:        10800,
				})
				So(report.Score, ShouldAlmostEqual, 97.86, 0.001)
			})

			Convey("Then the dashboard has every section", func() {
				d, err := svc.Dashboard(ctx, repo)
				So(err, ShouldBeNil)
				So(d.Errors, ShouldBeEmpty)
				So(d.Score, ShouldNotBeNil)
				So(d.FirstResponse, ShouldNotBeNil)
				So(d.Resolution, ShouldNotBeNil)
				So(d.PRReview, ShouldNotBeNil)
				So(*d.NewContributors, ShouldEqual, 1)
				So(d.BugFixRate.RatePercent, ShouldEqual, 100)
				So(len(d.Issues), ShouldEqual, 6)
				So(d.Issues[5], ShouldResemble, model.MonthlyIssueStat{Month: "2025-03", Opened: 1, Closed: 1})
				So(len(d.Releases), ShouldEqual, 6)
				So(d.DataQuality, ShouldNotBeNil)
			})
		})

		Convey("When a repo has no data", func() {
			_, err := svc.FirstResponse(ctx, "empty/repo", t0, true)
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			So(service.IsNotFound(err), ShouldBeTrue)

			d, err := svc.Dashboard(ctx, "empty/repo")
			So(err, ShouldBeNil)
			So(d.FirstResponse, ShouldBeNil)
			So(d.Errors, ShouldContainKey, "first_response")
			So(d.Errors["data_quality"], ShouldContainSubstring, "not found")
		})
	})
}

type fakeClone struct {
	releases     []model.MonthlyReleases
	contributors int
}

func (f fakeClone) MonthlyReleases(context.Context, time.Time, int) ([]model.MonthlyReleases, error) {
	return f.releases, nil
}

func (f fakeClone) NewContributors(context.Context, time.Time) (int, error) {
	return f.contributors, nil
}

func TestService_GitHistoryScopedToItsRepo(t *testing.T) {
	Convey("Given a clone of one repo and stored events of another", t, func() {
		ctx := context.Background()
		store := repository.NewSQLiteStore(filepath.Join(t.TempDir(), "events.db"))
		So(store.Init(ctx), ShouldBeNil)
		defer store.Close()
		_, err := store.InsertEvents(ctx, archive())
		So(err, ShouldBeNil)

		now := t0.Add(48 * time.Hour)
		clone := fakeClone{
			releases:     []model.MonthlyReleases{{Month: "2025-03", Releases: 9}},
			contributors: 42,
		}
		svc := service.New(
			service.WithStore(store),
			service.WithClock(func() time.Time { return now }),
			service.WithGitRepo("octo/clone", clone),
		)
		since := t0.Add(-time.Hour)

		Convey("Then the cloned repo is answered from git", func() {
			n, err := svc.NewContributors(ctx, "octo/clone", since)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 42)

			rel, err := svc.MonthlyReleases(ctx, "octo/clone")
			So(err, ShouldBeNil)
			So(rel, ShouldResemble, clone.releases)
		})

		Convey("Then any other repo is answered from the store", func() {
			want, err := store.NewContributors(ctx, repo, since)
			So(err, ShouldBeNil)
			n, err := svc.NewContributors(ctx, repo, since)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, want)
			So(n, ShouldNotEqual, 42)

			wantRel, err := store.MonthlyReleases(ctx, repo, now, 6)
			So(err, ShouldBeNil)
			rel, err := svc.MonthlyReleases(ctx, repo)
			So(err, ShouldBeNil)
			So(rel, ShouldResemble, wantRel)
		})
	})
}
