package site

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/zap/zapcore"

	service "github.com/okian/gitlytix/internal/app"
	"github.com/okian/gitlytix/internal/domain/model"
	"github.com/okian/gitlytix/internal/domain/scoring"
	"github.com/okian/gitlytix/internal/domain/types"
	"github.com/okian/gitlytix/pkg/logger"
)

func init() {
	if err := logger.Init(logger.WithSink(zapcore.AddSync(io.Discard))); err != nil {
		panic(err)
	}
}

type fakeSource struct {
	err       error
	requested string
}

func (f *fakeSource) Dashboard(_ context.Context, repo string) (service.Dashboard, error) {
	f.requested = repo
	if f.err != nil {
		return service.Dashboard{}, f.err
	}
	calc := scoring.NewCalculator(scoring.DefaultTable())
	in := scoring.Input{scoring.FirstResponse: 7560, scoring.IssueResolution: 259200, scoring.PRReview: 129600}
	contributors := 4
	return service.Dashboard{
		Repository:      repo,
		Score:           &service.ScoreReport{Result: calc.Explain(in), Provider: "mock", Input: in},
		FirstResponse:   &model.FirstResponse{AverageSeconds: 7560, AverageReadable: "2 hours 6 minutes", IssueCount: 12},
		NewContributors: &contributors,
		Issues:          []model.MonthlyIssueStat{{Month: "2025-03", Opened: 5, Closed: 3}},
		Errors:          map[string]string{"releases": "not found"},
		GeneratedAt:     time.Date(2025, 3, 12, 15, 0, 0, 0, time.UTC),
	}, nil
}

func (f *fakeSource) TopN(context.Context, int) ([]types.Entry, error) {
	return []types.Entry{{Rank: 1, Repo: "octo/widgets", Score: 85.5, State: "healthy"}}, nil
}

func get(r http.Handler, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, http.NoBody))
	return w
}

func TestSiteHandler(t *testing.T) {
	Convey("Given a site handler", t, func() {
		ctx := context.Background()
		src := &fakeSource{}
		r := mux.NewRouter()
		Register(ctx, r, src, "octo/widgets")

		Convey("When the root is requested without a repo", func() {
			w := get(r, "/")

			Convey("Then the default repo is rendered", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldContainSubstring, "text/html")
				So(src.requested, ShouldEqual, "octo/widgets")
				body := w.Body.String()
				So(body, ShouldContainSubstring, `id="repo-input"`)
				So(body, ShouldContainSubstring, "85.50")
				So(body, ShouldContainSubstring, "healthy")
				So(body, ShouldContainSubstring, "2 hours 6 minutes")
				So(body, ShouldContainSubstring, `id="issues"`)
				So(body, ShouldContainSubstring, "releases: not found")
				So(body, ShouldContainSubstring, `id="leaderboard"`)
			})
		})

		Convey("When another repo is named", func() {
			w := get(r, "/?repo_name=golang/go")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(src.requested, ShouldEqual, "golang/go")
		})

		Convey("When the repo name is malformed", func() {
			w := get(r, "/?repo_name=nope")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(w.Body.String(), ShouldContainSubstring, "invalid repository name")
			So(src.requested, ShouldBeEmpty)
		})

		Convey("When the dashboard cannot be built", func() {
			src.err = errors.New("boom")
			w := get(r, "/")
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(w.Body.String(), ShouldContainSubstring, "boom")
		})

		Convey("When markup is smuggled in the repo name", func() {
			w := get(r, "/?repo_name=%3Cscript%3E/x")
			So(w.Body.String(), ShouldNotContainSubstring, "<script>/x")
		})
	})
}

func TestSiteWithoutDefaultRepo(t *testing.T) {
	Convey("Given no default repo", t, func() {
		src := &fakeSource{}
		r := mux.NewRouter()
		Register(context.Background(), r, src, "")

		Convey("Then only the form and leaderboard render", func() {
			w := get(r, "/")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(src.requested, ShouldBeEmpty)
			So(w.Body.String(), ShouldNotContainSubstring, `id="score"`)
			So(w.Body.String(), ShouldContainSubstring, `id="leaderboard"`)
		})
	})
}

func TestSiteHandlerWithNilRouter(t *testing.T) {
	Convey("Given a nil router", t, func() {
		Convey("Then registering panics", func() {
			So(func() { Register(context.Background(), nil, &fakeSource{}, "") }, ShouldPanic)
		})
	})
}
