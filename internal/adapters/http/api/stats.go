package api

import (
	"context"
	"net/http"
	"time"

	"github.com/okian/gitlytix/internal/domain/model"
)

// StatsProvider defines the interface for getting service statistics.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// StatsHandler handles stats requests.
type StatsHandler struct {
	statsProvider StatsProvider
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(statsProvider StatsProvider) *StatsHandler {
	return &StatsHandler{statsProvider: statsProvider}
}

// HandleStats handles GET /stats requests.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.statsProvider.GetStats())
}

// StatsDependencies are the per-repository event statistics.
type StatsDependencies interface {
	FirstResponse(ctx context.Context, repo string, since time.Time, excludeOpener bool) (model.FirstResponse, error)
	Resolution(ctx context.Context, repo string, start, end time.Time) (model.Resolution, error)
	MonthlyIssues(ctx context.Context, repo string) ([]model.MonthlyIssueStat, error)
	PRSuccessRate(ctx context.Context, repo string) (model.PRSuccessRate, error)
	PRClosingTime(ctx context.Context, repo string, since time.Time) (model.PRClosingTime, error)
	PRReview(ctx context.Context, repo string) (model.PRReview, error)
	DataQuality(ctx context.Context, repo string) (model.DataQuality, error)
}

// RepoStatsHandler serves /api/v1/stats/*.
type RepoStatsHandler struct {
	deps StatsDependencies
	now  func() time.Time
}

// NewRepoStatsHandler creates a repository stats handler. A nil now uses
// time.Now.
func NewRepoStatsHandler(deps StatsDependencies, now func() time.Time) *RepoStatsHandler {
	if now == nil {
		now = time.Now
	}
	return &RepoStatsHandler{deps: deps, now: now}
}

// HandleFirstResponse handles GET /api/v1/stats/issues/first-response-time.
func (h *RepoStatsHandler) HandleFirstResponse(w http.ResponseWriter, r *http.Request) {
	const op = "api.first_response"
	repo, err := repoParam(r)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	since, err := sinceParam(r)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	exclude, err := boolParam(r, "exclude_opener_comments", true)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	out, err := h.deps.FirstResponse(r.Context(), repo, since, exclude)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	out.Repository = repo
	writeJSON(w, http.StatusOK, out)
}

// HandleResolution handles GET /api/v1/stats/issues/avg-resolution-time.
// end_date is inclusive and defaults to now.
func (h *RepoStatsHandler) HandleResolution(w http.ResponseWriter, r *http.Request) {
	const op = "api.resolution"
	repo, err := repoParam(r)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	start, err := sinceParam(r)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	end := h.now().UTC()
	if r.URL.Query().Get("end_date") != "" {
		day, err := dateParam(r, "end_date", end)
		if err != nil {
			writeFailure(w, Wrap(op, err))
			return
		}
		end = day.Add(24*time.Hour - time.Second)
	}
	if end.Before(start) {
		writeFailure(w, NewKind(op, ErrBadRequest))
		return
	}
	out, err := h.deps.Resolution(r.Context(), repo, start, end)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	out.Repository = repo
	writeJSON(w, http.StatusOK, out)
}

// HandleOpenClosed handles GET /api/v1/stats/issues/open-closed.
func (h *RepoStatsHandler) HandleOpenClosed(w http.ResponseWriter, r *http.Request) {
	const op = "api.open_closed"
	repo, err := repoParam(r)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	out, err := h.deps.MonthlyIssues(r.Context(), repo)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandlePRSuccessRate handles GET /api/v1/stats/prs/success-rate.
func (h *RepoStatsHandler) HandlePRSuccessRate(w http.ResponseWriter, r *http.Request) {
	const op = "api.pr_success_rate"
	repo, err := repoParam(r)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	out, err := h.deps.PRSuccessRate(r.Context(), repo)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	out.Repository = repo
	writeJSON(w, http.StatusOK, out)
}

// HandlePRClosingTime handles GET /api/v1/stats/prs/avg-closing-time.
func (h *RepoStatsHandler) HandlePRClosingTime(w http.ResponseWriter, r *http.Request) {
	const op = "api.pr_closing_time"
	repo, err := repoParam(r)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	since, err := sinceParam(r)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	out, err := h.deps.PRClosingTime(r.Context(), repo, since)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	out.Repository = repo
	writeJSON(w, http.StatusOK, out)
}

// HandlePRReview handles GET /api/v1/stats/prs/review-time. A repository
// without reviewed pull requests answers 200 with a null average.
func (h *RepoStatsHandler) HandlePRReview(w http.ResponseWriter, r *http.Request) {
	const op = "api.pr_review"
	repo, err := repoParam(r)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	out, err := h.deps.PRReview(r.Context(), repo)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	out.Repository = repo
	writeJSON(w, http.StatusOK, out)
}

// HandleDataQuality handles GET /api/v1/stats/data-quality.
func (h *RepoStatsHandler) HandleDataQuality(w http.ResponseWriter, r *http.Request) {
	const op = "api.data_quality"
	repo, err := repoParam(r)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	out, err := h.deps.DataQuality(r.Context(), repo)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, out)
}
