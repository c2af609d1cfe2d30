package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	service "github.com/okian/gitlytix/internal/app"
	"github.com/okian/gitlytix/internal/domain/scoring"
)

// ScoreDependencies compute health scores.
type ScoreDependencies interface {
	Score(ctx context.Context, repo string) (service.ScoreReport, error)
	ScoreInput(ctx context.Context, in scoring.Input) service.ScoreReport
}

// ScoreHandler handles score requests.
type ScoreHandler struct {
	deps    ScoreDependencies
	maxBody int64
}

// NewScoreHandler creates a new score handler.
func NewScoreHandler(deps ScoreDependencies, maxBody int64) *ScoreHandler {
	return &ScoreHandler{deps: deps, maxBody: maxBody}
}

// HandleGetScore handles GET /api/v1/score?repo_name=owner/repo.
func (h *ScoreHandler) HandleGetScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_score"
	repo, err := repoParam(r)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	report, err := h.deps.Score(r.Context(), repo)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// HandlePostScore handles POST /api/v1/score. The body maps metric keys to
// seconds; null or absent metrics are scored as missing.
func (h *ScoreHandler) HandlePostScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_score"
	var body map[string]*float64
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBody)).Decode(&body); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	in, err := inputFrom(body)
	if err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	writeJSON(w, http.StatusOK, h.deps.ScoreInput(r.Context(), in))
}

func inputFrom(body map[string]*float64) (scoring.Input, error) {
	in := make(scoring.Input, len(body))
	seen := make(map[scoring.Metric]bool, len(body))
	for key, v := range body {
		m, err := scoring.ParseMetric(key)
		if err != nil {
			return nil, err
		}
		if seen[m] {
			return nil, fmt.Errorf("metric %s given twice", m.Key())
		}
		seen[m] = true
		if v != nil {
			in[m] = *v
		}
	}
	return in, nil
}
