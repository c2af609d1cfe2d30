package api

import (
	"context"
	"net/http"

	service "github.com/okian/gitlytix/internal/app"
)

// DashboardDependencies build the full dashboard of a repository.
type DashboardDependencies interface {
	Dashboard(ctx context.Context, repo string) (service.Dashboard, error)
}

// DashboardHandler handles dashboard requests.
type DashboardHandler struct {
	deps DashboardDependencies
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(deps DashboardDependencies) *DashboardHandler {
	return &DashboardHandler{deps: deps}
}

// HandleDashboard handles GET /api/v1/dashboard?repo_name=owner/repo.
// Sections that could not be computed are omitted and named in errors.
func (h *DashboardHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.dashboard"
	repo, err := repoParam(r)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	d, err := h.deps.Dashboard(r.Context(), repo)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, d)
}
