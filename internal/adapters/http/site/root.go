// Package site renders the HTML project-health dashboard.
package site

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	service "github.com/okian/gitlytix/internal/app"
	"github.com/okian/gitlytix/internal/domain/model"
	"github.com/okian/gitlytix/internal/domain/types"
	"github.com/okian/gitlytix/pkg/logger"
)

// Error constants
var (
	ErrRender = errors.New("dashboard render failed")
)

// leaderboardSize is how many entries the page lists.
const leaderboardSize = 10

// Source supplies the page data.
type Source interface {
	Dashboard(ctx context.Context, repo string) (service.Dashboard, error)
	TopN(ctx context.Context, n int) ([]types.Entry, error)
}

// Register attaches the dashboard page at / to r. defaultRepo is shown when
// the request names none.
func Register(_ context.Context, r *mux.Router, src Source, defaultRepo string) {
	if r == nil {
		panic("router is nil")
	}
	h := NewRootHandler(src, defaultRepo)
	r.HandleFunc("/", h.HandleRoot).Methods(http.MethodGet).Name("dashboard_page")
}

// RootHandler handles root path requests
type RootHandler struct {
	src         Source
	defaultRepo string
}

// NewRootHandler creates a new root handler
func NewRootHandler(src Source, defaultRepo string) *RootHandler {
	return &RootHandler{src: src, defaultRepo: defaultRepo}
}

type page struct {
	Repo        string
	Problem     string
	Dashboard   *service.Dashboard
	Leaderboard []types.Entry
}

// HandleRoot handles GET /?repo_name=owner/repo.
func (h *RootHandler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := page{Repo: strings.TrimSpace(r.URL.Query().Get("repo_name"))}
	if p.Repo == "" {
		p.Repo = h.defaultRepo
	}

	status := http.StatusOK
	if p.Repo != "" {
		if err := model.ValidateRepo(p.Repo); err != nil {
			status, p.Problem = http.StatusBadRequest, err.Error()
		} else if d, err := h.src.Dashboard(ctx, p.Repo); err != nil {
			status, p.Problem = http.StatusInternalServerError, err.Error()
		} else {
			p.Dashboard = &d
		}
	}
	if top, err := h.src.TopN(ctx, leaderboardSize); err == nil {
		p.Leaderboard = top
	}

	var buf bytes.Buffer
	if err := dashboardTemplate.Execute(&buf, p); err != nil {
		logger.Get().Named("site").Error(ctx, "render dashboard", logger.Error(err))
		http.Error(w, fmt.Errorf("%w: %w", ErrRender, err).Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
