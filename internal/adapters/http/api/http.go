// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/okian/gitlytix/internal/domain/types"
	"github.com/okian/gitlytix/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	StatsDependencies
	ScoreDependencies
	DashboardDependencies
	EventDependencies
	LeaderboardDependencies
	RankDependencies
	StatsProvider
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = types.Entry

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	repoStatsHandler   *RepoStatsHandler
	scoreHandler       *ScoreHandler
	dashboardHandler   *DashboardHandler
	eventsHandler      *EventsHandler
	leaderboardHandler *LeaderboardHandler
	rankHandler        *RankHandler

	logger logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	o := options{maxLimit: defaultMaxLimit, maxBody: defaultMaxBody}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.Get().Named("api")
	}
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(deps),
		repoStatsHandler:   NewRepoStatsHandler(deps, o.now),
		scoreHandler:       NewScoreHandler(deps, o.maxBody),
		dashboardHandler:   NewDashboardHandler(deps),
		eventsHandler:      NewEventsHandler(deps, o.maxBody),
		leaderboardHandler: NewLeaderboardHandler(deps, o.maxLimit),
		rankHandler:        NewRankHandler(deps),
		logger:             o.logger,
	}
}

// Register attaches all HTTP routes and middleware to r.
func (s *Server) Register(_ context.Context, r *mux.Router) {
	if r == nil {
		panic("router is nil")
	}
	r.Use(RequestIDMiddleware, LoggingMiddleware(s.logger), MetricsMiddleware)
	r.MethodNotAllowedHandler = methodNotAllowed()

	r.HandleFunc("/healthz", s.healthHandler.HandleHealth).Methods(http.MethodGet).Name("healthz")
	r.Handle("/metrics", s.healthHandler.MetricsHandler()).Methods(http.MethodGet).Name("metrics")
	r.HandleFunc("/stats", s.statsHandler.HandleStats).Methods(http.MethodGet).Name("stats")

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.MethodNotAllowedHandler = methodNotAllowed()

	st := v1.PathPrefix("/stats").Subrouter()
	st.MethodNotAllowedHandler = methodNotAllowed()
	st.HandleFunc("/issues/first-response-time", s.repoStatsHandler.HandleFirstResponse).Methods(http.MethodGet).Name("first_response")
	st.HandleFunc("/issues/avg-resolution-time", s.repoStatsHandler.HandleResolution).Methods(http.MethodGet).Name("resolution")
	st.HandleFunc("/issues/open-closed", s.repoStatsHandler.HandleOpenClosed).Methods(http.MethodGet).Name("open_closed")
	st.HandleFunc("/prs/success-rate", s.repoStatsHandler.HandlePRSuccessRate).Methods(http.MethodGet).Name("pr_success_rate")
	st.HandleFunc("/prs/avg-closing-time", s.repoStatsHandler.HandlePRClosingTime).Methods(http.MethodGet).Name("pr_closing_time")
	st.HandleFunc("/prs/review-time", s.repoStatsHandler.HandlePRReview).Methods(http.MethodGet).Name("pr_review")
	st.HandleFunc("/data-quality", s.repoStatsHandler.HandleDataQuality).Methods(http.MethodGet).Name("data_quality")

	v1.HandleFunc("/score", s.scoreHandler.HandleGetScore).Methods(http.MethodGet).Name("score")
	v1.HandleFunc("/score", s.scoreHandler.HandlePostScore).Methods(http.MethodPost).Name("score_input")
	v1.HandleFunc("/dashboard", s.dashboardHandler.HandleDashboard).Methods(http.MethodGet).Name("dashboard")
	v1.HandleFunc("/events", s.eventsHandler.HandlePostEvents).Methods(http.MethodPost).Name("events")
	v1.HandleFunc("/leaderboard", s.leaderboardHandler.HandleGetLeaderboard).Methods(http.MethodGet).Name("leaderboard")
	v1.HandleFunc("/rank/{repo:.+}", s.rankHandler.HandleGetRank).Methods(http.MethodGet).Name("rank")
}

// NewRouter returns a router with every API route registered.
func (s *Server) NewRouter(ctx context.Context) *mux.Router {
	r := mux.NewRouter()
	s.Register(ctx, r)
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// methodNotAllowed answers a known path requested with the wrong method.
// Subrouters need their own copy: without it mux reports their mismatches
// as 404.
func methodNotAllowed() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed",
			fmt.Errorf("%s not allowed on %s", r.Method, r.URL.Path))
	})
}

// writeFailure picks the status for err and writes it.
func writeFailure(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err)
}
