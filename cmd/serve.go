package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"

	"github.com/okian/gitlytix/internal/adapters/gitrepo"
	"github.com/okian/gitlytix/internal/adapters/http/api"
	"github.com/okian/gitlytix/internal/adapters/http/site"
	"github.com/okian/gitlytix/internal/adapters/http/swagger"
	"github.com/okian/gitlytix/internal/adapters/provider"
	"github.com/okian/gitlytix/internal/adapters/repository"
	service "github.com/okian/gitlytix/internal/app"
	"github.com/okian/gitlytix/internal/config"
	"github.com/okian/gitlytix/internal/domain/scoring"
	"github.com/okian/gitlytix/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func newServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API, dashboard and metrics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if configPath == "" {
				configPath = os.Getenv(config.EnvFile)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML config file (default $"+config.EnvFile+")")
	return cmd
}

func runServe(ctx context.Context, configPath string) error {
	cfg, err := config.LoadFile(ctx, configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	store := repository.NewSQLiteStore(cfg.DatabasePath)
	if err := store.Init(ctx); err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error(ctx, "close store", logger.Error(err))
		}
	}()

	opts, err := serviceOptions(ctx, cfg, store, log)
	if err != nil {
		return err
	}
	svc := service.New(opts...)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)

	if configPath != "" {
		go func() {
			err := config.Watch(ctx, configPath, func(next *config.Config) {
				if err := logger.SetLevelString(next.LogLevel); err != nil {
					log.Warn(ctx, "ignoring invalid log_level", logger.String("log_level", next.LogLevel))
				}
			})
			if err != nil {
				log.Warn(ctx, "config watch disabled", logger.Error(err))
			}
		}()
	}

	r := mux.NewRouter()
	api.NewServer(svc,
		api.WithMaxLimit(cfg.MaxLeaderboardLimit),
		api.WithLogger(log.Named("api")),
	).Register(ctx, r)
	swagger.Register(ctx, r)
	site.Register(ctx, r, svc, cfg.DefaultRepo)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// serviceOptions turns cfg into service options. The git clone is optional;
// a path that is not a repository is logged and skipped.
func serviceOptions(ctx context.Context, cfg *config.Config, store *repository.SQLiteStore, log logger.Logger) ([]service.Option, error) {
	table, err := cfg.ScoringTable()
	if err != nil {
		return nil, err
	}
	p, err := buildProvider(cfg, store, log)
	if err != nil {
		return nil, err
	}

	opts := []service.Option{
		service.WithLogger(log.Named("service")),
		service.WithStore(store),
		service.WithProvider(p),
		service.WithCalculator(scoring.NewCalculator(table)),
		service.WithRepos(cfg.Repos),
		service.WithRefreshInterval(cfg.RefreshInterval),
		service.WithFreshness(cfg.Freshness.Fresh, cfg.Freshness.Stale),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.EventQueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithBatchSize(cfg.BatchSize),
		service.WithFlushInterval(cfg.FlushInterval),
	}

	if cfg.GitRepoPath != "" {
		repo, err := gitrepo.Open(cfg.GitRepoPath)
		if err != nil {
			log.Warn(ctx, "git history disabled", logger.String("path", cfg.GitRepoPath), logger.Error(err))
		} else {
			log.Info(ctx, "git history enabled", logger.String("repo", cfg.CloneRepo()), logger.String("path", cfg.GitRepoPath))
			opts = append(opts, service.WithGitRepo(cfg.CloneRepo(), repo))
		}
	}
	return opts, nil
}

// buildProvider picks the metric source for cfg.Provider.Mode and wraps it
// with the configured fallback values.
func buildProvider(cfg *config.Config, store provider.StatsReader, log logger.Logger) (provider.Provider, error) {
	var p provider.Provider
	switch cfg.Provider.Mode {
	case config.ProviderStore:
		if store == nil {
			return nil, fmt.Errorf("%w: store mode needs a database", config.ErrInvalidConfig)
		}
		p = provider.NewStoreProvider(store)
	case config.ProviderHTTP:
		httpOpts := []provider.HTTPOption{provider.WithTimeout(cfg.Provider.Timeout)}
		if cfg.Provider.Token != "" {
			httpOpts = append(httpOpts, provider.WithBearerToken(cfg.Provider.Token))
		}
		p = provider.NewHTTPProvider(cfg.Provider.BaseURL, httpOpts...)
	case config.ProviderMock:
		in, err := cfg.MockInput()
		if err != nil {
			return nil, err
		}
		p = provider.NewMockProvider(in)
	default:
		return nil, fmt.Errorf("%w: unknown provider.mode %q", config.ErrInvalidConfig, cfg.Provider.Mode)
	}

	fallback, err := cfg.FallbackInput()
	if err != nil {
		return nil, err
	}
	if len(fallback) > 0 {
		p = provider.NewFallback(p, fallback, log.Named("provider"))
	}
	return p, nil
}
