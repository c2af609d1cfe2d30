// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Load layers a YAML file and environment variables over those defaults.
// - External errors are wrapped with ErrLoadConfig or ErrInvalidConfig.
package config

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/okian/gitlytix/internal/domain/model"
	"github.com/okian/gitlytix/internal/domain/scoring"
)

// Provider modes.
const (
	ProviderStore = "store"
	ProviderHTTP  = "http"
	ProviderMock  = "mock"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects console or json log output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// DatabasePath is the SQLite file holding GitHub events.
	DatabasePath string `koanf:"database_path"`

	// GitRepoPath optionally points at a local clone used for release and
	// contributor history.
	GitRepoPath string `koanf:"git_repo_path"`

	// GitRepoName is the owner/name the clone belongs to. Empty means
	// DefaultRepo.
	GitRepoName string `koanf:"git_repo_name"`

	// DefaultRepo answers requests that omit repo_name.
	DefaultRepo string `koanf:"default_repo"`

	// Repos are rescored in the background every RefreshInterval.
	Repos           []string      `koanf:"repos"`
	RefreshInterval time.Duration `koanf:"refresh_interval"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// Ingest pipeline sizing.
	EventQueueSize int           `koanf:"queue_size"`
	WorkerCount    int           `koanf:"worker_count"`
	DedupeSize     int           `koanf:"dedupe_size"`
	BatchSize      int           `koanf:"batch_size"`
	FlushInterval  time.Duration `koanf:"flush_interval"`

	Provider  ProviderConfig  `koanf:"provider"`
	Scoring   ScoringConfig   `koanf:"scoring"`
	Freshness FreshnessConfig `koanf:"freshness"`
}

// ProviderConfig selects where metric values come from.
type ProviderConfig struct {
	// Mode is one of store, http or mock.
	Mode    string        `koanf:"mode"`
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
	// Token is sent as a bearer token to the remote API when set.
	Token string `koanf:"token"`

	// Fallback holds seconds used when a metric cannot be fetched, keyed by
	// metric name. Metrics without an entry stay missing.
	Fallback map[string]float64 `koanf:"fallback"`

	// Mock holds the values served in mock mode.
	Mock map[string]float64 `koanf:"mock"`
}

// ScoringConfig overrides the metric table.
type ScoringConfig struct {
	Metrics map[string]scoring.MetricConfig `koanf:"metrics"`
}

// FreshnessConfig bounds the data-quality buckets.
type FreshnessConfig struct {
	Fresh time.Duration `koanf:"fresh"`
	Stale time.Duration `koanf:"stale"`
}

// New creates a Config populated with defaults. Context is accepted first to
// follow the project-wide convention.
func New(_ context.Context) *Config {
	table := scoring.DefaultTable().Map()
	metricsCfg := make(map[string]scoring.MetricConfig, len(table))
	for m, c := range table {
		metricsCfg[m.Key()] = c
	}
	return &Config{
		LogLevel:            "info",
		LogFormat:           "console",
		Addr:                ":9080",
		DatabasePath:        "gitlytix.db",
		RefreshInterval:     5 * time.Minute,
		MaxLeaderboardLimit: 100,
		EventQueueSize:      100_000,
		WorkerCount:         runtime.NumCPU(),
		DedupeSize:          500_000,
		BatchSize:           500,
		FlushInterval:       time.Second,
		Provider: ProviderConfig{
			Mode:     ProviderStore,
			Timeout:  5 * time.Second,
			Fallback: map[string]float64{},
			Mock: map[string]float64{
				scoring.FirstResponse.Key():   7560,
				scoring.IssueResolution.Key(): 259200,
				scoring.PRReview.Key():        129600,
			},
		},
		Scoring: ScoringConfig{Metrics: metricsCfg},
		Freshness: FreshnessConfig{
			Fresh: 24 * time.Hour,
			Stale: 7 * 24 * time.Hour,
		},
	}
}

// ScoringTable builds the immutable metric table.
func (c *Config) ScoringTable() (scoring.Table, error) {
	cfg := make(map[scoring.Metric]scoring.MetricConfig, len(c.Scoring.Metrics))
	for key, mc := range c.Scoring.Metrics {
		m, err := scoring.ParseMetric(key)
		if err != nil {
			return scoring.Table{}, fmt.Errorf("%w: scoring.metrics: %w", ErrInvalidConfig, err)
		}
		cfg[m] = mc
	}
	t, err := scoring.NewTable(cfg)
	if err != nil {
		return scoring.Table{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return t, nil
}

// FallbackInput returns the configured fallback values.
func (c *Config) FallbackInput() (scoring.Input, error) {
	return toInput("provider.fallback", c.Provider.Fallback)
}

// MockInput returns the values served in mock mode.
func (c *Config) MockInput() (scoring.Input, error) {
	return toInput("provider.mock", c.Provider.Mock)
}

func toInput(section string, values map[string]float64) (scoring.Input, error) {
	in := make(scoring.Input, len(values))
	for key, v := range values {
		m, err := scoring.ParseMetric(key)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, section, err)
		}
		in[m] = v
	}
	return in, nil
}

// CloneRepo returns the repository the local clone answers for.
func (c *Config) CloneRepo() string {
	if c.GitRepoName != "" {
		return c.GitRepoName
	}
	return c.DefaultRepo
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.MaxLeaderboardLimit < 1:
		return fmt.Errorf("%w: max_leaderboard_limit must be positive", ErrInvalidConfig)
	case c.Provider.Timeout <= 0:
		return fmt.Errorf("%w: provider.timeout must be positive", ErrInvalidConfig)
	case c.Freshness.Fresh <= 0 || c.Freshness.Stale < c.Freshness.Fresh:
		return fmt.Errorf("%w: freshness needs 0 < fresh <= stale", ErrInvalidConfig)
	}
	if c.GitRepoPath != "" {
		if err := model.ValidateRepo(c.CloneRepo()); err != nil {
			return fmt.Errorf("%w: git_repo_name or default_repo must name the clone: %w", ErrInvalidConfig, err)
		}
	}
	switch c.Provider.Mode {
	case ProviderStore, ProviderMock:
	case ProviderHTTP:
		if strings.TrimSpace(c.Provider.BaseURL) == "" {
			return fmt.Errorf("%w: provider.base_url is required in http mode", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown provider.mode %q", ErrInvalidConfig, c.Provider.Mode)
	}
	if _, err := c.ScoringTable(); err != nil {
		return err
	}
	if _, err := c.FallbackInput(); err != nil {
		return err
	}
	if _, err := c.MockInput(); err != nil {
		return err
	}
	return nil
}
