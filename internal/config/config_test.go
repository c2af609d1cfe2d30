package config_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/gitlytix/internal/config"
	"github.com/okian/gitlytix/internal/domain/scoring"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.Provider.Mode, convey.ShouldEqual, config.ProviderStore)
			convey.So(cfg.Provider.Timeout, convey.ShouldEqual, 5*time.Second)
			convey.So(cfg.Freshness.Fresh, convey.ShouldEqual, 24*time.Hour)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then the scoring table equals the stock table", func() {
			table, err := cfg.ScoringTable()
			convey.So(err, convey.ShouldBeNil)
			convey.So(table.Map(), convey.ShouldResemble, scoring.DefaultTable().Map())
		})

		convey.Convey("Then mock values resolve to metrics", func() {
			in, err := cfg.MockInput()
			convey.So(err, convey.ShouldBeNil)
			convey.So(in[scoring.PRReview], convey.ShouldEqual, 129600)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given invalid configs", t, func() {
		cases := map[string]func(*config.Config){
			"empty addr":       func(c *config.Config) { c.Addr = "" },
			"bad mode":         func(c *config.Config) { c.Provider.Mode = "carrier-pigeon" },
			"http without url": func(c *config.Config) { c.Provider.Mode = config.ProviderHTTP },
			"zero timeout":     func(c *config.Config) { c.Provider.Timeout = 0 },
			"stale before fresh": func(c *config.Config) {
				c.Freshness.Stale = time.Minute
			},
			"weights not summing to one": func(c *config.Config) {
				c.Scoring.Metrics = map[string]scoring.MetricConfig{"pr_review_time": {Weight: 0.5, Max: 10}}
			},
			"unknown fallback metric": func(c *config.Config) {
				c.Provider.Fallback = map[string]float64{"stars": 1}
			},
			"clone without a repo name": func(c *config.Config) {
				c.GitRepoPath = "/src/widgets"
			},
		}
		for name, mutate := range cases {
			convey.Convey("Then "+name+" fails validation", func() {
				cfg := config.New(context.Background())
				mutate(cfg)
				err := cfg.Validate()
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}
	})
}

func TestConfig_CloneRepo(t *testing.T) {
	convey.Convey("Given a config with a local clone", t, func() {
		cfg := config.New(context.Background())
		cfg.GitRepoPath = "/src/widgets"

		convey.Convey("Then the clone belongs to the default repo", func() {
			cfg.DefaultRepo = "octo/widgets"
			convey.So(cfg.CloneRepo(), convey.ShouldEqual, "octo/widgets")
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then git_repo_name wins over the default repo", func() {
			cfg.DefaultRepo = "octo/widgets"
			cfg.GitRepoName = "octo/gadgets"
			convey.So(cfg.CloneRepo(), convey.ShouldEqual, "octo/gadgets")
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}
