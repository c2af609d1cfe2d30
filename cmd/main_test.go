package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/smartystreets/goconvey/convey"
	"gopkg.in/yaml.v3"

	"github.com/okian/gitlytix/internal/adapters/ingest"
	"github.com/okian/gitlytix/internal/adapters/provider"
	"github.com/okian/gitlytix/internal/adapters/repository"
	service "github.com/okian/gitlytix/internal/app"
	"github.com/okian/gitlytix/internal/config"
	"github.com/okian/gitlytix/pkg/logger"
)

func run(t *testing.T, cmdArgs ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(cmdArgs)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestParseDuration(t *testing.T) {
	convey.Convey("Given duration flags", t, func() {
		for in, want := range map[string]float64{
			"90":     90,
			"2h":     7200,
			"45m30s": 2730,
			"3d":     259200,
			"1d12h":  129600,
			"1.5d":   129600,
			" 1d ":   86400,
		} {
			got, err := parseDuration(in)
			convey.So(err, convey.ShouldBeNil)
			convey.So(got, convey.ShouldEqual, want)
		}

		for _, bad := range []string{"", "d", "xd", "1d2", "soon"} {
			_, err := parseDuration(bad)
			convey.So(errors.Is(err, errBadDuration), convey.ShouldBeTrue)
		}
	})
}

func TestScoreCommand(t *testing.T) {
	convey.Convey("Given the score command", t, func() {
		args := []string{"score", "--first-response", "2h", "--issue-resolution", "1d", "--pr-review", "3h"}

		convey.Convey("When asked for JSON", func() {
			out, err := run(t, append(args, "--output", "json")...)
			convey.So(err, convey.ShouldBeNil)

			var rep service.ScoreReport
			convey.So(json.Unmarshal([]byte(out), &rep), convey.ShouldBeNil)
			convey.So(rep.Score, convey.ShouldEqual, 97.86)
			convey.So(rep.Provider, convey.ShouldEqual, "cli")
			convey.So(len(rep.Contributions), convey.ShouldEqual, 3)
		})

		convey.Convey("When asked for YAML", func() {
			out, err := run(t, append(args, "--output", "yaml")...)
			convey.So(err, convey.ShouldBeNil)

			var doc map[string]any
			convey.So(yaml.Unmarshal([]byte(out), &doc), convey.ShouldBeNil)
			convey.So(doc["score"], convey.ShouldEqual, 97.86)
			convey.So(doc["state"], convey.ShouldEqual, "healthy")
			convey.So(doc["input"], convey.ShouldContainKey, "pr_review_time")
		})

		convey.Convey("When printing to the console", func() {
			out, err := run(t, append(args, "--output", "console", "--lang", "en")...)
			convey.So(err, convey.ShouldBeNil)
			convey.So(out, convey.ShouldContainSubstring, "97.86")
			convey.So(out, convey.ShouldContainSubstring, "healthy")
			convey.So(out, convey.ShouldContainSubstring, "2 hours")

			out, err = run(t, append(args, "--output", "console", "--lang", "de")...)
			convey.So(err, convey.ShouldBeNil)
			convey.So(out, convey.ShouldContainSubstring, "97,86")
		})

		convey.Convey("When a metric is left out", func() {
			out, err := run(t, "score", "--first-response", "0", "--pr-review", "0", "--output", "console", "--lang", "en")
			convey.So(err, convey.ShouldBeNil)
			convey.So(out, convey.ShouldContainSubstring, "80.00")
			convey.So(out, convey.ShouldContainSubstring, "skipped (missing)")
		})

		convey.Convey("When flags are malformed", func() {
			_, err := run(t, "score", "--first-response", "soon")
			convey.So(errors.Is(err, errBadDuration), convey.ShouldBeTrue)

			_, err = run(t, append(args, "--output", "xml")...)
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestBuildProvider(t *testing.T) {
	convey.Convey("Given provider modes", t, func() {
		cfg := config.New(context.Background())
		nop := logger.NewNop()

		convey.Convey("Then store mode needs a store", func() {
			_, err := buildProvider(cfg, nil, nop)
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("Then mock and http modes build their providers", func() {
			cfg.Provider.Mode = config.ProviderMock
			p, err := buildProvider(cfg, nil, nop)
			convey.So(err, convey.ShouldBeNil)
			convey.So(p.Name(), convey.ShouldEqual, "mock")

			cfg.Provider.Mode = config.ProviderHTTP
			cfg.Provider.BaseURL = "http://127.0.0.1:1"
			cfg.Provider.Token = "secret"
			p, err = buildProvider(cfg, nil, nop)
			convey.So(err, convey.ShouldBeNil)
			convey.So(p.Name(), convey.ShouldEqual, "http")
		})

		convey.Convey("Then fallback values wrap the provider", func() {
			cfg.Provider.Mode = config.ProviderMock
			cfg.Provider.Fallback = map[string]float64{"pr_review_time": 3600}
			p, err := buildProvider(cfg, nil, nop)
			convey.So(err, convey.ShouldBeNil)
			_, wrapped := p.(*provider.Fallback)
			convey.So(wrapped, convey.ShouldBeTrue)
		})

		convey.Convey("Then an unknown mode is rejected", func() {
			cfg.Provider.Mode = "carrier-pigeon"
			_, err := buildProvider(cfg, nil, nop)
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})
}

func TestSeedAndIngestCommands(t *testing.T) {
	convey.Convey("Given a seeded archive on disk", t, func() {
		dir := t.TempDir()
		archive := filepath.Join(dir, "archive")
		convey.So(os.MkdirAll(archive, 0o755), convey.ShouldBeNil)
		file := filepath.Join(archive, "widgets.ndjson")

		out, err := run(t, "seed", "--repo", "octo/widgets", "--issues", "20", "--prs", "10", "--releases", "2", "--seed", "7", "--out", file)
		convey.So(err, convey.ShouldBeNil)
		convey.So(out, convey.ShouldContainSubstring, "wrote")

		f, err := os.Open(file)
		convey.So(err, convey.ShouldBeNil)
		events, err := ingest.Decode(f)
		_ = f.Close()
		convey.So(err, convey.ShouldBeNil)
		convey.So(len(events), convey.ShouldBeGreaterThan, 30)

		convey.Convey("When the archive is ingested", func() {
			db := filepath.Join(dir, "events.db")
			out, err := run(t, "ingest", "--root", archive, "--db", db)
			convey.So(err, convey.ShouldBeNil)
			convey.So(out, convey.ShouldContainSubstring, "rejected 0")

			convey.Convey("Then the store holds the repository", func() {
				store := repository.NewSQLiteStore(db)
				convey.So(store.Init(context.Background()), convey.ShouldBeNil)
				defer store.Close()

				repos, err := store.Repos(context.Background())
				convey.So(err, convey.ShouldBeNil)
				convey.So(repos, convey.ShouldResemble, []string{"octo/widgets"})
			})
		})

		convey.Convey("When a repo is missing", func() {
			_, err := run(t, "seed", "--repo", "widgets", "--out", filepath.Join(dir, "x.ndjson"))
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}
