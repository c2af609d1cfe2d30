package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/gitlytix/internal/seed"
	"github.com/okian/gitlytix/pkg/logger"
)

type seedFlags struct {
	cfg     seed.Config
	days    int
	out     string
	submit  string
	workers int
}

func newSeedCmd() *cobra.Command {
	f := seedFlags{cfg: seed.DefaultConfig(""), days: 180}
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Generate a synthetic event archive",
		Example: `  gitlytix seed --repo octo/widgets --out widgets.ndjson
  gitlytix seed --repo octo/widgets --issues 500 --submit http://localhost:9080`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeed(cmd.Context(), cmd.OutOrStdout(), f)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.cfg.Repo, "repo", "", "owner/name of the repository")
	fl.IntVar(&f.cfg.Issues, "issues", f.cfg.Issues, "issues to open")
	fl.IntVar(&f.cfg.PRs, "prs", f.cfg.PRs, "pull requests to open")
	fl.IntVar(&f.cfg.Contributors, "contributors", f.cfg.Contributors, "distinct actors")
	fl.IntVar(&f.cfg.Releases, "releases", f.cfg.Releases, "releases to publish")
	fl.IntVar(&f.days, "days", f.days, "days of history ending now")
	fl.Uint64Var(&f.cfg.Seed, "seed", f.cfg.Seed, "random seed; equal seeds give equal archives")
	fl.StringVar(&f.out, "out", "-", "NDJSON output file, - for stdout")
	fl.StringVar(&f.submit, "submit", "", "POST to a running server at this base URL instead of writing a file")
	fl.IntVar(&f.workers, "workers", 4, "concurrent requests with --submit")
	_ = cmd.MarkFlagRequired("repo")
	return cmd
}

func runSeed(ctx context.Context, stdout io.Writer, f seedFlags) error {
	f.cfg.Span = time.Duration(f.days) * 24 * time.Hour
	events, err := seed.Generate(f.cfg)
	if err != nil {
		return err
	}

	if f.submit != "" {
		if err := logger.Init(); err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()
		sub := seed.NewSubmitter(f.submit, seed.WithWorkers(f.workers), seed.WithLogger(logger.Named("seed")))
		counts, err := sub.Submit(ctx, events)
		fmt.Fprintf(stdout, "submitted %d events: enqueued %d, duplicate %d, rejected %d\n",
			len(events), counts.Enqueued, counts.Duplicate, counts.Rejected)
		return err
	}

	w := stdout
	if f.out != "-" {
		file, err := os.Create(f.out)
		if err != nil {
			return err
		}
		defer file.Close()
		w = file
	}
	if err := seed.WriteNDJSON(w, events); err != nil {
		return fmt.Errorf("write %s: %w", f.out, err)
	}
	if f.out != "-" {
		fmt.Fprintf(stdout, "wrote %d events to %s\n", len(events), f.out)
	}
	return nil
}
