package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/okian/gitlytix/internal/adapters/ingest"
	"github.com/okian/gitlytix/internal/adapters/repository"
	service "github.com/okian/gitlytix/internal/app"
	"github.com/okian/gitlytix/internal/config"
	"github.com/okian/gitlytix/pkg/logger"
)

type ingestFlags struct {
	root       string
	pattern    string
	dbPath     string
	configPath string
}

func newIngestCmd() *cobra.Command {
	var f ingestFlags
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load GitHub event files into the SQLite store",
		Example: `  gitlytix ingest --root ./archive
  gitlytix ingest --root ./archive --pattern '2025-*/**/*.ndjson' --db events.db`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIngest(cmd.Context(), cmd.OutOrStdout(), f)
		},
	}
	cmd.Flags().StringVar(&f.root, "root", "", "directory holding JSON or NDJSON event files")
	cmd.Flags().StringVar(&f.pattern, "pattern", ingest.DefaultPattern, "doublestar glob relative to --root")
	cmd.Flags().StringVar(&f.dbPath, "db", "", "SQLite database (default database_path from config)")
	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "YAML config file")
	_ = cmd.MarkFlagRequired("root")
	return cmd
}

func runIngest(ctx context.Context, out io.Writer, f ingestFlags) error {
	cfg, err := config.LoadFile(ctx, f.configPath)
	if err != nil {
		return err
	}
	if f.dbPath != "" {
		cfg.DatabasePath = f.dbPath
	}
	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return err
	}
	_ = logger.SetLevelString(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	store := repository.NewSQLiteStore(cfg.DatabasePath)
	if err := store.Init(ctx); err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	svc := service.New(
		service.WithLogger(logger.Named("ingest")),
		service.WithStore(store),
		service.WithRefreshInterval(0),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.EventQueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithBatchSize(cfg.BatchSize),
		service.WithFlushInterval(cfg.FlushInterval),
	)
	if err := svc.Start(ctx); err != nil {
		return err
	}
	counts, err := svc.IngestDir(ctx, f.root, f.pattern)
	// Stop drains the queue into the store.
	svc.Stop()
	if err != nil {
		return fmt.Errorf("ingest %s: %w", f.root, err)
	}

	fmt.Fprintf(out, "files %d, read %d, invalid %d, duplicate %d, stored %d, rejected %d\n",
		counts.Files, counts.Read, counts.Invalid, counts.Duplicate, counts.Enqueued, counts.Rejected)
	if counts.Rejected > 0 {
		return fmt.Errorf("%d events rejected by a full queue; raise queue_size", counts.Rejected)
	}
	return nil
}
