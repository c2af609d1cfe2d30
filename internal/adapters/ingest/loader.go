package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/okian/gitlytix/internal/domain/dedupe"
	"github.com/okian/gitlytix/pkg/logger"
	"github.com/okian/gitlytix/pkg/metrics"
)

// DefaultPattern matches every JSON and NDJSON file under the root.
const DefaultPattern = "**/*.{json,ndjson,jsonl}"

// Enqueuer accepts events for storage.
type Enqueuer interface {
	Enqueue(ctx context.Context, e Event) bool
}

// Counts summarizes one load or batch submission.
type Counts struct {
	Files     int `json:"files,omitempty"`
	Read      int `json:"read"`
	Invalid   int `json:"invalid"`
	Duplicate int `json:"duplicate"`
	Enqueued  int `json:"enqueued"`
	Rejected  int `json:"rejected"`
}

// Add accumulates o into c.
func (c *Counts) Add(o Counts) {
	c.Files += o.Files
	c.Read += o.Read
	c.Invalid += o.Invalid
	c.Duplicate += o.Duplicate
	c.Enqueued += o.Enqueued
	c.Rejected += o.Rejected
}

// Loader validates, dedupes and enqueues events.
type Loader struct {
	queue  Enqueuer
	dedupe dedupe.Deduper
	logger logger.Logger
}

// NewLoader returns a loader feeding queue.
func NewLoader(queue Enqueuer, opts ...LoaderOption) *Loader {
	l := &Loader{
		queue:  queue,
		dedupe: dedupe.NewInMemoryDeduper(),
		logger: logger.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Submit validates and enqueues events. A rejected event is forgotten by the
// deduper so a retry can deliver it.
func (l *Loader) Submit(ctx context.Context, events []Event) Counts {
	var c Counts
	for i := range events {
		e := &events[i]
		c.Read++
		if err := e.Validate(); err != nil {
			c.Invalid++
			metrics.RecordEventInvalid()
			l.logger.Debug(ctx, "invalid event", logger.String("id", e.ID), logger.Error(err))
			continue
		}
		if l.dedupe.SeenAndRecord(ctx, e.ID) {
			c.Duplicate++
			metrics.RecordEventDuplicate()
			continue
		}
		if !l.queue.Enqueue(ctx, *e) {
			c.Rejected++
			l.dedupe.Unrecord(ctx, e.ID)
			continue
		}
		c.Enqueued++
	}
	return c
}

// LoadDir enqueues events from every file under root matching pattern.
func (l *Loader) LoadDir(ctx context.Context, root, pattern string) (Counts, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if !doublestar.ValidatePattern(pattern) {
		return Counts{}, fmt.Errorf("%w: %q", ErrBadPattern, pattern)
	}
	return l.LoadFS(ctx, os.DirFS(root), pattern)
}

// LoadFS is LoadDir over an arbitrary filesystem.
func (l *Loader) LoadFS(ctx context.Context, fsys fs.FS, pattern string) (Counts, error) {
	matches, err := doublestar.Glob(fsys, pattern)
	if err != nil {
		return Counts{}, fmt.Errorf("%w: %w", ErrBadPattern, err)
	}
	sort.Strings(matches)

	var total Counts
	for _, name := range matches {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		events, err := readFile(fsys, name)
		if err != nil {
			return total, err
		}
		c := l.Submit(ctx, events)
		c.Files = 1
		total.Add(c)
		l.logger.Info(ctx, "loaded events file",
			logger.String("file", name),
			logger.Int("read", c.Read),
			logger.Int("enqueued", c.Enqueued),
			logger.Int("duplicate", c.Duplicate),
			logger.Int("invalid", c.Invalid),
		)
	}
	return total, nil
}

func readFile(fsys fs.FS, name string) ([]Event, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	events, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path.Clean(name), err)
	}
	return events, nil
}

// Decode reads either a JSON array of events or a stream of JSON objects,
// one per line.
func Decode(r io.Reader) ([]Event, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	dec := json.NewDecoder(br)
	if first == '[' {
		var events []Event
		if err := dec.Decode(&events); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecode, err)
		}
		return events, nil
	}

	var events []Event
	for {
		var e Event
		err := dec.Decode(&e)
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: event %d: %w", ErrDecode, len(events)+1, err)
		}
		events = append(events, e)
	}
}

// peekNonSpace skips whitespace and a UTF-8 BOM and returns the next byte
// without consuming it.
func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n', 0xEF, 0xBB, 0xBF:
			continue
		}
		return b, br.UnreadByte()
	}
}
