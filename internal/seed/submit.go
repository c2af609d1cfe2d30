package seed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/okian/gitlytix/internal/adapters/ingest"
	"github.com/okian/gitlytix/internal/domain/model"
	"github.com/okian/gitlytix/pkg/logger"
)

// ErrSubmit wraps a batch the server refused.
var ErrSubmit = errors.New("event submission failed")

// eventsPath is where the server accepts event batches.
const eventsPath = "/api/v1/events"

// Submitter posts events to a server in batches from a small worker pool.
type Submitter struct {
	baseURL   string
	client    *http.Client
	workers   int
	batchSize int
	logger    logger.Logger
}

// SubmitOption configures a Submitter.
type SubmitOption func(*Submitter)

// WithWorkers sets how many batches are in flight at once.
func WithWorkers(n int) SubmitOption {
	return func(s *Submitter) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithBatchSize sets events per request.
func WithBatchSize(n int) SubmitOption {
	return func(s *Submitter) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) SubmitOption {
	return func(s *Submitter) {
		if c != nil {
			s.client = c
		}
	}
}

// WithLogger sets the progress logger.
func WithLogger(l logger.Logger) SubmitOption {
	return func(s *Submitter) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSubmitter creates a Submitter for the server at baseURL.
func NewSubmitter(baseURL string, opts ...SubmitOption) *Submitter {
	s := &Submitter{
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{Timeout: 30 * time.Second},
		workers:   4,
		batchSize: 500,
		logger:    logger.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit sends events and sums the server's counts. Failed batches are
// joined into the returned error; the counts cover the batches that landed.
func (s *Submitter) Submit(ctx context.Context, events []model.Event) (ingest.Counts, error) {
	batches := make(chan []model.Event)
	var (
		mu     sync.Mutex
		total  ingest.Counts
		errs   []error
		wg     sync.WaitGroup
		posted int
	)

	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for batch := range batches {
				c, err := s.post(ctx, batch)
				mu.Lock()
				if err != nil {
					errs = append(errs, err)
				} else {
					total.Add(c)
				}
				posted += len(batch)
				done := posted
				mu.Unlock()
				s.logger.Debug(ctx, "batch submitted", logger.Int("events", len(batch)), logger.Int("posted", done))
			}
		}()
	}

feed:
	for start := 0; start < len(events); start += s.batchSize {
		end := min(start+s.batchSize, len(events))
		select {
		case batches <- events[start:end]:
		case <-ctx.Done():
			break feed
		}
	}
	close(batches)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	return total, errors.Join(errs...)
}

func (s *Submitter) post(ctx context.Context, batch []model.Event) (ingest.Counts, error) {
	body, err := json.Marshal(batch)
	if err != nil {
		return ingest.Counts{}, fmt.Errorf("encode batch: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+eventsPath, bytes.NewReader(body))
	if err != nil {
		return ingest.Counts{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return ingest.Counts{}, fmt.Errorf("%w: %w", ErrSubmit, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return ingest.Counts{}, fmt.Errorf("%w: status %d: %s", ErrSubmit, resp.StatusCode, bytes.TrimSpace(msg))
	}
	var c ingest.Counts
	if err := json.NewDecoder(resp.Body).Decode(&c); err != nil {
		return ingest.Counts{}, fmt.Errorf("decode counts: %w", err)
	}
	return c, nil
}
