// Package seed generates synthetic GitHub event archives and submits them to
// a running server.
package seed

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/okian/gitlytix/internal/domain/model"
)

// ErrInvalidConfig reports a generator config that cannot produce events.
var ErrInvalidConfig = errors.New("invalid seed config")

// Share of issues that get a bug label, a response and a close, and share of
// pull requests that get reviewed, closed and merged.
const (
	bugShare      = 0.3
	respondShare  = 0.85
	closeShare    = 0.7
	reviewShare   = 0.8
	prCloseShare  = 0.75
	mergeShare    = 0.8
	maxResponse   = 72 * time.Hour
	maxResolution = 21 * 24 * time.Hour
	maxReview     = 96 * time.Hour
)

// Config shapes a generated archive.
type Config struct {
	Repo         string
	Issues       int
	PRs          int
	Contributors int
	Releases     int
	// Events are spread over [End-Span, End].
	End  time.Time
	Span time.Duration
	// Seed makes the output reproducible.
	Seed uint64
}

// DefaultConfig returns a small archive ending now.
func DefaultConfig(repo string) Config {
	return Config{
		Repo:         repo,
		Issues:       100,
		PRs:          60,
		Contributors: 12,
		Releases:     6,
		End:          time.Now().UTC(),
		Span:         180 * 24 * time.Hour,
		Seed:         1,
	}
}

func (c Config) validate() error {
	if err := model.ValidateRepo(c.Repo); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	switch {
	case c.Issues < 0 || c.PRs < 0 || c.Releases < 0:
		return fmt.Errorf("%w: counts must not be negative", ErrInvalidConfig)
	case c.Contributors < 2:
		return fmt.Errorf("%w: need at least two contributors", ErrInvalidConfig)
	case c.Span <= 0:
		return fmt.Errorf("%w: span must be positive", ErrInvalidConfig)
	case c.End.IsZero():
		return fmt.Errorf("%w: end time required", ErrInvalidConfig)
	}
	return nil
}

type generator struct {
	cfg    Config
	rng    *rand.Rand
	start  time.Time
	next   int
	events []model.Event
}

// Generate returns a chronologically ordered archive. The same Config always
// yields the same events, ids included.
func Generate(cfg Config) ([]model.Event, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	g := &generator{
		cfg:   cfg,
		rng:   rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		start: cfg.End.Add(-cfg.Span).UTC(),
	}

	for n := 1; n <= cfg.Issues; n++ {
		g.issue(n)
	}
	for n := cfg.Issues + 1; n <= cfg.Issues+cfg.PRs; n++ {
		g.pullRequest(n)
	}
	for i := 0; i < cfg.Releases; i++ {
		at := g.start.Add(time.Duration(float64(cfg.Span) * (float64(i) + 0.5) / float64(cfg.Releases)))
		g.emit(model.ReleaseEvent, model.ActionPublished, 0, g.actor(), at, nil)
	}

	sort.SliceStable(g.events, func(i, j int) bool {
		return g.events[i].CreatedAt.Before(g.events[j].CreatedAt)
	})
	return g.events, nil
}

func (g *generator) issue(n int) {
	opener := g.actor()
	opened := g.at()
	var labels []string
	if g.rng.Float64() < bugShare {
		labels = []string{"bug"}
	}
	g.emit(model.IssuesEvent, model.ActionOpened, n, opener, opened, labels)

	if g.rng.Float64() < respondShare {
		g.emit(model.IssueCommentEvent, model.ActionCreated, n, g.other(opener), g.after(opened, maxResponse), nil)
	}
	if g.rng.Float64() < closeShare {
		g.emit(model.IssuesEvent, model.ActionClosed, n, g.actor(), g.after(opened, maxResolution), labels)
	}
}

func (g *generator) pullRequest(n int) {
	author := g.actor()
	opened := g.at()
	g.emit(model.PushEvent, "", 0, author, opened.Add(-time.Minute), nil)
	g.emit(model.PullRequestEvent, model.ActionOpened, n, author, opened, nil)

	if g.rng.Float64() < reviewShare {
		g.emit(model.PullRequestReviewEvent, model.ActionCreated, n, g.other(author), g.after(opened, maxReview), nil)
	}
	if g.rng.Float64() < prCloseShare {
		e := g.emit(model.PullRequestEvent, model.ActionClosed, n, g.other(author), g.after(opened, maxResolution), nil)
		e.Merged = g.rng.Float64() < mergeShare
	}
}

// emit appends an event and returns it for further tweaks.
func (g *generator) emit(typ model.EventType, action string, number int, actor string, at time.Time, labels []string) *model.Event {
	g.next++
	g.events = append(g.events, model.Event{
		ID:        g.id(),
		Type:      typ,
		Action:    action,
		Repo:      g.cfg.Repo,
		Number:    number,
		Actor:     actor,
		CreatedAt: at,
		Labels:    labels,
	})
	return &g.events[len(g.events)-1]
}

func (g *generator) id() string {
	name := fmt.Sprintf("%s#%d#%d", g.cfg.Repo, g.cfg.Seed, g.next)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

func (g *generator) actor() string {
	return fmt.Sprintf("dev-%02d", g.rng.IntN(g.cfg.Contributors))
}

func (g *generator) other(not string) string {
	for {
		if a := g.actor(); a != not {
			return a
		}
	}
}

// at picks a second inside the window.
func (g *generator) at() time.Time {
	return g.start.Add(time.Duration(g.rng.Int64N(int64(g.cfg.Span/time.Second))) * time.Second)
}

// after picks a second in (from, from+max], capped at the window end.
func (g *generator) after(from time.Time, max time.Duration) time.Time {
	t := from.Add(time.Duration(1+g.rng.Int64N(int64(max/time.Second))) * time.Second)
	if t.After(g.cfg.End) {
		return g.cfg.End.UTC()
	}
	return t
}
