// Package model contains domain models passed between layers.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// EventType names a GitHub activity event.
type EventType string

// Event types the stats queries understand.
const (
	IssuesEvent                   EventType = "IssuesEvent"
	IssueCommentEvent             EventType = "IssueCommentEvent"
	PullRequestEvent              EventType = "PullRequestEvent"
	PullRequestReviewEvent        EventType = "PullRequestReviewEvent"
	PullRequestReviewCommentEvent EventType = "PullRequestReviewCommentEvent"
	ReleaseEvent                  EventType = "ReleaseEvent"
	PushEvent                     EventType = "PushEvent"
)

// Common actions.
const (
	ActionOpened    = "opened"
	ActionClosed    = "closed"
	ActionReopened  = "reopened"
	ActionCreated   = "created"
	ActionPublished = "published"
)

var knownTypes = map[EventType]struct{}{
	IssuesEvent:                   {},
	IssueCommentEvent:             {},
	PullRequestEvent:              {},
	PullRequestReviewEvent:        {},
	PullRequestReviewCommentEvent: {},
	ReleaseEvent:                  {},
	PushEvent:                     {},
}

// Event is one row of the GitHub event archive.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Action    string    `json:"action,omitempty"`
	Repo      string    `json:"repo_name"`
	Number    int       `json:"number,omitempty"`
	Actor     string    `json:"actor_login"`
	CreatedAt time.Time `json:"created_at"`
	Merged    bool      `json:"merged,omitempty"`
	Labels    []string  `json:"labels,omitempty"`
}

// Sentinel kinds for model validation.
var (
	ErrInvalidEvent = errors.New("invalid event")
	ErrInvalidRepo  = errors.New("invalid repository name")
)

// Validate reports the first structural problem with e.
func (e *Event) Validate() error {
	switch {
	case strings.TrimSpace(e.ID) == "":
		return fmt.Errorf("%w: missing id", ErrInvalidEvent)
	case e.CreatedAt.IsZero():
		return fmt.Errorf("%w: missing created_at", ErrInvalidEvent)
	case strings.TrimSpace(e.Actor) == "":
		return fmt.Errorf("%w: missing actor_login", ErrInvalidEvent)
	}
	if _, ok := knownTypes[e.Type]; !ok {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, e.Type)
	}
	if err := ValidateRepo(e.Repo); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	return nil
}

// HasLabel reports whether e carries a label containing substr, case-insensitively.
func (e *Event) HasLabel(substr string) bool {
	substr = strings.ToLower(substr)
	for _, l := range e.Labels {
		if strings.Contains(strings.ToLower(l), substr) {
			return true
		}
	}
	return false
}

// ValidateRepo checks the owner/name form.
func ValidateRepo(repo string) error {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") || strings.ContainsAny(repo, " \t\n") {
		return fmt.Errorf("%w: %q, want owner/repo", ErrInvalidRepo, repo)
	}
	return nil
}
