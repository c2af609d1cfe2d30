// Package gitrepo derives release and contributor stats from a local clone.
package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"

	"github.com/okian/gitlytix/internal/domain/model"
	"github.com/okian/gitlytix/internal/domain/timefmt"
)

// ErrNoRepository is returned when path holds no git repository.
var ErrNoRepository = errors.New("no git repository")

// Repo is an opened local repository.
type Repo struct {
	repo *git.Repository
	path string
}

// Open opens the repository at path or any parent directory.
func Open(path string) (*Repo, error) {
	r, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%w: %s", ErrNoRepository, path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &Repo{repo: r, path: path}, nil
}

// Path returns the directory the repository was opened from.
func (r *Repo) Path() string { return r.path }

// MonthlyReleases counts tags per month over the last months months. An
// annotated tag is dated by its tagger, a lightweight one by its commit.
func (r *Repo) MonthlyReleases(ctx context.Context, now time.Time, months int) ([]model.MonthlyReleases, error) {
	keys, from := timefmt.MonthWindow(now, months)
	counts := make(map[string]int, len(keys))

	tags, err := r.repo.Tags()
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	err = tags.ForEach(func(ref *plumbing.Reference) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		when, err := r.tagTime(ref)
		if err != nil {
			return err
		}
		if when.Before(from) || when.After(now) {
			return nil
		}
		counts[when.UTC().Format(timefmt.MonthLayout)]++
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk tags: %w", err)
	}

	out := make([]model.MonthlyReleases, 0, len(keys))
	for _, k := range keys {
		out = append(out, model.MonthlyReleases{Month: k, Releases: counts[k]})
	}
	return out, nil
}

func (r *Repo) tagTime(ref *plumbing.Reference) (time.Time, error) {
	tag, err := r.repo.TagObject(ref.Hash())
	switch {
	case err == nil:
		return tag.Tagger.When, nil
	case !errors.Is(err, plumbing.ErrObjectNotFound):
		return time.Time{}, fmt.Errorf("tag %s: %w", ref.Name().Short(), err)
	}
	commit, err := r.repo.CommitObject(ref.Hash())
	if err != nil {
		return time.Time{}, fmt.Errorf("tag %s: %w", ref.Name().Short(), err)
	}
	return commit.Committer.When, nil
}

// NewContributors counts authors, by email, whose first commit on any branch
// is at or after since.
func (r *Repo) NewContributors(ctx context.Context, since time.Time) (int, error) {
	iter, err := r.repo.Log(&git.LogOptions{All: true})
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("log: %w", err)
	}
	defer iter.Close()

	first := make(map[string]time.Time)
	err = iter.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		who := strings.ToLower(c.Author.Email)
		if who == "" {
			who = c.Author.Name
		}
		if prev, ok := first[who]; !ok || c.Author.When.Before(prev) {
			first[who] = c.Author.When
		}
		return nil
	})
	if err != nil && !errors.Is(err, storer.ErrStop) {
		return 0, fmt.Errorf("walk commits: %w", err)
	}

	n := 0
	for _, when := range first {
		if !when.Before(since) {
			n++
		}
	}
	return n, nil
}
