package service

import (
	"context"
	"sync"
	"time"

	"github.com/okian/gitlytix/internal/adapters/provider"
	"github.com/okian/gitlytix/internal/domain/model"
	"github.com/okian/gitlytix/pkg/logger"
	"github.com/okian/gitlytix/pkg/metrics"
)

// Dashboard windows.
const (
	contributorWindow = 30 * 24 * time.Hour
	bugFixWindow      = 90 * 24 * time.Hour
)

// Dashboard gathers every dashboard section for repo concurrently. A failing
// section is logged, recorded in Errors and left empty; only an invalid repo
// name fails the call.
func (s *Service) Dashboard(ctx context.Context, repo string) (Dashboard, error) {
	if err := model.ValidateRepo(repo); err != nil {
		return Dashboard{}, err
	}
	now := s.now()
	d := Dashboard{Repository: repo, GeneratedAt: now.UTC()}

	var mu sync.Mutex
	var wg sync.WaitGroup
	section := func(name string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := fn()
			if err == nil {
				return
			}
			if !IsNotFound(err) {
				metrics.RecordErrorByComponent("dashboard", name)
				s.log().Warn(ctx, "dashboard section failed",
					logger.String("repo", repo), logger.String("section", name), logger.Error(err))
			}
			mu.Lock()
			if d.Errors == nil {
				d.Errors = make(map[string]string)
			}
			d.Errors[name] = err.Error()
			mu.Unlock()
		}()
	}
	set := func(apply func()) {
		mu.Lock()
		apply()
		mu.Unlock()
	}

	section("score", func() error {
		r, err := s.Score(ctx, repo)
		if err == nil {
			set(func() { d.Score = &r })
		}
		return err
	})

	if s.store != nil {
		section("first_response", func() error {
			r, err := s.FirstResponse(ctx, repo, provider.DefaultSince, true)
			if err == nil {
				set(func() { d.FirstResponse = &r })
			}
			return err
		})
		section("resolution", func() error {
			r, err := s.Resolution(ctx, repo, provider.DefaultSince, now)
			if err == nil {
				set(func() { d.Resolution = &r })
			}
			return err
		})
		section("pr_review", func() error {
			r, err := s.PRReview(ctx, repo)
			if err == nil {
				set(func() { d.PRReview = &r })
			}
			return err
		})
		section("bug_fix_rate", func() error {
			r, err := s.store.BugFixRate(ctx, repo, now.Add(-bugFixWindow))
			if err == nil {
				set(func() { d.BugFixRate = &r })
			}
			return err
		})
		section("issues", func() error {
			r, err := s.MonthlyIssues(ctx, repo)
			if err == nil {
				set(func() { d.Issues = r })
			}
			return err
		})
		section("data_quality", func() error {
			r, err := s.DataQuality(ctx, repo)
			if err == nil {
				set(func() { d.DataQuality = &r })
			}
			return err
		})
	}

	if s.gitFor(repo) != nil || s.store != nil {
		section("new_contributors", func() error {
			n, err := s.NewContributors(ctx, repo, now.Add(-contributorWindow))
			if err == nil {
				set(func() { d.NewContributors = &n })
			}
			return err
		})
		section("releases", func() error {
			r, err := s.MonthlyReleases(ctx, repo)
			if err == nil {
				set(func() { d.Releases = r })
			}
			return err
		})
	}

	wg.Wait()
	return d, nil
}

// gitFor returns the local clone when it belongs to repo.
func (s *Service) gitFor(repo string) GitHistory {
	if s.git != nil && s.gitRepo == repo {
		return s.git
	}
	return nil
}

// NewContributors counts first-time contributors since since, from the local
// clone when it is a clone of repo and from stored events otherwise.
func (s *Service) NewContributors(ctx context.Context, repo string, since time.Time) (int, error) {
	if g := s.gitFor(repo); g != nil {
		return g.NewContributors(ctx, since)
	}
	store, err := s.events()
	if err != nil {
		return 0, err
	}
	return store.NewContributors(ctx, repo, since)
}

// MonthlyReleases counts releases per month with the same source rule as
// NewContributors.
func (s *Service) MonthlyReleases(ctx context.Context, repo string) ([]model.MonthlyReleases, error) {
	if g := s.gitFor(repo); g != nil {
		return g.MonthlyReleases(ctx, s.now(), issueMonths)
	}
	store, err := s.events()
	if err != nil {
		return nil, err
	}
	return store.MonthlyReleases(ctx, repo, s.now(), issueMonths)
}
