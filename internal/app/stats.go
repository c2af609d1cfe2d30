package service

import (
	"context"
	"time"

	"github.com/okian/gitlytix/internal/adapters/repository"
	"github.com/okian/gitlytix/internal/domain/model"
	"github.com/okian/gitlytix/internal/domain/timefmt"
)

// issueMonths is how many calendar months the issue and release charts span.
const issueMonths = 6

func (s *Service) events() (repository.EventStore, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	return s.store, nil
}

// FirstResponse returns the average first-response time of issues opened
// since since.
func (s *Service) FirstResponse(ctx context.Context, repo string, since time.Time, excludeOpener bool) (model.FirstResponse, error) {
	store, err := s.events()
	if err != nil {
		return model.FirstResponse{}, err
	}
	out, err := store.FirstResponse(ctx, repo, since, excludeOpener)
	if err != nil {
		return model.FirstResponse{}, err
	}
	out.AverageReadable = timefmt.FormatSeconds(out.AverageSeconds)
	return out, nil
}

// Resolution returns the average issue resolution time within [start, end].
func (s *Service) Resolution(ctx context.Context, repo string, start, end time.Time) (model.Resolution, error) {
	store, err := s.events()
	if err != nil {
		return model.Resolution{}, err
	}
	out, err := store.Resolution(ctx, repo, start, end)
	if err != nil {
		return model.Resolution{}, err
	}
	out.Period = model.Period{Start: start.Format(time.DateOnly), End: end.Format(time.DateOnly)}
	out.AverageReadable = timefmt.FormatSeconds(out.AverageSeconds)
	return out, nil
}

// MonthlyIssues returns opened and closed issue counts for the last six months.
func (s *Service) MonthlyIssues(ctx context.Context, repo string) ([]model.MonthlyIssueStat, error) {
	store, err := s.events()
	if err != nil {
		return nil, err
	}
	return store.MonthlyIssues(ctx, repo, s.now(), issueMonths)
}

// PRSuccessRate returns the share of closed pull requests that were merged.
func (s *Service) PRSuccessRate(ctx context.Context, repo string) (model.PRSuccessRate, error) {
	store, err := s.events()
	if err != nil {
		return model.PRSuccessRate{}, err
	}
	return store.PRSuccessRate(ctx, repo)
}

// PRClosingTime returns the average pull request open-to-close time.
func (s *Service) PRClosingTime(ctx context.Context, repo string, since time.Time) (model.PRClosingTime, error) {
	store, err := s.events()
	if err != nil {
		return model.PRClosingTime{}, err
	}
	out, err := store.PRClosingTime(ctx, repo, since)
	if err != nil {
		return model.PRClosingTime{}, err
	}
	out.AverageReadable = timefmt.FormatSeconds(out.AverageSeconds)
	return out, nil
}

// PRReview returns the average wait for a first non-author review.
func (s *Service) PRReview(ctx context.Context, repo string) (model.PRReview, error) {
	store, err := s.events()
	if err != nil {
		return model.PRReview{}, err
	}
	out, err := store.PRReview(ctx, repo)
	if err != nil {
		return model.PRReview{}, err
	}
	if out.AverageSeconds != nil {
		readable := timefmt.FormatSeconds(*out.AverageSeconds)
		out.AverageReadable = &readable
	}
	return out, nil
}

// DataQuality reports how recent the newest stored event of repo is.
func (s *Service) DataQuality(ctx context.Context, repo string) (model.DataQuality, error) {
	store, err := s.events()
	if err != nil {
		return model.DataQuality{}, err
	}
	latest, err := store.LatestEvent(ctx, repo)
	if err != nil {
		return model.DataQuality{}, err
	}
	age := s.now().Sub(latest)
	return model.DataQuality{
		Repository:           repo,
		LatestEventTime:      latest,
		TimeSinceLatestEvent: timefmt.FormatDifference(age.Seconds()),
		DataFreshnessStatus:  timefmt.Freshness(age, s.fresh, s.stale),
	}, nil
}
