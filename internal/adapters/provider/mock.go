package provider

import (
	"context"
	"maps"

	"github.com/okian/gitlytix/internal/domain/scoring"
)

// DemoInput is the sample data used by the dashboard in mock mode:
// 2h6m first response, 3d resolution, 36h review.
func DemoInput() scoring.Input {
	return scoring.Input{
		scoring.FirstResponse:   7560,
		scoring.IssueResolution: 259200,
		scoring.PRReview:        129600,
	}
}

// MockProvider returns the same values for every repository.
type MockProvider struct {
	values scoring.Input
}

// NewMockProvider returns a provider serving values, or DemoInput when empty.
func NewMockProvider(values scoring.Input) *MockProvider {
	if len(values) == 0 {
		values = DemoInput()
	}
	return &MockProvider{values: maps.Clone(values)}
}

// Name implements Provider.
func (p *MockProvider) Name() string { return "mock" }

// Fetch implements Provider.
func (p *MockProvider) Fetch(ctx context.Context, _ string) (scoring.Input, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return maps.Clone(p.values), nil
}
