package github

import (
	"context"
	"fmt"

	"repocrawl/models"
)

// RateLimit queries the rate limit status endpoint once and returns the core
// REST budget.
func (c *Client) RateLimit(ctx context.Context) (models.RateLimitState, error) {
	limits, _, err := c.rest.RateLimit.Get(ctx)
	if err != nil {
		return models.RateLimitState{}, fmt.Errorf("failed to fetch rate limit: %w", err)
	}
	if limits == nil || limits.Core == nil {
		return models.RateLimitState{}, ErrNoRateLimitData
	}
	return models.RateLimitState{
		Remaining: limits.Core.Remaining,
		Reset:     limits.Core.Reset.Time,
	}, nil
}
