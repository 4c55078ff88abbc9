// Package ratelimit pauses a crawl while the shared request budget is low.
package ratelimit

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"repocrawl/logger"
	"repocrawl/models"
	"repocrawl/session"
)

// DefaultThreshold is the remaining budget below which the monitor pauses.
// It leaves headroom for the requests of a window already in flight.
const DefaultThreshold = 20

// StatusReader queries the remote rate limit status.
type StatusReader interface {
	RateLimit(ctx context.Context) (models.RateLimitState, error)
}

// Monitor blocks callers until the budget window resets.
type Monitor struct {
	reader    StatusReader
	threshold int
	tick      time.Duration
	now       func() time.Time
}

// NewMonitor creates a monitor that re-evaluates once per second.
func NewMonitor(reader StatusReader, threshold int) *Monitor {
	return &Monitor{
		reader:    reader,
		threshold: threshold,
		tick:      time.Second,
		now:       time.Now,
	}
}

// CheckAndWait queries the budget once. When fewer than threshold requests
// remain and a reset time is known, it blocks, reporting a countdown on every
// tick, until the reset time or until the session is cancelled. A failed
// query returns immediately. It returns the number of ticks waited.
func (m *Monitor) CheckAndWait(sess *session.Session) int {
	state, err := m.reader.RateLimit(sess.RequestContext())
	if err != nil {
		logger.Warn("Rate limit check failed, continuing", zap.Error(err))
		return 0
	}

	logger.Debug("Rate limit status",
		zap.Int("remaining", state.Remaining),
		zap.Time("reset", state.Reset))

	if state.Remaining >= m.threshold || state.Reset.IsZero() {
		return 0
	}
	wait := state.Reset.Sub(m.now())
	if wait <= 0 {
		return 0
	}

	secsLeft := int(math.Ceil(wait.Seconds()))
	logger.Info("Rate limit almost exhausted, pausing",
		zap.Int("remaining", state.Remaining),
		zap.Time("reset", state.Reset),
		zap.Int("wait_seconds", secsLeft))

	ticker := time.NewTicker(m.tick)
	defer ticker.Stop()

	ticks := 0
	for ; secsLeft > 0; secsLeft-- {
		if sess.Cancelled() {
			break
		}
		sess.Statusf("Rate limit almost exhausted. Pausing until reset in %dm %ds...", secsLeft/60, secsLeft%60)
		select {
		case <-sess.Done():
			return ticks
		case <-ticker.C:
		}
		ticks++
	}
	return ticks
}
