package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"repocrawl/models"
	"repocrawl/session"
)

// MockReader is a mock implementation of StatusReader
type MockReader struct {
	mock.Mock
}

func (m *MockReader) RateLimit(ctx context.Context) (models.RateLimitState, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.RateLimitState), args.Error(1)
}

func newTestMonitor(reader StatusReader, now time.Time) *Monitor {
	m := NewMonitor(reader, DefaultThreshold)
	m.tick = time.Millisecond
	m.now = func() time.Time { return now }
	return m
}

func TestCheckAndWait(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	testCases := []struct {
		name          string
		state         models.RateLimitState
		err           error
		expectedTicks int
		expectedLast  string
	}{
		{
			name:          "low budget waits for reset",
			state:         models.RateLimitState{Remaining: 5, Reset: now.Add(3 * time.Second)},
			expectedTicks: 3,
			expectedLast:  "Rate limit almost exhausted. Pausing until reset in 0m 1s...",
		},
		{
			name:          "partial second rounds up",
			state:         models.RateLimitState{Remaining: 0, Reset: now.Add(1500 * time.Millisecond)},
			expectedTicks: 2,
		},
		{
			name:  "plenty of budget",
			state: models.RateLimitState{Remaining: 50, Reset: now.Add(time.Hour)},
		},
		{
			name:  "threshold itself does not pause",
			state: models.RateLimitState{Remaining: DefaultThreshold, Reset: now.Add(time.Hour)},
		},
		{
			name:  "no reset time",
			state: models.RateLimitState{Remaining: 1},
		},
		{
			name:  "reset already passed",
			state: models.RateLimitState{Remaining: 1, Reset: now.Add(-time.Second)},
		},
		{
			name: "query failure fails open",
			err:  assert.AnError,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			reader := &MockReader{}
			reader.On("RateLimit", mock.Anything).Return(tc.state, tc.err).Once()

			var statuses []string
			sess := session.New(context.Background(), func(msg string) { statuses = append(statuses, msg) })

			ticks := newTestMonitor(reader, now).CheckAndWait(sess)

			assert.Equal(t, tc.expectedTicks, ticks)
			assert.Len(t, statuses, tc.expectedTicks)
			if tc.expectedLast != "" {
				assert.Equal(t, tc.expectedLast, statuses[len(statuses)-1])
			}
			reader.AssertExpectations(t)
		})
	}
}

func TestCheckAndWaitCountdownFormat(t *testing.T) {
	now := time.Now()
	reader := &MockReader{}
	reader.On("RateLimit", mock.Anything).
		Return(models.RateLimitState{Remaining: 2, Reset: now.Add(125 * time.Second)}, nil)

	var first string
	var sess *session.Session
	sess = session.New(context.Background(), func(msg string) {
		if first == "" {
			first = msg
		}
		sess.Cancel()
	})

	ticks := newTestMonitor(reader, now).CheckAndWait(sess)

	assert.Equal(t, "Rate limit almost exhausted. Pausing until reset in 2m 5s...", first)
	assert.LessOrEqual(t, ticks, 1)
}

func TestCheckAndWaitCancelled(t *testing.T) {
	now := time.Now()
	reader := &MockReader{}
	reader.On("RateLimit", mock.Anything).
		Return(models.RateLimitState{Remaining: 0, Reset: now.Add(time.Hour)}, nil)

	sess := session.New(context.Background(), nil)
	m := newTestMonitor(reader, now)
	m.tick = time.Hour

	done := make(chan int)
	go func() { done <- m.CheckAndWait(sess) }()

	sess.Cancel()
	select {
	case ticks := <-done:
		assert.Equal(t, 0, ticks)
	case <-time.After(5 * time.Second):
		t.Fatal("monitor did not observe cancellation")
	}
}
