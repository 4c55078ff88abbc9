// Package session holds the per-crawl handle shared by every component that
// needs to observe cancellation, report status or count errors.
package session

import (
	"context"
	"fmt"
	"sync/atomic"
)

// StatusFunc receives human-readable progress strings.
type StatusFunc func(msg string)

// Session is one crawl run. It is safe for concurrent use.
type Session struct {
	ctx    context.Context
	cancel context.CancelFunc
	status StatusFunc
	errors atomic.Int64
}

// New starts a session derived from parent. status may be nil.
func New(parent context.Context, status StatusFunc) *Session {
	ctx, cancel := context.WithCancel(parent)
	return &Session{ctx: ctx, cancel: cancel, status: status}
}

// Context is cancelled when the session is cancelled.
func (s *Session) Context() context.Context {
	return s.ctx
}

// RequestContext carries the session's values but never its cancellation,
// so requests already in flight run to completion.
func (s *Session) RequestContext() context.Context {
	return context.WithoutCancel(s.ctx)
}

// Cancel asks every component to stop at its next checkpoint.
func (s *Session) Cancel() {
	s.cancel()
}

// Cancelled reports whether Cancel was called or the parent context ended.
func (s *Session) Cancelled() bool {
	return s.ctx.Err() != nil
}

// Done is closed on cancellation.
func (s *Session) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Statusf formats and forwards a status message.
func (s *Session) Statusf(format string, args ...any) {
	if s.status != nil {
		s.status(fmt.Sprintf(format, args...))
	}
}

// AddError increments the crawl error tally.
func (s *Session) AddError() {
	s.errors.Add(1)
}

// Errors returns the current error tally.
func (s *Session) Errors() int {
	return int(s.errors.Load())
}
