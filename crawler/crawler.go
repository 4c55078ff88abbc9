// Package crawler drives enrichment over a repository list in bounded,
// strictly sequential windows.
package crawler

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"repocrawl/logger"
	"repocrawl/models"
	"repocrawl/session"
)

// Defaults
const (
	DefaultWindowSize = 5
	DefaultCheckEvery = 10
)

// Enricher produces the record of one repository.
type Enricher interface {
	Enrich(sess *session.Session, repo models.RepositoryDescriptor) models.EnrichedRecord
}

// RateLimiter blocks while the request budget is low.
type RateLimiter interface {
	CheckAndWait(sess *session.Session) int
}

// Options tunes the orchestrator. Zero values take the defaults.
type Options struct {
	WindowSize int
	CheckEvery int
}

// Orchestrator runs enrichments window by window.
type Orchestrator struct {
	enricher   Enricher
	limiter    RateLimiter
	windowSize int
	checkEvery int
}

// New creates an Orchestrator.
func New(enricher Enricher, limiter RateLimiter, opts Options) *Orchestrator {
	if opts.WindowSize <= 0 {
		opts.WindowSize = DefaultWindowSize
	}
	if opts.CheckEvery <= 0 {
		opts.CheckEvery = DefaultCheckEvery
	}
	return &Orchestrator{
		enricher:   enricher,
		limiter:    limiter,
		windowSize: opts.WindowSize,
		checkEvery: opts.CheckEvery,
	}
}

// Windows splits n items into consecutive [start, end) ranges of at most size.
func Windows(n, size int) [][2]int {
	var out [][2]int
	for start := 0; start < n; start += size {
		out = append(out, [2]int{start, min(start+size, n)})
	}
	return out
}

// Run enriches repos and returns the records in input order. A window runs
// to completion before the next starts; the rate limiter is consulted after
// every window that brings the processed count to a multiple of CheckEvery.
// Cancellation is observed between windows, so a cancelled run returns the
// records of every window that started.
func (o *Orchestrator) Run(sess *session.Session, repos []models.RepositoryDescriptor) *models.CrawlResult {
	records := make([]models.EnrichedRecord, len(repos))
	var completed atomic.Int64
	processed := 0
	cancelled := false

	for _, w := range Windows(len(repos), o.windowSize) {
		if sess.Cancelled() {
			cancelled = true
			logger.Info("Crawl cancelled, stopping before next window",
				zap.Int("processed", processed),
				zap.Int("total", len(repos)))
			break
		}

		var g errgroup.Group
		for i := w[0]; i < w[1]; i++ {
			g.Go(func() error {
				sess.Statusf("Processing repo %d/%d: %s... (%d completed)",
					i+1, len(repos), repos[i].Name, completed.Load())
				records[i] = o.enrichOne(sess, repos[i])
				completed.Add(1)
				return nil
			})
		}
		_ = g.Wait()
		processed = w[1]

		if processed%o.checkEvery == 0 {
			o.limiter.CheckAndWait(sess)
		}
	}

	return &models.CrawlResult{
		Records:   records[:processed],
		Errors:    sess.Errors(),
		Cancelled: cancelled,
	}
}

// enrichOne contains a panicking enrichment to its own record.
func (o *Orchestrator) enrichOne(sess *session.Session, repo models.RepositoryDescriptor) (rec models.EnrichedRecord) {
	defer func() {
		if r := recover(); r != nil {
			sess.AddError()
			logger.Error("Enrichment panicked",
				zap.String("repo", repo.FullName),
				zap.Any("panic", r))
			rec = models.NewUnavailableRecord(repo, fmt.Sprintf("enrichment failed: %v", r))
		}
	}()
	return o.enricher.Enrich(sess, repo)
}
