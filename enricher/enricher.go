// Package enricher resolves the derived metrics of a single repository.
package enricher

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"repocrawl/logger"
	"repocrawl/models"
	"repocrawl/session"
)

// API is the set of remote lookups an enrichment needs.
type API interface {
	CountItems(ctx context.Context, endpoint string) models.Value[int]
	Languages(ctx context.Context, owner, name string) models.Value[string]
	LatestRelease(ctx context.Context, owner, name string) models.Value[string]
	ReadmeExists(ctx context.Context, owner, name string) models.Value[bool]
}

// Enricher folds the secondary lookups of a repository into one record.
type Enricher struct {
	api API
}

// New creates an Enricher.
func New(api API) *Enricher {
	return &Enricher{api: api}
}

// Endpoints returns the collection endpoints counted for a repository, in
// the order commits, open pulls, closed pulls, contributors, releases.
func Endpoints(owner, name string) [5]string {
	base := fmt.Sprintf("repos/%s/%s", url.PathEscape(owner), url.PathEscape(name))
	return [5]string{
		base + "/commits?per_page=1",
		base + "/pulls?state=open&per_page=1",
		base + "/pulls?state=closed&per_page=1",
		base + "/contributors?per_page=1&anon=true",
		base + "/releases?per_page=1",
	}
}

// Enrich runs the eight lookups for repo concurrently and returns the record.
// It never fails: each lookup degrades to an unavailable field, and a
// repository with any failed lookup adds exactly one to the session's error
// tally.
func (e *Enricher) Enrich(sess *session.Session, repo models.RepositoryDescriptor) models.EnrichedRecord {
	ctx := sess.RequestContext()
	owner, name := repo.OwnerLogin(), repo.Name
	endpoints := Endpoints(owner, name)

	rec := models.EnrichedRecord{Repository: repo}

	var g errgroup.Group
	g.Go(func() error { rec.CommitCount = e.api.CountItems(ctx, endpoints[0]); return nil })
	g.Go(func() error { rec.OpenPRs = e.api.CountItems(ctx, endpoints[1]); return nil })
	g.Go(func() error { rec.ClosedPRs = e.api.CountItems(ctx, endpoints[2]); return nil })
	g.Go(func() error { rec.ContributorsCount = e.api.CountItems(ctx, endpoints[3]); return nil })
	g.Go(func() error { rec.ReleasesCount = e.api.CountItems(ctx, endpoints[4]); return nil })
	g.Go(func() error { rec.LanguagesBreakdown = e.api.Languages(ctx, owner, name); return nil })
	g.Go(func() error { rec.LatestRelease = e.api.LatestRelease(ctx, owner, name); return nil })
	g.Go(func() error { rec.ReadmeExists = e.api.ReadmeExists(ctx, owner, name); return nil })
	_ = g.Wait()

	rec.OpenIssuesExcluding = openIssuesExcludingPRs(repo.OpenIssuesCount, rec.OpenPRs)

	if rec.LookupFailed() {
		sess.AddError()
		logger.With(zap.String("repo", repo.FullName)).
			Warn("Repository enriched with unavailable fields",
				zap.Strings("unavailable", unavailableFields(rec)))
	}
	return rec
}

// openIssuesExcludingPRs subtracts open pull requests from the raw open
// issue count, which includes them.
func openIssuesExcludingPRs(raw *int, openPRs models.Value[int]) models.Value[int] {
	if raw == nil {
		return models.Unavailable[int]("open issue count missing from listing")
	}
	prs, ok := openPRs.Get()
	if !ok {
		return models.Unavailable[int]("open pull request count unavailable")
	}
	return models.Available(*raw - prs)
}

func unavailableFields(rec models.EnrichedRecord) []string {
	var fields []string
	check := func(name string, ok bool) {
		if !ok {
			fields = append(fields, name)
		}
	}
	check("commit_count", rec.CommitCount.IsAvailable())
	check("open_prs", rec.OpenPRs.IsAvailable())
	check("closed_prs", rec.ClosedPRs.IsAvailable())
	check("contributors_count", rec.ContributorsCount.IsAvailable())
	check("releases_count", rec.ReleasesCount.IsAvailable())
	check("languages_breakdown", rec.LanguagesBreakdown.IsAvailable())
	check("latest_release", rec.LatestRelease.IsAvailable())
	check("readme_exists", rec.ReadmeExists.IsAvailable())
	return fields
}
