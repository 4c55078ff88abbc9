// Package report computes the post-run summary of a crawl.
package report

import (
	"fmt"
	"strconv"
	"time"

	"github.com/montanaflynn/stats"
	"go.uber.org/zap"

	"repocrawl/models"
)

// Summary aggregates a CrawlResult.
type Summary struct {
	Account         string
	Repositories    int
	Errors          int
	Cancelled       bool
	TotalStars      int
	MedianStars     float64
	TotalCommits    int
	ResolvedCommits int
	Duration        time.Duration
}

// Summarize computes the summary of result. Unavailable commit counts and
// missing star counts are left out of the aggregates.
func Summarize(result *models.CrawlResult) Summary {
	s := Summary{
		Account:      result.Account,
		Repositories: len(result.Records),
		Errors:       result.Errors,
		Cancelled:    result.Cancelled,
	}
	if !result.StartedAt.IsZero() && !result.EndedAt.IsZero() {
		s.Duration = result.EndedAt.Sub(result.StartedAt)
	}

	var starData, commitData stats.Float64Data
	for _, rec := range result.Records {
		if n := rec.Repository.StargazersCount; n != nil {
			starData = append(starData, float64(*n))
		}
		if n, ok := rec.CommitCount.Get(); ok {
			commitData = append(commitData, float64(n))
		}
	}

	if len(starData) > 0 {
		total, _ := stats.Sum(starData)
		median, _ := stats.Median(starData)
		s.TotalStars = int(total)
		s.MedianStars = median
	}
	if len(commitData) > 0 {
		total, _ := stats.Sum(commitData)
		s.TotalCommits = int(total)
		s.ResolvedCommits = len(commitData)
	}
	return s
}

// Rows renders the summary as label/value pairs.
func (s Summary) Rows() [][]string {
	return [][]string{
		{"Account", s.Account},
		{"Repositories", strconv.Itoa(s.Repositories)},
		{"Errors", strconv.Itoa(s.Errors)},
		{"Cancelled", strconv.FormatBool(s.Cancelled)},
		{"Total stars", strconv.Itoa(s.TotalStars)},
		{"Median stars", strconv.FormatFloat(s.MedianStars, 'f', 1, 64)},
		{"Total commits", fmt.Sprintf("%d (%d/%d resolved)", s.TotalCommits, s.ResolvedCommits, s.Repositories)},
		{"Duration", s.Duration.Round(time.Millisecond).String()},
	}
}

// Fields returns the summary as structured log fields.
func (s Summary) Fields() []zap.Field {
	return []zap.Field{
		zap.String("account", s.Account),
		zap.Int("repositories", s.Repositories),
		zap.Int("errors", s.Errors),
		zap.Bool("cancelled", s.Cancelled),
		zap.Int("total_stars", s.TotalStars),
		zap.Float64("median_stars", s.MedianStars),
		zap.Int("total_commits", s.TotalCommits),
		zap.Duration("duration", s.Duration),
	}
}
