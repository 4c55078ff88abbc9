package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"repocrawl/models"
)

func intPtr(n int) *int { return &n }

func record(stars *int, commits models.Value[int]) models.EnrichedRecord {
	return models.EnrichedRecord{
		Repository:  models.RepositoryDescriptor{StargazersCount: stars},
		CommitCount: commits,
	}
}

func TestSummarize(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	testCases := []struct {
		name     string
		result   *models.CrawlResult
		expected Summary
	}{
		{
			name:     "empty result",
			result:   &models.CrawlResult{Account: "acme"},
			expected: Summary{Account: "acme"},
		},
		{
			name: "mixed availability",
			result: &models.CrawlResult{
				Account: "acme",
				Records: []models.EnrichedRecord{
					record(intPtr(10), models.Available(100)),
					record(intPtr(2), models.Unavailable[int]("status code 500")),
					record(nil, models.Available(5)),
					record(intPtr(7), models.Available(0)),
				},
				Errors:    1,
				StartedAt: start,
				EndedAt:   start.Add(3 * time.Second),
			},
			expected: Summary{
				Account:         "acme",
				Repositories:    4,
				Errors:          1,
				TotalStars:      19,
				MedianStars:     7,
				TotalCommits:    105,
				ResolvedCommits: 3,
				Duration:        3 * time.Second,
			},
		},
		{
			name: "cancelled run",
			result: &models.CrawlResult{
				Account:   "acme",
				Records:   []models.EnrichedRecord{record(intPtr(1), models.Available(1)), record(intPtr(4), models.Available(2))},
				Cancelled: true,
			},
			expected: Summary{
				Account:         "acme",
				Repositories:    2,
				Cancelled:       true,
				TotalStars:      5,
				MedianStars:     2.5,
				TotalCommits:    3,
				ResolvedCommits: 2,
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Summarize(tc.result))
		})
	}
}

func TestRows(t *testing.T) {
	rows := Summary{Account: "acme", Repositories: 4, TotalCommits: 105, ResolvedCommits: 3, MedianStars: 7}.Rows()
	assert.Equal(t, []string{"Account", "acme"}, rows[0])
	assert.Equal(t, []string{"Median stars", "7.0"}, rows[5])
	assert.Equal(t, []string{"Total commits", "105 (3/4 resolved)"}, rows[6])
	assert.Len(t, Summary{}.Fields(), 8)
}
