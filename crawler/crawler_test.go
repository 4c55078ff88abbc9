package crawler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repocrawl/models"
	"repocrawl/session"
)

// fakeEnricher records concurrency and completes later indexes first.
type fakeEnricher struct {
	mu          sync.Mutex
	inFlight    int
	maxInFlight int
	done        int
	panicOn     string
	failOn      string
}

func (f *fakeEnricher) Enrich(sess *session.Session, repo models.RepositoryDescriptor) models.EnrichedRecord {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.done++
		f.mu.Unlock()
	}()

	var idx int
	fmt.Sscanf(repo.Name, "repo-%d", &idx)
	time.Sleep(time.Duration(20-idx) * time.Millisecond)

	if repo.Name == f.panicOn {
		panic("boom")
	}
	if repo.Name == f.failOn {
		sess.AddError()
		rec := models.NewUnavailableRecord(repo, "status code 500")
		rec.LatestRelease = models.Available("")
		return rec
	}
	return models.EnrichedRecord{Repository: repo, CommitCount: models.Available(idx)}
}

func (f *fakeEnricher) completed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.done
}

// fakeLimiter records the completed count every time it is consulted.
type fakeLimiter struct {
	enricher *fakeEnricher
	seen     []int
	onCheck  func(sess *session.Session)
}

func (l *fakeLimiter) CheckAndWait(sess *session.Session) int {
	l.seen = append(l.seen, l.enricher.completed())
	if l.onCheck != nil {
		l.onCheck(sess)
	}
	return 0
}

func makeRepos(n int) []models.RepositoryDescriptor {
	repos := make([]models.RepositoryDescriptor, n)
	for i := range repos {
		repos[i] = models.RepositoryDescriptor{Name: fmt.Sprintf("repo-%d", i), FullName: fmt.Sprintf("acme/repo-%d", i)}
	}
	return repos
}

func names(records []models.EnrichedRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Repository.Name
	}
	return out
}

func TestWindows(t *testing.T) {
	assert.Equal(t, [][2]int{{0, 5}, {5, 10}, {10, 12}}, Windows(12, 5))
	assert.Equal(t, [][2]int{{0, 5}}, Windows(5, 5))
	assert.Empty(t, Windows(0, 5))
}

func TestRun(t *testing.T) {
	testCases := []struct {
		name         string
		repos        int
		checkEvery   int
		expectedSeen []int
	}{
		{name: "twelve repos check every ten", repos: 12, checkEvery: 10, expectedSeen: []int{10}},
		{name: "twelve repos check every five", repos: 12, checkEvery: 5, expectedSeen: []int{5, 10}},
		{name: "twenty repos check every ten", repos: 20, checkEvery: 10, expectedSeen: []int{10, 20}},
		{name: "fewer repos than a window", repos: 3, checkEvery: 10},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			enricher := &fakeEnricher{}
			limiter := &fakeLimiter{enricher: enricher}
			var statuses []string
			var mu sync.Mutex
			sess := session.New(context.Background(), func(msg string) {
				mu.Lock()
				statuses = append(statuses, msg)
				mu.Unlock()
			})
			repos := makeRepos(tc.repos)

			result := New(enricher, limiter, Options{WindowSize: 5, CheckEvery: tc.checkEvery}).Run(sess, repos)

			require.Len(t, result.Records, tc.repos)
			for i, rec := range result.Records {
				assert.Equal(t, repos[i], rec.Repository)
				assert.Equal(t, models.Available(i), rec.CommitCount)
			}
			assert.LessOrEqual(t, enricher.maxInFlight, 5)
			assert.Equal(t, tc.expectedSeen, limiter.seen)
			assert.Equal(t, 0, result.Errors)
			assert.False(t, result.Cancelled)
			assert.Len(t, statuses, tc.repos)
		})
	}
}

func TestRunWindowsAreSequential(t *testing.T) {
	enricher := &fakeEnricher{}
	limiter := &fakeLimiter{enricher: enricher}
	sess := session.New(context.Background(), nil)

	New(enricher, limiter, Options{WindowSize: 5, CheckEvery: 1}).Run(sess, makeRepos(12))

	// With CheckEvery of one the limiter sees every window boundary.
	assert.Equal(t, []int{5, 10, 12}, limiter.seen)
	assert.Equal(t, 5, enricher.maxInFlight)
}

func TestRunContainsFailures(t *testing.T) {
	enricher := &fakeEnricher{panicOn: "repo-2", failOn: "repo-4"}
	limiter := &fakeLimiter{enricher: enricher}
	sess := session.New(context.Background(), nil)

	result := New(enricher, limiter, Options{}).Run(sess, makeRepos(7))

	require.Len(t, result.Records, 7)
	assert.Equal(t, 2, result.Errors)

	panicked := result.Records[2]
	assert.Equal(t, "repo-2", panicked.Repository.Name)
	assert.False(t, panicked.CommitCount.IsAvailable())
	assert.Contains(t, panicked.ReadmeExists.Reason(), "boom")

	assert.False(t, result.Records[4].CommitCount.IsAvailable())
	assert.Equal(t, models.Available(6), result.Records[6].CommitCount)
}

func TestRunCancellation(t *testing.T) {
	enricher := &fakeEnricher{}
	limiter := &fakeLimiter{
		enricher: enricher,
		onCheck:  func(sess *session.Session) { sess.Cancel() },
	}
	sess := session.New(context.Background(), nil)

	result := New(enricher, limiter, Options{WindowSize: 5, CheckEvery: 5}).Run(sess, makeRepos(12))

	assert.True(t, result.Cancelled)
	assert.Equal(t, []string{"repo-0", "repo-1", "repo-2", "repo-3", "repo-4"}, names(result.Records))
	assert.Equal(t, []int{5}, limiter.seen)
}

func TestRunCancelledBeforeStart(t *testing.T) {
	enricher := &fakeEnricher{}
	sess := session.New(context.Background(), nil)
	sess.Cancel()

	result := New(enricher, &fakeLimiter{enricher: enricher}, Options{}).Run(sess, makeRepos(3))

	assert.True(t, result.Cancelled)
	assert.Empty(t, result.Records)
	assert.Equal(t, 0, enricher.completed())
}
