// Package export serializes a finished crawl as a CSV document.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"repocrawl/logger"
	"repocrawl/models"
)

// Header is the fixed column order of the export.
var Header = []string{
	"name",
	"full_name",
	"description",
	"html_url",
	"homepage",
	"created_at",
	"updated_at",
	"pushed_at",
	"stargazers_count",
	"watchers_count",
	"forks_count",
	"open_issues_count",
	"open_prs",
	"closed_prs",
	"contributors_count",
	"commit_count",
	"releases_count",
	"latest_release",
	"size_kb",
	"language",
	"languages_breakdown",
	"topics",
	"license",
	"readme_exists",
	"is_fork",
	"is_archived",
	"is_template",
	"default_branch",
	"visibility",
}

const lineBreak = "\r\n"

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// Filename derives the export file name from the account and a date.
func Filename(account string, date time.Time) string {
	safe := unsafeChars.ReplaceAllString(account, "_")
	if safe == "" {
		safe = "github"
	}
	return fmt.Sprintf("%s_github_repos_%s.csv", safe, date.Format("2006-01-02"))
}

// Row renders one record in Header order. The open_issues_count column holds
// the count with pull requests subtracted.
func Row(rec models.EnrichedRecord) []string {
	r := rec.Repository
	return []string{
		r.Name,
		r.FullName,
		r.Description,
		r.HTMLURL,
		r.Homepage,
		r.CreatedAt,
		r.UpdatedAt,
		r.PushedAt,
		optionalInt(r.StargazersCount),
		optionalInt(r.WatchersCount),
		optionalInt(r.ForksCount),
		rec.OpenIssuesExcluding.String(),
		rec.OpenPRs.String(),
		rec.ClosedPRs.String(),
		rec.ContributorsCount.String(),
		rec.CommitCount.String(),
		rec.ReleasesCount.String(),
		rec.LatestRelease.String(),
		optionalInt(r.Size),
		r.Language,
		rec.LanguagesBreakdown.String(),
		r.TopicList(),
		r.LicenseName(),
		rec.ReadmeExists.String(),
		strconv.FormatBool(r.Fork),
		strconv.FormatBool(r.Archived),
		strconv.FormatBool(r.IsTemplate),
		r.DefaultBranch,
		r.Visibility,
	}
}

// Write encodes records as CSV: an unquoted header line, then one line per
// record with every value quoted. Lines are separated by CRLF.
func Write(w io.Writer, records []models.EnrichedRecord) error {
	var b strings.Builder
	b.WriteString(strings.Join(Header, ","))
	for _, rec := range records {
		b.WriteString(lineBreak)
		for i, field := range Row(rec) {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(quote(field))
		}
	}
	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	return nil
}

// WriteFile writes result into dir under the name Filename derives and
// returns the full path.
func WriteFile(dir string, result *models.CrawlResult, date time.Time) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, Filename(result.Account, date))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}
	if err := Write(f, result.Records); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close export file: %w", err)
	}

	logger.Info("Export written",
		zap.String("path", path),
		zap.Int("records", len(result.Records)))
	return path, nil
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func optionalInt(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}
