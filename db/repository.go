package db

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"repocrawl/logger"
	"repocrawl/models"
)

const insertCrawl = `
	INSERT INTO crawls (account, started_at, ended_at, repositories, errors, cancelled)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING id
`

const insertCrawlRepository = `
	INSERT INTO crawl_repositories (
		crawl_id, position, full_name, description, html_url,
		language, license, topics, stargazers_count, forks_count,
		size_kb, open_issues_count, open_prs, closed_prs, contributors_count,
		commit_count, releases_count, latest_release, languages_breakdown, readme_exists,
		is_fork, is_archived, pushed_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
		$16, $17, $18, $19, $20, $21, $22, $23)
`

// StoreCrawl persists a finished crawl and its records in one transaction and
// returns the crawl id. Unavailable fields are stored as NULL.
func (db *DB) StoreCrawl(ctx context.Context, result *models.CrawlResult) (int64, error) {
	if result == nil || result.Account == "" {
		return 0, fmt.Errorf("%w: crawl result must carry an account", ErrInvalidInput)
	}

	logger.Info("Storing crawl",
		zap.String("account", result.Account),
		zap.Int("records", len(result.Records)))

	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTransactionFailed, err)
	}
	defer tx.Rollback()

	var crawlID int64
	if err := tx.QueryRowxContext(ctx, insertCrawl,
		result.Account,
		result.StartedAt,
		result.EndedAt,
		len(result.Records),
		result.Errors,
		result.Cancelled,
	).Scan(&crawlID); err != nil {
		return 0, fmt.Errorf("failed to insert crawl: %w", err)
	}

	stmt, err := tx.PreparexContext(ctx, insertCrawlRepository)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare repository insert statement: %w", err)
	}
	defer stmt.Close()

	for i, rec := range result.Records {
		r := rec.Repository
		if _, err := stmt.ExecContext(ctx,
			crawlID,
			i,
			r.FullName,
			r.Description,
			r.HTMLURL,
			r.Language,
			r.LicenseName(),
			r.TopicList(),
			nullablePtr(r.StargazersCount),
			nullablePtr(r.ForksCount),
			nullablePtr(r.Size),
			nullable(rec.OpenIssuesExcluding),
			nullable(rec.OpenPRs),
			nullable(rec.ClosedPRs),
			nullable(rec.ContributorsCount),
			nullable(rec.CommitCount),
			nullable(rec.ReleasesCount),
			nullable(rec.LatestRelease),
			nullable(rec.LanguagesBreakdown),
			nullable(rec.ReadmeExists),
			r.Fork,
			r.Archived,
			r.PushedAt,
		); err != nil {
			return 0, fmt.Errorf("failed to insert repository %s: %w", r.FullName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: failed to commit transaction: %v", ErrTransactionFailed, err)
	}

	logger.Info("Crawl stored",
		zap.Int64("crawl_id", crawlID),
		zap.String("account", result.Account))
	return crawlID, nil
}

func nullable[T any](v models.Value[T]) any {
	if x, ok := v.Get(); ok {
		return x
	}
	return nil
}

func nullablePtr(n *int) any {
	if n == nil {
		return nil
	}
	return *n
}
