package db

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"repocrawl/config"
	"repocrawl/logger"
)

// DB represents a database connection
type DB struct {
	conn *sqlx.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS crawls (
	id           BIGSERIAL PRIMARY KEY,
	account      TEXT        NOT NULL,
	started_at   TIMESTAMPTZ NOT NULL,
	ended_at     TIMESTAMPTZ NOT NULL,
	repositories INTEGER     NOT NULL,
	errors       INTEGER     NOT NULL,
	cancelled    BOOLEAN     NOT NULL
);

CREATE TABLE IF NOT EXISTS crawl_repositories (
	crawl_id            BIGINT  NOT NULL REFERENCES crawls (id) ON DELETE CASCADE,
	position            INTEGER NOT NULL,
	full_name           TEXT    NOT NULL,
	description         TEXT,
	html_url            TEXT,
	language            TEXT,
	license             TEXT,
	topics              TEXT,
	stargazers_count    INTEGER,
	forks_count         INTEGER,
	size_kb             INTEGER,
	open_issues_count   INTEGER,
	open_prs            INTEGER,
	closed_prs          INTEGER,
	contributors_count  INTEGER,
	commit_count        INTEGER,
	releases_count      INTEGER,
	latest_release      TEXT,
	languages_breakdown TEXT,
	readme_exists       BOOLEAN,
	is_fork             BOOLEAN NOT NULL,
	is_archived         BOOLEAN NOT NULL,
	pushed_at           TEXT,
	PRIMARY KEY (crawl_id, position)
);
`

// New creates a new database connection
func New(cfg config.PostgresConfig) (*DB, error) {
	logger.Info("Connecting to database",
		zap.String("host", cfg.Host),
		zap.String("port", cfg.Port),
		zap.String("database", cfg.Database))

	conn, err := sqlx.Connect("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseConnection, err)
	}

	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	logger.Info("Database connection established",
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.MaxIdleConns),
		zap.Duration("conn_max_lifetime", cfg.ConnMaxLifetime))
	return &DB{conn: conn}, nil
}

// EnsureSchema creates the result tables when they do not exist yet.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}
