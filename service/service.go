package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"repocrawl/config"
	"repocrawl/crawler"
	"repocrawl/db"
	"repocrawl/enricher"
	"repocrawl/export"
	"repocrawl/github"
	"repocrawl/logger"
	"repocrawl/models"
	"repocrawl/ratelimit"
	"repocrawl/report"
	"repocrawl/session"
)

// NoTokenWarning is shown when the crawl runs without a credential.
const NoTokenWarning = "No token provided: you are limited to 60 unauthenticated requests per hour. " +
	"Consider using a token to avoid hitting the limit."

// Service errors
var (
	ErrServiceInit     = errors.New("service initialization error")
	ErrServiceShutdown = errors.New("service shutdown error")
	ErrMissingAccount  = errors.New("please enter a GitHub username or organization")
)

// Lister abstracts the repository listing (for testability)
type Lister interface {
	ListRepositories(ctx context.Context, account string, onPage github.PageFunc) ([]models.RepositoryDescriptor, error)
}

// Orchestrator abstracts the batch enrichment run (for testability)
type Orchestrator interface {
	Run(sess *session.Session, repos []models.RepositoryDescriptor) *models.CrawlResult
}

// Store abstracts the optional result sink (for testability)
type Store interface {
	StoreCrawl(ctx context.Context, result *models.CrawlResult) (int64, error)
	Close() error
}

// Service represents the main application service
type Service struct {
	lister        Lister
	orchestrator  Orchestrator
	store         Store
	authenticated bool
	outputDir     string
	now           func() time.Time
}

// Options wires a Service from its collaborators. Store may be nil.
type Options struct {
	Lister        Lister
	Orchestrator  Orchestrator
	Store         Store
	Authenticated bool
	OutputDir     string
}

// New creates a service from explicit collaborators.
func New(opts Options) *Service {
	return &Service{
		lister:        opts.Lister,
		orchestrator:  opts.Orchestrator,
		store:         opts.Store,
		authenticated: opts.Authenticated,
		outputDir:     opts.OutputDir,
		now:           time.Now,
	}
}

// NewService builds the full crawl stack from configuration.
func NewService(cfg *config.Config) (*Service, error) {
	client, err := github.NewClient(cfg.GitHubToken, github.Options{
		BaseURL:  cfg.APIURL,
		Timeout:  cfg.HTTPTimeout,
		PageSize: cfg.PageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create GitHub client: %v", ErrServiceInit, err)
	}

	orchestrator := crawler.New(
		enricher.New(client),
		ratelimit.NewMonitor(client, cfg.RateLimitThreshold),
		crawler.Options{WindowSize: cfg.WindowSize, CheckEvery: cfg.RateLimitEvery},
	)

	opts := Options{
		Lister:        client,
		Orchestrator:  orchestrator,
		Authenticated: client.Authenticated(),
		OutputDir:     cfg.OutputDir,
	}

	if cfg.StoreResults {
		database, err := db.New(cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to initialize database: %v", ErrServiceInit, err)
		}
		if err := database.EnsureSchema(context.Background()); err != nil {
			database.Close()
			return nil, fmt.Errorf("%w: %v", ErrServiceInit, err)
		}
		opts.Store = database
	}

	logger.Info("Service initialized successfully",
		zap.String("api_url", cfg.APIURL),
		zap.Int("window_size", cfg.WindowSize),
		zap.Int("rate_limit_threshold", cfg.RateLimitThreshold),
		zap.Bool("store_results", cfg.StoreResults))

	return New(opts), nil
}

// Authenticated reports whether the crawl runs with a credential.
func (s *Service) Authenticated() bool {
	return s.authenticated
}

// StartCrawl lists every public repository of account and enriches each one.
// Listing failures are returned; per-repository failures only show up in the
// result's error tally. Progress is reported through the session.
func (s *Service) StartCrawl(sess *session.Session, account string) (*models.CrawlResult, error) {
	account = strings.TrimSpace(account)
	if account == "" {
		return nil, ErrMissingAccount
	}
	if !s.authenticated {
		logger.Warn(NoTokenWarning, zap.String("account", account))
	}

	started := s.now()
	sess.Statusf("Starting repository fetch...")

	repos, err := s.lister.ListRepositories(sess.Context(), account, func(scope github.Scope, page, soFar int) {
		sess.Statusf("Fetching repository list (%s) - page %d... Total so far: %d", scope, page, soFar)
	})
	if err != nil {
		if sess.Cancelled() && errors.Is(err, context.Canceled) {
			logger.Info("Crawl cancelled during listing", zap.String("account", account))
			return s.finish(sess, &models.CrawlResult{Account: account, Cancelled: true}, started), nil
		}
		sess.Statusf("An error occurred: %v", err)
		logger.Error("Repository listing failed",
			zap.String("account", account),
			zap.Error(err))
		return nil, err
	}

	if len(repos) == 0 {
		sess.Statusf("No public repositories found for this user/organization.")
		result := &models.CrawlResult{Account: account, StartedAt: started, EndedAt: s.now()}
		return result, nil
	}

	sess.Statusf("Found %d repositories. Fetching detailed data...", len(repos))

	result := s.orchestrator.Run(sess, repos)
	result.Account = account
	return s.finish(sess, result, started), nil
}

func (s *Service) finish(sess *session.Session, result *models.CrawlResult, started time.Time) *models.CrawlResult {
	result.StartedAt = started
	result.EndedAt = s.now()
	sess.Statusf("Done! Exported %d repositories. Errors encountered: %d.", len(result.Records), result.Errors)

	logger.Info("Crawl finished", report.Summarize(result).Fields()...)
	return result
}

// Export writes result as CSV into the output directory and returns the path.
func (s *Service) Export(result *models.CrawlResult) (string, error) {
	return export.WriteFile(s.outputDir, result, s.now())
}

// Store persists result when a store is configured. It returns 0 when none is.
func (s *Service) Store(ctx context.Context, result *models.CrawlResult) (int64, error) {
	if s.store == nil {
		return 0, nil
	}
	id, err := s.store.StoreCrawl(ctx, result)
	if err != nil {
		return 0, fmt.Errorf("failed to store crawl for %s: %w", result.Account, err)
	}
	return id, nil
}

// Close performs cleanup operations
func (s *Service) Close() error {
	logger.Info("Closing service")
	if s.store == nil {
		return nil
	}
	if err := s.store.Close(); err != nil {
		return fmt.Errorf("%w: failed to close database: %v", ErrServiceShutdown, err)
	}
	return nil
}
