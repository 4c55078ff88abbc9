package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"repocrawl/logger"
	"repocrawl/models"
)

// Scope selects the listing endpoint family.
type Scope string

const (
	ScopeUser         Scope = "user"
	ScopeOrganization Scope = "organization"
)

// PageFunc is called before each listing page is requested.
type PageFunc func(scope Scope, page, soFar int)

func (c *Client) listURL(scope Scope, account string) (*url.URL, error) {
	prefix := "users"
	if scope == ScopeOrganization {
		prefix = "orgs"
	}
	u, err := c.resolve(fmt.Sprintf("%s/%s/repos", prefix, url.PathEscape(account)))
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("per_page", strconv.Itoa(c.pageSize))
	q.Set("type", "public")
	q.Set("sort", "full_name")
	u.RawQuery = q.Encode()
	return u, nil
}

// ListRepositories returns every public repository of account in listing
// order. The user endpoint is tried first; a 404 or 403 on its first page
// restarts the walk against the organization endpoint. ctx is checked between
// pages only.
func (c *Client) ListRepositories(ctx context.Context, account string, onPage PageFunc) ([]models.RepositoryDescriptor, error) {
	if account == "" {
		return nil, fmt.Errorf("%w: account cannot be empty", ErrInvalidInput)
	}

	repos, failedPage, err := c.walk(ctx, ScopeUser, account, onPage)
	if err != nil && failedPage == 1 {
		if code := statusCode(err); code == http.StatusNotFound || code == http.StatusForbidden {
			logger.Info("User listing unavailable, retrying as organization",
				zap.String("account", account),
				zap.Int("status_code", code))
			repos, _, err = c.walk(ctx, ScopeOrganization, account, onPage)
		}
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, err
		}
		return nil, &FetchError{Account: account, StatusCode: statusCode(err), Err: err}
	}

	logger.Info("Fetched repository list",
		zap.String("account", account),
		zap.Int("count", len(repos)))
	return repos, nil
}

// walk follows rel="next" links until none remain. On failure it returns the
// number of the page that failed.
func (c *Client) walk(ctx context.Context, scope Scope, account string, onPage PageFunc) ([]models.RepositoryDescriptor, int, error) {
	next, err := c.listURL(scope, account)
	if err != nil {
		return nil, 1, err
	}

	// In-flight requests are never aborted; cancellation is observed between pages.
	reqCtx := context.WithoutCancel(ctx)

	var all []models.RepositoryDescriptor
	for page := 1; next != nil; page++ {
		if err := ctx.Err(); err != nil {
			return nil, page, fmt.Errorf("listing cancelled: %w", err)
		}
		if onPage != nil {
			onPage(scope, page, len(all))
		}

		logger.Debug("Fetching repository page",
			zap.String("account", account),
			zap.String("scope", string(scope)),
			zap.Int("page", page),
			zap.String("url", next.String()))

		body, header, err := c.getBody(reqCtx, next)
		if err != nil {
			return nil, page, err
		}

		var repos []models.RepositoryDescriptor
		if err := json.Unmarshal(body, &repos); err != nil {
			return nil, page, fmt.Errorf("failed to decode repository page %d: %w", page, err)
		}
		all = append(all, repos...)

		next = nil
		if target, ok := parseLinkHeader(header.Get("Link"))["next"]; ok {
			if next, err = c.resolve(target); err != nil {
				return nil, page + 1, err
			}
		}
	}
	return all, 0, nil
}
