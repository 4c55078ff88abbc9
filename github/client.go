package github

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"
	gh "github.com/google/go-github/v62/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"repocrawl/logger"
)

const (
	defaultBaseURL  = "https://api.github.com/"
	defaultPageSize = 100
	acceptHeader    = "application/vnd.github+json"

	// maxSecondarySleep caps a single secondary rate limit pause in the transport.
	maxSecondarySleep = 15 * time.Minute
)

// Options configures a Client.
type Options struct {
	BaseURL  string
	Timeout  time.Duration
	PageSize int
	// Transport overrides the base round tripper; nil means http.DefaultTransport.
	Transport http.RoundTripper
}

// Client represents a GitHub REST API client
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	rest       *gh.Client
	pageSize   int
	authorized bool
}

// NewClient builds a client. An empty token yields unauthenticated requests.
func NewClient(token string, opts Options) (*Client, error) {
	baseURL, err := parseBaseURL(opts.BaseURL)
	if err != nil {
		return nil, err
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	waiter, err := github_ratelimit.NewRateLimitWaiter(opts.Transport,
		github_ratelimit.WithSingleSleepLimit(maxSecondarySleep, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}

	var transport http.RoundTripper = waiter
	token = strings.TrimSpace(token)
	if token != "" {
		transport = &oauth2.Transport{
			Base:   waiter,
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
		}
	}

	httpClient := &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}

	rest := gh.NewClient(httpClient)
	rest.BaseURL = baseURL

	logger.Info("Initializing GitHub client",
		zap.String("base_url", baseURL.String()),
		zap.Bool("authenticated", token != ""),
		zap.Int("page_size", pageSize))

	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		rest:       rest,
		pageSize:   pageSize,
		authorized: token != "",
	}, nil
}

// Authenticated reports whether requests carry a bearer credential.
func (c *Client) Authenticated() bool {
	return c.authorized
}

func parseBaseURL(raw string) (*url.URL, error) {
	if raw == "" {
		raw = defaultBaseURL
	}
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: base URL %q: %v", ErrInvalidInput, raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: base URL %q must be absolute", ErrInvalidInput, raw)
	}
	return u, nil
}

// resolve turns an endpoint (absolute, or relative to the API root) into a URL.
func (c *Client) resolve(endpoint string) (*url.URL, error) {
	u, err := c.baseURL.Parse(strings.TrimPrefix(endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("%w: endpoint %q: %v", ErrInvalidInput, endpoint, err)
	}
	return u, nil
}

// repoPath returns the relative endpoint of a repository sub-resource.
func repoPath(owner, name, resource string) string {
	return fmt.Sprintf("repos/%s/%s/%s", url.PathEscape(owner), url.PathEscape(name), resource)
}

// get issues a GET and returns the response for any status. The caller owns
// the body. Transport failures are wrapped in *TransportError.
func (c *Client) get(ctx context.Context, u *url.URL) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", acceptHeader)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Warn("Request failed",
			zap.String("url", u.String()),
			zap.Error(err))
		return nil, &TransportError{URL: u.String(), Err: err}
	}
	return resp, nil
}

// getBody issues a GET, requires a 2xx status and returns the body with the
// response headers.
func (c *Client) getBody(ctx context.Context, u *url.URL) ([]byte, http.Header, error) {
	resp, err := c.get(ctx, u)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		logger.Debug("Non-success response",
			zap.String("url", u.String()),
			zap.Int("status_code", resp.StatusCode))
		return nil, resp.Header, &HTTPError{StatusCode: resp.StatusCode, URL: u.String()}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.Header, &TransportError{URL: u.String(), Err: err}
	}
	return body, resp.Header, nil
}
