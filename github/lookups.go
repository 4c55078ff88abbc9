package github

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"repocrawl/models"
)

// Languages returns the byte breakdown of a repository as "lang:bytes" pairs
// joined by ";", in the order the API lists them.
func (c *Client) Languages(ctx context.Context, owner, name string) models.Value[string] {
	u, err := c.resolve(repoPath(owner, name, "languages"))
	if err != nil {
		return models.UnavailableErr[string](err)
	}
	body, _, err := c.getBody(ctx, u)
	if err != nil {
		return models.UnavailableErr[string](err)
	}
	if !gjson.ValidBytes(body) {
		return models.Unavailable[string]("malformed languages response")
	}

	var pairs []string
	gjson.ParseBytes(body).ForEach(func(lang, bytes gjson.Result) bool {
		pairs = append(pairs, fmt.Sprintf("%s:%d", lang.String(), bytes.Int()))
		return true
	})
	return models.Available(strings.Join(pairs, ";"))
}

// LatestRelease returns the tag of the latest release. A repository without
// releases yields an empty string, not an unavailable value.
func (c *Client) LatestRelease(ctx context.Context, owner, name string) models.Value[string] {
	u, err := c.resolve(repoPath(owner, name, "releases/latest"))
	if err != nil {
		return models.UnavailableErr[string](err)
	}
	body, _, err := c.getBody(ctx, u)
	if errors.Is(err, ErrNotFound) {
		return models.Available("")
	}
	if err != nil {
		return models.UnavailableErr[string](err)
	}
	if !gjson.ValidBytes(body) {
		return models.Unavailable[string]("malformed release response")
	}

	release := gjson.ParseBytes(body)
	for _, field := range []string{"tag_name", "name"} {
		if tag := release.Get(field).String(); tag != "" {
			return models.Available(tag)
		}
	}
	return models.Available("")
}

// ReadmeExists reports whether the repository has a README.
func (c *Client) ReadmeExists(ctx context.Context, owner, name string) models.Value[bool] {
	u, err := c.resolve(repoPath(owner, name, "readme"))
	if err != nil {
		return models.UnavailableErr[bool](err)
	}
	resp, err := c.get(ctx, u)
	if err != nil {
		return models.UnavailableErr[bool](err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return models.Available(false)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return models.UnavailableErr[bool](&HTTPError{StatusCode: resp.StatusCode, URL: u.String()})
	default:
		return models.Available(true)
	}
}
