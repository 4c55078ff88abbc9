package github

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"repocrawl/logger"
	"repocrawl/models"
)

// CountItems derives the total size of a collection endpoint without walking
// it. In order of preference: the X-Total-Count header, the page number of
// the rel="last" link (under per_page=1 that is the item count), then the
// length of the single returned page. The last path is only exact when the
// true total fits in that page.
//
// Failures never surface as errors; they come back as an unavailable value.
func (c *Client) CountItems(ctx context.Context, endpoint string) models.Value[int] {
	u, err := c.resolve(endpoint)
	if err != nil {
		return models.UnavailableErr[int](err)
	}
	q := u.Query()
	if !q.Has("per_page") {
		q.Set("per_page", "1")
		u.RawQuery = q.Encode()
	}

	body, header, err := c.getBody(ctx, u)
	if err != nil {
		logger.Debug("Count lookup failed",
			zap.String("url", u.String()),
			zap.Error(err))
		return models.UnavailableErr[int](err)
	}

	if total := strings.TrimSpace(header.Get("X-Total-Count")); total != "" {
		n, err := strconv.Atoi(total)
		if err != nil || n < 0 {
			return models.Unavailable[int](fmt.Sprintf("malformed X-Total-Count %q", total))
		}
		return models.Available(n)
	}

	if last, ok := pageOf(header.Get("Link"), "last"); ok {
		return models.Available(last)
	}

	if parsed := gjson.ParseBytes(body); parsed.IsArray() {
		return models.Available(len(parsed.Array()))
	}
	return models.Available(0)
}
