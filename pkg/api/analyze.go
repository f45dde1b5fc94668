package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/fraud-watch/pkg/config"
)

// Analyze fetches one bounded page of analyzed transactions for an address.
// page is 1-based and offset is the page size. The bearer token is attached
// when the session has one.
func (c *Client) Analyze(ctx context.Context, chain config.Chain, address string, page, offset int) (*AnalysisResponse, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("offset", strconv.Itoa(offset))

	path := fmt.Sprintf("/api/analyze/%s/%s", url.PathEscape(string(chain)), url.PathEscape(address))
	var res AnalysisResponse
	if err := c.getJSON(ctx, path, q, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
