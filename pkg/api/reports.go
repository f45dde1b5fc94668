package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/fraud-watch/pkg/config"
)

func selectionQuery(chain config.Chain, address string) url.Values {
	q := url.Values{}
	q.Set("address", address)
	q.Set("chain", string(chain))
	return q
}

func (c *Client) MonthlyReport(ctx context.Context, chain config.Chain, address string, months int) (*MonthlyReport, error) {
	q := selectionQuery(chain, address)
	q.Set("months", strconv.Itoa(months))
	var r MonthlyReport
	if err := c.getJSON(ctx, "/api/reports/monthly", q, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) QuickStats(ctx context.Context, chain config.Chain, address string) (*QuickStats, error) {
	var s QuickStats
	if err := c.getJSON(ctx, "/api/reports/quick-stats", selectionQuery(chain, address), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) ReportTemplates(ctx context.Context) ([]ReportTemplate, error) {
	var tpls []ReportTemplate
	if err := c.getJSON(ctx, "/api/reports/templates", nil, &tpls); err != nil {
		return nil, err
	}
	return tpls, nil
}

func (c *Client) GenerateReport(ctx context.Context, req GenerateReportRequest) (*GenerateReportResponse, error) {
	var res GenerateReportResponse
	if err := c.sendJSON(ctx, http.MethodPost, "/api/reports/generate", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// DownloadReport fetches a report by id through the conventional download endpoint.
func (c *Client) DownloadReport(ctx context.Context, id string) ([]byte, error) {
	return c.Fetch(ctx, "/api/reports/download/"+url.PathEscape(id))
}
