package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"cdash/internal/complaint"
)

// BestResponsesParams filters GET /benchmark/best-responses.
type BestResponsesParams struct {
	CompetitorID int64 `json:"competitor_id,omitempty"`
	Limit        int   `json:"limit,omitempty"`
}

func (p BestResponsesParams) values() url.Values {
	q := url.Values{}
	if p.CompetitorID > 0 {
		q.Set("competitor_id", strconv.FormatInt(p.CompetitorID, 10))
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	return q
}

// Comparison returns the company comparison table with averages and gaps.
func (c *Client) Comparison(ctx context.Context) (complaint.Comparison, error) {
	var cmp complaint.Comparison
	err := c.get(ctx, "/benchmark/comparison", nil, &cmp)
	return cmp, err
}

// Competitors returns the tracked competitors.
func (c *Client) Competitors(ctx context.Context) ([]complaint.Competitor, error) {
	var out []complaint.Competitor
	err := c.get(ctx, "/benchmark/competitors", nil, &out)
	return out, err
}

// BestResponses returns highly rated competitor replies.
func (c *Client) BestResponses(ctx context.Context, p BestResponsesParams) ([]complaint.BestResponse, error) {
	var out []complaint.BestResponse
	err := c.get(ctx, "/benchmark/best-responses", p.values(), &out)
	return out, err
}

// ResponsePatterns returns the reply pattern statistics.
func (c *Client) ResponsePatterns(ctx context.Context) (complaint.ResponsePatterns, error) {
	var rp complaint.ResponsePatterns
	err := c.get(ctx, "/benchmark/response-patterns", nil, &rp)
	return rp, err
}

// BenchmarkStats returns the benchmark totals.
func (c *Client) BenchmarkStats(ctx context.Context) (complaint.BenchmarkStats, error) {
	var s complaint.BenchmarkStats
	err := c.get(ctx, "/benchmark/stats", nil, &s)
	return s, err
}

// CompetitorComplaints returns one page of a competitor's complaints.
func (c *Client) CompetitorComplaints(ctx context.Context, id int64, page, pageSize int) (complaint.CompetitorComplaintsPage, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if pageSize > 0 {
		q.Set("page_size", strconv.Itoa(pageSize))
	}
	var p complaint.CompetitorComplaintsPage
	err := c.get(ctx, fmt.Sprintf("/benchmark/competitor/%d/complaints", id), q, &p)
	return p, err
}
