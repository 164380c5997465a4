package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"cdash/internal/complaint"
)

func limitQuery(name string, n int) url.Values {
	if n <= 0 {
		return nil
	}
	return url.Values{name: {strconv.Itoa(n)}}
}

// Timeline returns complaints per day for the last days days.
func (c *Client) Timeline(ctx context.Context, days int) (complaint.Timeline, error) {
	var t complaint.Timeline
	err := c.get(ctx, "/analytics/stats/timeline", limitQuery("days", days), &t)
	return t, err
}

// Locations returns the location ranking.
func (c *Client) Locations(ctx context.Context, limit int) (complaint.LocationStats, error) {
	var s complaint.LocationStats
	err := c.get(ctx, "/analytics/stats/locations", limitQuery("limit", limit), &s)
	return s, err
}

// StoreTypes returns the physical/online store split.
func (c *Client) StoreTypes(ctx context.Context) (complaint.StoreTypeStats, error) {
	var s complaint.StoreTypeStats
	err := c.get(ctx, "/analytics/stats/store-type", nil, &s)
	return s, err
}

// Tags returns the tag ranking.
func (c *Client) Tags(ctx context.Context, limit int) (complaint.TagStats, error) {
	var s complaint.TagStats
	err := c.get(ctx, "/analytics/stats/tags", limitQuery("limit", limit), &s)
	return s, err
}

// WeeklyTrends compares this week against the previous one.
func (c *Client) WeeklyTrends(ctx context.Context) (complaint.WeeklyTrends, error) {
	var w complaint.WeeklyTrends
	err := c.get(ctx, "/analytics/stats/weekly-trends", nil, &w)
	return w, err
}

// ResponseMetrics returns response and resolution rates.
func (c *Client) ResponseMetrics(ctx context.Context) (complaint.ResponseMetrics, error) {
	var m complaint.ResponseMetrics
	err := c.get(ctx, "/analytics/stats/response-metrics", nil, &m)
	return m, err
}

// SentimentStats returns complaint counts per sentiment.
func (c *Client) SentimentStats(ctx context.Context) (map[string]int, error) {
	var m map[string]int
	err := c.get(ctx, "/analytics/stats/sentiment", nil, &m)
	return m, err
}

// Analyze asks the backend to classify one complaint. It must run before a
// response can be generated for a complaint without sentiment.
func (c *Client) Analyze(ctx context.Context, id int64) error {
	return c.post(ctx, fmt.Sprintf("/analytics/analyze/%d", id), nil, nil)
}
