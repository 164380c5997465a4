package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"cdash/internal/complaint"
)

// ListParams filters GET /complaints. Zero values are omitted.
type ListParams struct {
	Sentiment string `json:"sentiment,omitempty"`
	Skip      int    `json:"skip,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

func (p ListParams) values() url.Values {
	q := url.Values{}
	if p.Sentiment != "" {
		q.Set("sentiment", p.Sentiment)
	}
	if p.Skip > 0 {
		q.Set("skip", strconv.Itoa(p.Skip))
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	return q
}

// ListComplaints returns complaints in backend order with duplicate ids
// removed.
func (c *Client) ListComplaints(ctx context.Context, p ListParams) ([]complaint.Record, error) {
	var records []complaint.Record
	if err := c.get(ctx, "/complaints", p.values(), &records); err != nil {
		return nil, err
	}
	if records == nil {
		return []complaint.Record{}, nil
	}
	return complaint.Dedupe(records), nil
}

// GetComplaint returns one complaint.
func (c *Client) GetComplaint(ctx context.Context, id int64) (complaint.Record, error) {
	var r complaint.Record
	err := c.get(ctx, fmt.Sprintf("/complaints/%d", id), nil, &r)
	return r, err
}

// ComplaintStats returns the totals behind the overview cards.
func (c *Client) ComplaintStats(ctx context.Context) (complaint.Stats, error) {
	var s complaint.Stats
	err := c.get(ctx, "/complaints/stats", nil, &s)
	return s, err
}
