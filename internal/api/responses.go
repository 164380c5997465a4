package api

import (
	"context"
	"fmt"
	"net/http"

	"cdash/internal/complaint"
)

// GenerateResponse asks the backend for a suggested reply to complaint id.
// The answer may carry a discount coupon.
func (c *Client) GenerateResponse(ctx context.Context, id int64) (complaint.GeneratedResponse, error) {
	var g complaint.GeneratedResponse
	err := c.post(ctx, fmt.Sprintf("/responses/generate/%d", id), nil, &g)
	if err == nil && g.ComplaintID == 0 {
		g.ComplaintID = id
	}
	return g, err
}

// GetResponse returns the stored reply of complaint id.
func (c *Client) GetResponse(ctx context.Context, id int64) (complaint.GeneratedResponse, error) {
	var g complaint.GeneratedResponse
	err := c.get(ctx, fmt.Sprintf("/responses/%d", id), nil, &g)
	return g, err
}

// EditResponse replaces the reply text of complaint id.
func (c *Client) EditResponse(ctx context.Context, id int64, text string) error {
	body := map[string]string{"edited_response": text}
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/responses/%d", id), nil, body, nil)
}
