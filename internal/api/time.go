package api

import (
	"context"
	"fmt"
	"time"
)

// GetServerTime returns the exchange's current time in UTC.
func (c *Client) GetServerTime(ctx context.Context) (time.Time, error) {
	var resp ServerTimeResponse
	if err := c.getJSON(ctx, pathServerTime, nil, &resp); err != nil {
		return time.Time{}, fmt.Errorf("get server time: %w", err)
	}
	if resp.ServerTime <= 0 {
		return time.Time{}, fmt.Errorf("get server time: invalid serverTime %d", resp.ServerTime)
	}
	return time.UnixMilli(resp.ServerTime).UTC(), nil
}
