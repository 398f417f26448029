package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tickerwatch/ingester/internal/model"
	"github.com/tickerwatch/ingester/internal/validator"
)

// GetTicker24h fetches the raw 24h statistics of every symbol.
func (c *Client) GetTicker24h(ctx context.Context) ([]json.RawMessage, error) {
	var items []json.RawMessage
	if err := c.getJSON(ctx, pathTicker24h, nil, &items); err != nil {
		return nil, fmt.Errorf("get ticker 24h: %w", err)
	}
	return items, nil
}

// FetchSnapshot fetches all symbols and validates them into a batch.
// Invalid records are dropped and logged.
func (c *Client) FetchSnapshot(ctx context.Context) (model.SnapshotBatch, error) {
	items, err := c.GetTicker24h(ctx)
	if err != nil {
		return model.SnapshotBatch{}, err
	}
	receivedAt := c.now().UTC()

	res := validator.ValidateAll(items, validator.RESTSchema)
	if n := res.RejectedCount(); n > 0 {
		c.logger.Warn("rejected snapshot records",
			"rejected", n,
			"accepted", len(res.Records),
			"first_error", res.FirstErr,
		)
	}

	return model.NewSnapshotBatch(model.SourceREST, receivedAt, res.Records), nil
}
