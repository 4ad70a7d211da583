package api

import (
	"context"
	"net/http"

	"github.com/sekolahmbg/mbg-client/core/offline"
)

// Replay posts a queued item to the generic sync endpoint. The full item
// (id, type, payload, createdAt, tries) goes over the wire; the backend
// dispatches on type and uses the id for idempotency.
func (c *Client) Replay(ctx context.Context, item offline.Item) error {
	_, err := c.Do(ctx, "/sync", &Options{Method: http.MethodPost, Body: item})
	return err
}

var _ offline.Replayer = (*Client)(nil)
