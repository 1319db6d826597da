package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/studytab/e2ekit"
)

// Client can be handed to Tracker.Cleanup as its API deleter.
var _ e2ekit.APIDeleter = (*Client)(nil)

// GetJSON issues a GET and decodes the JSON response into out. Pass a nil
// out to discard the body.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	body, err := c.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding GET %s response: %w", path, err)
	}
	return nil
}

// PostJSON marshals in, issues a POST, and decodes the JSON response into
// out. Pass a nil out to discard the body.
func (c *Client) PostJSON(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encoding POST %s request: %w", path, err)
	}
	body, err := c.Do(ctx, http.MethodPost, path, payload)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding POST %s response: %w", path, err)
	}
	return nil
}

// Delete issues a DELETE and discards the response body.
func (c *Client) Delete(ctx context.Context, path string) error {
	_, err := c.Do(ctx, http.MethodDelete, path, nil)
	return err
}

// DeleteResource implements the cleanup tracker's API deleter contract.
// An empty method falls back to DELETE, matching what the tracker records
// for resources tracked without an explicit verb.
func (c *Client) DeleteResource(ctx context.Context, path, method string) error {
	if method == "" {
		method = http.MethodDelete
	}
	_, err := c.Do(ctx, method, path, nil)
	return err
}
