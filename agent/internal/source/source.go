package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/rulboard/rulboard/agent/internal/config"
	"github.com/rulboard/rulboard/pkg/types"
)

const (
	// maxResponseBytes bounds a single prediction response.
	maxResponseBytes = 32 << 20
	// maxErrorBytes bounds how much of an error body is read for the message.
	maxErrorBytes = 4 << 10
)

// Client fetches predictions from one source endpoint.
// It builds the HTTP client once and reuses it across Fetch calls.
type Client struct {
	src    config.Source
	client *http.Client
	now    func() time.Time
}

// New returns a Client for the given source configuration.
func New(src config.Source) (*Client, error) {
	if src.Method == "" {
		src.Method = http.MethodPost
	}
	if src.Timeout <= 0 {
		src.Timeout = config.DefaultSourceTimeout
	}
	client, err := buildHTTPClient(src)
	if err != nil {
		return nil, fmt.Errorf("source %q: build http client: %w", src.ID, err)
	}
	return &Client{src: src, client: client, now: time.Now}, nil
}

// ID returns the configured source ID.
func (c *Client) ID() string { return c.src.ID }

// Config returns the source configuration the client was built from.
func (c *Client) Config() config.Source { return c.src }

// Fetch calls the source endpoint and returns the decoded batch. Records
// whose RUL value is missing, negative or not numeric are left out of
// Records and counted in Rejected.
func (c *Client) Fetch(ctx context.Context) (*types.Batch, error) {
	req, err := http.NewRequestWithContext(ctx, c.src.Method, c.src.Endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("source %q: build request: %w", c.src.ID, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("source %q: %s %s: %w", c.src.ID, c.src.Method, c.src.Endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("source %q: %w", c.src.ID, statusError(resp))
	}

	records, relayRejected, err := types.DecodePredictions(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("source %q: %w", c.src.ID, err)
	}
	valid, rejected := types.SplitValid(records)

	return &types.Batch{
		SourceID:   c.src.ID,
		BatchID:    uuid.NewString(),
		ReceivedAt: c.now().UTC(),
		Records:    valid,
		Rejected:   rejected + relayRejected,
	}, nil
}

// statusError describes a non-200 response, using the service's
// {"error": "..."} message when it sends one.
func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, e.Error)
	}
	return fmt.Errorf("unexpected status %d", resp.StatusCode)
}
