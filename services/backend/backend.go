package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
)

// DefaultEndpoint is used when no workflow engine URL is configured
const DefaultEndpoint = "https://your-aws-n8n.com/webhook/telegram"

// DefaultOrigin identifies the relay to the workflow engine
const DefaultOrigin = "vercel-edge"

// OriginHeader carries the relay origin on forwarded requests
const OriginHeader = "X-Forwarded-From"

// ErrUnreachable wraps every failure to get a usable answer from the workflow engine
var ErrUnreachable = errors.New("backend unreachable")

// Client forwards updates to the workflow engine webhook
type Client struct {
	client   *http.Client
	endpoint string
	origin   string
}

// New workflow engine client
func New(client *http.Client, endpoint string, origin string) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if origin == "" {
		origin = DefaultOrigin
	}
	return &Client{client: client, endpoint: endpoint, origin: origin}
}

// Endpoint updates are forwarded to
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Forward posts payload unchanged and returns the engine's JSON answer. Any
// transport error, non-2xx status or non-JSON body is reported as ErrUnreachable.
func (c *Client) Forward(ctx context.Context, payload []byte) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(OriginHeader, c.origin)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: backend responded with status: %d", ErrUnreachable, resp.StatusCode)
	}

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrUnreachable, err)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: backend returned invalid JSON", ErrUnreachable)
	}

	return json.RawMessage(body), nil
}
