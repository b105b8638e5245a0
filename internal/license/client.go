package license

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/clearkeydrm/ckcli/internal/keystore"
	"github.com/clearkeydrm/ckcli/internal/models"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 3
	userAgent         = "ckcli/1.0"
)

// Client fetches content keys from a ClearKey license server.
type Client struct {
	url        string
	maxRetries uint64
	httpClient *http.Client
	newBackOff func() backoff.BackOff
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(client *Client) {
		client.httpClient.Timeout = d
	}
}

// WithMaxRetries sets how often a temporary failure is retried.
func WithMaxRetries(n uint64) ClientOption {
	return func(client *Client) {
		client.maxRetries = n
	}
}

// WithBackOff sets the retry schedule.
func WithBackOff(f func() backoff.BackOff) ClientOption {
	return func(client *Client) {
		client.newBackOff = f
	}
}

// NewClient creates a license client for the server at url.
func NewClient(url string, opts ...ClientOption) *Client {
	c := &Client{
		url:        url,
		maxRetries: defaultMaxRetries,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// URL returns the configured license server URL.
func (c *Client) URL() string {
	return c.url
}

// FetchKeys requests the keys for kids. Every requested KID must be present
// in the response. Keys are returned in request order with check values.
func (c *Client) FetchKeys(ctx context.Context, kids []models.KeyID) ([]models.ContentKey, error) {
	if len(kids) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(NewRequest(kids))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	var respBody []byte
	operation := func() error {
		var err error
		respBody, err = c.post(ctx, body)
		var licErr *LicenseError
		if errors.As(err, &licErr) && !licErr.Temporary() {
			return backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), c.maxRetries), ctx)
	if err := backoff.Retry(operation, b); err != nil {
		return nil, err
	}

	var resp Response
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse license response: %w", err)
	}

	return collectKeys(kids, resp)
}

func collectKeys(kids []models.KeyID, resp Response) ([]models.ContentKey, error) {
	byKID := make(map[models.KeyID][]byte, len(resp.Keys))
	for _, jwk := range resp.Keys {
		kid, key, err := jwk.decodeKey()
		if err != nil {
			return nil, err
		}
		byKID[kid] = key
	}

	keys := make([]models.ContentKey, 0, len(kids))
	for _, kid := range kids {
		raw, ok := byKID[kid]
		if !ok {
			return nil, fmt.Errorf("%w: kid %s", ErrMissingKeys, kid)
		}

		key, err := keystore.NewContentKey(kid, raw)
		if err != nil {
			return nil, err
		}
		keys = append(keys, *key)
	}

	return keys, nil
}

// post performs a single license request and returns the response body.
func (c *Client) post(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		_ = json.Unmarshal(respBody, &errResp)

		msg := errResp.Message
		if msg == "" {
			msg = errResp.Error
		}

		return nil, NewLicenseError(resp.StatusCode, msg)
	}

	return respBody, nil
}
