// Package upstream is the HTTP client for the remote registration, promo and
// payment API. Response shapes are decoded tolerantly: the upstream emits the
// same facts under several field names and types depending on the endpoint
// version, so each call site goes through an explicit adapter with a
// documented precedence.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to the remote onboarding API. The public base serves the
// unauthenticated validation endpoint; everything else lives under the
// primary base.
type Client struct {
	baseURL       string
	publicBaseURL string
	http          *http.Client
}

// New creates a client for the given API bases.
func New(baseURL, publicBaseURL string) *Client {
	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		http:          &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError is a non-2xx upstream response. The raw body is retained for the
// error mapper.
type APIError struct {
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.StatusCode)
}

// doJSON issues a request with a JSON body (nil for none) and decodes a JSON
// response into out (nil to discard). Non-2xx responses become *APIError.
// A 2xx response with a non-JSON body is wrapped as {"message": rawText}
// before decoding, matching the upstream's occasional plain-text replies.
func (c *Client) doJSON(ctx context.Context, method, url string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call upstream: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read upstream response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: raw}
	}

	if out == nil {
		return nil
	}
	if !json.Valid(raw) {
		wrapped, _ := json.Marshal(map[string]string{"message": strings.TrimSpace(string(raw))})
		raw = wrapped
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode upstream response: %w", err)
	}
	return nil
}

// flexString decodes a JSON string or number into a string. Upstream
// identifiers arrive as either.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*f = flexString(n.String())
		return nil
	}
	return fmt.Errorf("value %s is neither string nor number", string(b))
}
