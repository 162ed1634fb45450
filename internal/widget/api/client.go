// Package api implements the widget's client for the referral backend REST
// contract. The backend issues WebAuthn challenges and verifies responses;
// this package only moves JSON and maps failures onto the widget error
// taxonomy.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	widgeterrors "github.com/shopembed/referral-widget/internal/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Client calls the referral backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tracer     trace.Tracer
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client. Tests inject an
// httptest client; hosts inject one carrying their cookie policy.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// New creates a backend client for the given base URL. The default HTTP
// client carries a cookie jar so backend session cookies survive across
// calls, matching a browser's include-credentials fetch.
func New(baseURL string, opts ...Option) *Client {
	client := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tracer:  otel.Tracer("widget/api"),
	}

	jar, err := cookiejar.New(nil)
	if err == nil {
		client.httpClient = &http.Client{Jar: jar, Timeout: 30 * time.Second}
	} else {
		client.httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	for _, opt := range opts {
		opt(client)
	}
	return client
}

// post sends a JSON body and decodes a JSON response. Non-2xx responses are
// returned as network errors carrying the response body text when present.
func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	status, data, err := c.roundTrip(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return networkError(path, status, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return widgeterrors.Wrap(widgeterrors.CodeNetwork, "decode backend response", err)
	}
	return nil
}

// get fetches a JSON response.
func (c *Client) get(ctx context.Context, path string, out any) error {
	status, data, err := c.roundTrip(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return networkError(path, status, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return widgeterrors.Wrap(widgeterrors.CodeNetwork, "decode backend response", err)
	}
	return nil
}

// roundTrip performs one request and returns the status and body. Transport
// failures map to network errors; the HTTP status is left to the caller so
// endpoints can special-case statuses like 404.
func (c *Client) roundTrip(ctx context.Context, method, path string, body any) (int, []byte, error) {
	ctx, span := c.tracer.Start(ctx, "api"+path)
	defer span.End()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return 0, nil, widgeterrors.Wrap(widgeterrors.CodeNetwork, "backend unreachable", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		return 0, nil, widgeterrors.Wrap(widgeterrors.CodeNetwork, "read backend response", err)
	}
	return resp.StatusCode, data, nil
}

func networkError(path string, status int, body []byte) error {
	message := strings.TrimSpace(string(body))
	if message == "" {
		message = fmt.Sprintf("backend returned status %d for %s", status, path)
	}
	return widgeterrors.New(widgeterrors.CodeNetwork, message)
}
