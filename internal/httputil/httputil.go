// Package httputil carries small HTTP helpers shared by the auth and
// provider packages: JSON request construction, response body excerpts for
// error reporting, and the default client.
package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds every outbound call made with DefaultClient.
const DefaultTimeout = 60 * time.Second

// DefaultClient returns an HTTP client with sensible defaults for provider
// APIs.
func DefaultClient() *http.Client {
	return &http.Client{Timeout: DefaultTimeout}
}

// NewJSONRequest creates an HTTP request with a JSON-encoded body and the
// Content-Type and Accept headers set.
func NewJSONRequest(ctx context.Context, method, url string, body interface{}) (*http.Request, error) {
	var bodyReader io.Reader

	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// MaxExcerptBytes caps how much of an error response body is retained for
// error messages.
const MaxExcerptBytes = 2048

// BodyExcerpt reads up to MaxExcerptBytes from r and returns it as a string.
// Read errors yield whatever was read before the error.
func BodyExcerpt(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, MaxExcerptBytes))
	return string(data)
}

// IsSuccess reports whether an HTTP status code is in the 2xx range.
func IsSuccess(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
