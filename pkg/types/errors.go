package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions that carry no extra detail.
var (
	// ErrNoAuthentication is returned when no credential source resolves:
	// no configured key, no environment key, and no usable OAuth token.
	ErrNoAuthentication = errors.New("no authentication configured: set an API key or complete the OAuth flow")

	// ErrNoActiveSession is returned by flow completion when no OAuth flow
	// has been started.
	ErrNoActiveSession = errors.New("no OAuth flow in progress")

	// ErrCompletionInProgress is returned when a second completion attempt
	// races an in-flight one. Completion is strictly serialized so an
	// authorization code can only be spent once.
	ErrCompletionInProgress = errors.New("an OAuth completion is already in progress")

	// ErrUnsupportedOperation is returned for operations the provider has
	// no capability for (embeddings).
	ErrUnsupportedOperation = errors.New("operation not supported by this provider")
)

// InvalidCodeError reports a pasted authorization code that is empty or
// implausibly short after normalization.
type InvalidCodeError struct {
	Length int
	Min    int
}

func (e *InvalidCodeError) Error() string {
	return fmt.Sprintf("authorization code too short (%d characters, need at least %d)", e.Length, e.Min)
}

// TokenExchangeError reports a non-success HTTP result from the OAuth token
// endpoint, carrying the upstream status and a body excerpt.
type TokenExchangeError struct {
	StatusCode int
	Body       string
}

func (e *TokenExchangeError) Error() string {
	return fmt.Sprintf("token exchange failed with status %d: %s", e.StatusCode, e.Body)
}

// ProviderError reports a non-success HTTP result from the chat endpoint.
// It is surfaced after a single attempt; the client never retries.
type ProviderError struct {
	StatusCode int
	Body       string
	Operation  string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("claude API error on %s: status %d: %s", e.Operation, e.StatusCode, e.Body)
}

// StorageError wraps a failure from the credential store. The core never
// retries storage operations.
type StorageError struct {
	Op       string
	Provider string
	Err      error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("credential store %s failed for %q: %v", e.Op, e.Provider, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
