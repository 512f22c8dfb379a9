// Package types defines the generic request/response model shared by the
// claudebridge client: multi-part content turns, generation parameters,
// candidate responses with finish reasons and token usage, and the typed
// error taxonomy surfaced to callers.
package types
