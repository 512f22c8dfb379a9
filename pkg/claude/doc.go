// Package claude implements a content generator backed by the Anthropic
// Messages API. It translates between the generic contents request shape and
// the Messages wire format, parses the API's server-sent event stream into
// incremental responses, and authenticates with either an OAuth access token
// or an API key.
package claude
