package types

import "strings"

// Role constants for generic content turns.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Part is a single piece of a content turn. Only text parts have a
// provider-side representation; media parts are preserved in the generic
// model but dropped (not rejected) during translation.
type Part struct {
	Text string `json:"text,omitempty"`

	// InlineData carries non-text content (images, documents). It has no
	// representation on the Claude wire format.
	InlineData *Blob `json:"inlineData,omitempty"`
}

// Blob is inline binary content with its MIME type.
type Blob struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"` // base64-encoded
}

// Content is one turn of a conversation: a role plus an ordered sequence
// of parts.
type Content struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

// NewTextContent creates a single-part text turn.
func NewTextContent(role, text string) Content {
	return Content{Role: role, Parts: []Part{{Text: text}}}
}

// Text returns the concatenated text of all text-bearing parts, in order.
// Parts without text contribute nothing.
func (c Content) Text() string {
	var b strings.Builder
	for _, p := range c.Parts {
		b.WriteString(p.Text)
	}
	return b.String()
}
