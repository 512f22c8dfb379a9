package claude

// Wire types for the Anthropic Messages API. Only the fields this package
// reads or writes are modeled; unknown fields are ignored on decode.

// messagesRequest is the POST /v1/messages body.
type messagesRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature *float64      `json:"temperature,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

// wireMessage is a single conversation turn.
type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// wireBlock is one content block of a response.
type wireBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// messagesResponse is the non-streaming POST /v1/messages reply.
type messagesResponse struct {
	ID         string      `json:"id"`
	Role       string      `json:"role"`
	Content    []wireBlock `json:"content"`
	StopReason string      `json:"stop_reason"`
	Usage      *wireUsage  `json:"usage"`
}

type wireUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// streamEvent is the decoded data payload of one SSE event. The fields are a
// union across event types; Type selects which are meaningful.
type streamEvent struct {
	Type    string            `json:"type"`
	Message *messagesResponse `json:"message,omitempty"`
	Index   int               `json:"index,omitempty"`
	Delta   *streamDelta      `json:"delta,omitempty"`
	Usage   *wireUsage        `json:"usage,omitempty"`
}

// streamDelta carries the incremental fields of content_block_delta and
// message_delta events.
type streamDelta struct {
	Type       string `json:"type"`
	Text       string `json:"text,omitempty"`
	StopReason string `json:"stop_reason,omitempty"`
}
