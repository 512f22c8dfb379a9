package types

// FinishReason is the enumerated cause for a generation ending.
type FinishReason string

const (
	// FinishReasonUnspecified is the zero value, used on streaming partials
	// where no finish reason has arrived yet.
	FinishReasonUnspecified FinishReason = ""
	FinishReasonStop        FinishReason = "STOP"
	FinishReasonMaxTokens   FinishReason = "MAX_TOKENS"
	FinishReasonOther       FinishReason = "OTHER"
)

// GenerateContentConfig holds the optional generation parameters of a
// request. Nil pointer fields mean "unset" so that provider defaults apply.
type GenerateContentConfig struct {
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
}

// GenerateContentRequest is the generic multi-turn generation request.
type GenerateContentRequest struct {
	Model    string                 `json:"model,omitempty"`
	Contents []Content              `json:"contents"`
	Config   *GenerateContentConfig `json:"config,omitempty"`
}

// UsageMetadata aggregates token counts for a response.
// TotalTokenCount is always PromptTokenCount + CandidatesTokenCount.
type UsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// Candidate is one generated answer.
type Candidate struct {
	Content      Content      `json:"content"`
	FinishReason FinishReason `json:"finishReason,omitempty"`
}

// GenerateContentResponse is the generic generation result. Streaming calls
// yield a sequence of these with partial candidate text and running token
// counters; non-streaming calls return exactly one with final values.
type GenerateContentResponse struct {
	ResponseID    string         `json:"responseId,omitempty"`
	Candidates    []Candidate    `json:"candidates"`
	UsageMetadata *UsageMetadata `json:"usageMetadata,omitempty"`
}

// Text returns the concatenated text of the first candidate, or "" if there
// are no candidates.
func (r *GenerateContentResponse) Text() string {
	if r == nil || len(r.Candidates) == 0 {
		return ""
	}
	return r.Candidates[0].Content.Text()
}

// GenerateContentStream is a forward-only sequence of partial responses.
// Next returns io.EOF once the stream is exhausted. Close releases the
// underlying network resource and is the only cancellation primitive:
// discarding a stream before exhaustion must be paired with Close.
type GenerateContentStream interface {
	Next() (*GenerateContentResponse, error)
	Close() error
}

// CountTokensResponse carries the estimated token total for some content.
type CountTokensResponse struct {
	TotalTokens int `json:"totalTokens"`
}

// EmbedContentRequest is accepted for interface parity; the Claude provider
// rejects it with ErrUnsupportedOperation.
type EmbedContentRequest struct {
	Model   string  `json:"model,omitempty"`
	Content Content `json:"content"`
}

// EmbedContentResponse is never produced by the Claude provider.
type EmbedContentResponse struct {
	Values []float64 `json:"values"`
}
