package claude

import (
	"github.com/google/uuid"

	"github.com/modelrelay/claudebridge/pkg/types"
)

// Request defaults applied when the caller leaves the config unset.
const (
	defaultMaxTokens   = 4096
	defaultTemperature = 0.7
)

// toMessagesRequest translates a generic contents request into the Messages
// wire shape. Conversation order is preserved turn for turn. Each turn's
// text parts are concatenated into one message; parts without text carry no
// wire representation and are dropped, and turns left with no text are
// skipped entirely. The model role becomes "assistant"; every other role,
// including unrecognized ones, becomes "user".
func toMessagesRequest(req *types.GenerateContentRequest, stream bool) *messagesRequest {
	out := &messagesRequest{
		Model:     req.Model,
		Messages:  make([]wireMessage, 0, len(req.Contents)),
		MaxTokens: defaultMaxTokens,
		Stream:    stream,
	}

	temp := defaultTemperature
	out.Temperature = &temp
	if cfg := req.Config; cfg != nil {
		if cfg.MaxOutputTokens > 0 {
			out.MaxTokens = cfg.MaxOutputTokens
		}
		if cfg.Temperature != nil {
			out.Temperature = cfg.Temperature
		}
	}

	for _, content := range req.Contents {
		text := content.Text()
		if text == "" {
			continue
		}
		role := "user"
		if content.Role == types.RoleModel {
			role = "assistant"
		}
		out.Messages = append(out.Messages, wireMessage{Role: role, Content: text})
	}
	return out
}

// fromMessagesResponse translates a non-streaming Messages reply into the
// generic response shape. The reply always carries a single candidate with
// the model role; text blocks concatenate into one part.
func fromMessagesResponse(resp *messagesResponse) *types.GenerateContentResponse {
	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	out := &types.GenerateContentResponse{
		ResponseID: responseID(resp.ID),
		Candidates: []types.Candidate{{
			Content:      types.NewTextContent(types.RoleModel, text),
			FinishReason: mapStopReason(resp.StopReason),
		}},
	}
	if resp.Usage != nil {
		out.UsageMetadata = usageFromWire(resp.Usage.InputTokens, resp.Usage.OutputTokens)
	}
	return out
}

// mapStopReason converts an API stop reason to a finish reason.
func mapStopReason(stopReason string) types.FinishReason {
	switch stopReason {
	case "end_turn", "stop_sequence":
		return types.FinishReasonStop
	case "max_tokens":
		return types.FinishReasonMaxTokens
	default:
		return types.FinishReasonOther
	}
}

func usageFromWire(inputTokens, outputTokens int) *types.UsageMetadata {
	return &types.UsageMetadata{
		PromptTokenCount:     inputTokens,
		CandidatesTokenCount: outputTokens,
		TotalTokenCount:      inputTokens + outputTokens,
	}
}

func responseID(apiID string) string {
	if apiID != "" {
		return apiID
	}
	return uuid.NewString()
}
