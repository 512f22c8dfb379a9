package claude

import "github.com/modelrelay/claudebridge/pkg/types"

// EstimateTokens approximates the token count of text. English prose runs
// about 4.7 bytes per token on Claude's tokenizer, so the byte count is
// scaled by 10/47 with integer math.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	n := (len(text) * 10) / 47
	if n < 1 {
		return 1
	}
	return n
}

// estimateContents sums token estimates across every text part of every
// turn. Inline data parts contribute nothing; the estimate covers text only.
func estimateContents(contents []types.Content) int {
	total := 0
	for _, content := range contents {
		for _, part := range content.Parts {
			if part.Text != "" {
				total += EstimateTokens(part.Text)
			}
		}
	}
	return total
}
