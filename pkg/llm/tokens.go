package llm

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultPromptTokenBudget caps page text sent to a reasoning provider.
// Rendered quiz pages are small; the cap only matters when a page embeds a
// large data dump inline.
const DefaultPromptTokenBudget = 6000

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

func getEncoding() *tiktoken.Tiktoken {
	encodingOnce.Do(func() {
		// cl100k_base covers the OpenAI-compatible models we target.
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			encoding = enc
		}
	})
	return encoding
}

// TruncateForPrompt trims text to at most budget tokens. If the tokenizer
// is unavailable it falls back to a conservative character cap (4 chars per
// token) so callers never block on tokenizer data.
func TruncateForPrompt(text string, budget int) string {
	if budget <= 0 {
		budget = DefaultPromptTokenBudget
	}

	enc := getEncoding()
	if enc == nil {
		limit := budget * 4
		if len(text) <= limit {
			return text
		}
		return text[:limit]
	}

	tokens := enc.Encode(text, nil, nil)
	if len(tokens) <= budget {
		return text
	}
	return enc.Decode(tokens[:budget])
}

// CountTokens returns the token count of text, or a 4-chars-per-token
// estimate when the tokenizer is unavailable.
func CountTokens(text string) int {
	enc := getEncoding()
	if enc == nil {
		return len(text) / 4
	}
	return len(enc.Encode(text, nil, nil))
}
