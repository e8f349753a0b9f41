package llm

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/proposalforge/rfpflow/graph/model"
)

// encodingName is the tokenizer used for every provider's estimate. The
// gateway only needs a consistent, reasonably-close token count for cost
// tagging (spec §4.4 leaves exact per-provider tokenization unspecified),
// so one encoding is used uniformly rather than per-provider lookups.
const encodingName = "cl100k_base"

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
	encErr  error
)

func encoding() (*tiktoken.Tiktoken, error) {
	encOnce.Do(func() {
		enc, encErr = tiktoken.GetEncoding(encodingName)
	})
	return enc, encErr
}

// countTokens estimates the token count of text. On encoder initialization
// failure it falls back to a 4-bytes-per-token heuristic rather than
// erroring out a cost-tracking concern that must never block a completion.
func countTokens(text string) int {
	e, err := encoding()
	if err != nil || e == nil {
		return (len(text) + 3) / 4
	}
	return len(e.Encode(text, nil, nil))
}

// estimateTokens sums the estimated token count across a message list,
// including a fixed per-message overhead for role/formatting tokens.
func estimateTokens(messages []model.Message) int {
	total := 0
	for _, m := range messages {
		total += countTokens(m.Content) + 4
	}
	return total
}

// estimateTokensForText estimates the token count of a single completion.
func estimateTokensForText(text string) int {
	return countTokens(text)
}
