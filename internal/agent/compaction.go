package agent

import (
	tiktoken "github.com/pkoukk/tiktoken-go"

	"github.com/nextlevelbuilder/vargos/internal/store"
)

// compactionEncoding is the BPE tokenizer family most LLM providers
// use for context-window accounting; it gives a realistic token
// estimate even without a provider client wired in (spec §4.10's
// context compaction note).
const compactionEncoding = "cl100k_base"

// EstimateTokens returns text's approximate token count.
func EstimateTokens(text string) int {
	enc, err := tiktoken.GetEncoding(compactionEncoding)
	if err != nil {
		return len(text)/4 + 1
	}
	return len(enc.Encode(text, nil, nil))
}

// ShouldCompact reports whether history's total estimated token count
// exceeds budget — the trigger the Gateway uses to announce a
// compaction event ahead of starting a run (spec §4.10).
func ShouldCompact(history []store.Message, budget int) bool {
	total := 0
	for _, m := range history {
		total += EstimateTokens(m.Content)
		if total > budget {
			return true
		}
	}
	return false
}
