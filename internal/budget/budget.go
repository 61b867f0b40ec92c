// Package budget provides token budget estimation and retrieval-context
// trimming for the answer pipeline. Because the service supports multiple LLM
// backends with different tokenizers, this package uses a conservative
// character-based heuristic: 1 token ≈ 4 characters (English prose and
// technical text). This deliberately under-estimates token counts to leave
// headroom for model-specific overhead.
package budget

import (
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/manualiq-go/internal/retrieval"
)

const (
	// charsPerToken is the conservative character-to-token ratio used for
	// estimation. 4 chars/token is standard for English and code; using 3
	// would be more aggressive but risks overflowing context windows.
	charsPerToken = 4

	// DefaultMaxContextTokens is the default input context budget in tokens.
	// Room for four sub-questions' worth of retrieved pages plus the
	// synthesis prompt on 32k-context models. Override via config.
	DefaultMaxContextTokens = 24000
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated total token count for a slice of
// schema.Message values, summing role + content for each message.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		// Each message has a small per-message overhead (~4 tokens in most APIs).
		total += 4
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// EstimateResults returns the estimated token count of the retrieved pages'
// text content.
func EstimateResults(results []retrieval.FormattedResult) int {
	total := 0
	for _, r := range results {
		total += Estimate(r.Text)
	}
	return total
}

// TrimResults drops the lowest-scored results from each sub-question's list,
// round-robin across sub-questions, until the estimated token count of all
// remaining text fits within maxTokens after accounting for fixedTokens (the
// prompt scaffolding around the retrieved context).
//
// Each list keeps its own descending-score order, and no list is emptied
// while another still has more than one result, so every sub-question stays
// represented as long as possible. The input slices are not modified.
func TrimResults(sets map[string][]retrieval.FormattedResult, fixedTokens, maxTokens int) map[string][]retrieval.FormattedResult {
	trimmed := make(map[string][]retrieval.FormattedResult, len(sets))
	total := fixedTokens
	for q, results := range sets {
		trimmed[q] = results
		total += EstimateResults(results)
	}
	if total <= maxTokens {
		return trimmed
	}

	for total > maxTokens {
		// Pick the longest list; ties go to the one whose tail scores lowest.
		victim := ""
		for q, results := range trimmed {
			if len(results) <= 1 {
				continue
			}
			if victim == "" || len(results) > len(trimmed[victim]) ||
				(len(results) == len(trimmed[victim]) && tailScore(results) < tailScore(trimmed[victim])) {
				victim = q
			}
		}
		if victim == "" {
			// Every list is down to one result; nothing more to trim.
			break
		}
		results := trimmed[victim]
		total -= Estimate(results[len(results)-1].Text)
		trimmed[victim] = results[:len(results)-1]
	}
	return trimmed
}

// tailScore returns the score of the last (lowest-ranked) result.
func tailScore(results []retrieval.FormattedResult) float32 {
	return results[len(results)-1].Score
}
