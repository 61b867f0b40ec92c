// Package decompose splits a user question into sub-questions anchored to
// the manual's table of contents. Decomposition is an LLM call; this package
// owns the output schema, the manual structure it is anchored to, and the
// bounds the rest of the pipeline relies on (at most MaxSubQuestions entries,
// no invented sections).
package decompose

import "context"

// MaxSubQuestions caps a decomposition. Anything past the cap is discarded;
// four sub-questions bound retrieval fan-out and keep the synthesis prompt
// within budget.
const MaxSubQuestions = 4

// SubQuestionMapping is one decomposed sub-question anchored to a manual
// section.
type SubQuestionMapping struct {
	// SubQuestion is the decomposed question text.
	SubQuestion string `json:"sub_question"`
	// SectionNumber is the manual section the question maps to.
	SectionNumber int `json:"section_number"`
	// SectionTitle is that section's title.
	SectionTitle string `json:"section_title"`
	// MatchedChapters are the chapter names within the section.
	MatchedChapters []string `json:"matched_chapters"`
}

// Decomposer is the decomposition contract the retrieval service consumes.
// Implementations return between 1 and MaxSubQuestions mappings, each naming
// a section that exists in the manual structure.
type Decomposer interface {
	// Decompose splits question into sub-questions.
	Decompose(ctx context.Context, question string) ([]SubQuestionMapping, error)
}
