package decompose

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/manualiq-go/internal/logging"
)

const decompositionSystemPrompt = "You are a technical assistant that decomposes a user's question into a list of sub-questions."

const decompositionPromptTemplate = `You are an expert assistant that breaks down complex technical questions related to a machine manual. Your goal is to enhance the reasoning ability of downstream models by decomposing the user's question into sub-questions that progressively build understanding, cover all necessary concepts, and help derive complex conclusions.

You have access to the structure of the manual below, including sections and chapters. Use this structure to anchor each sub-question in the most relevant content.

Manual Structure:

%s

User Question:
%s

Instructions:

1. Carefully analyze the question to identify key concepts, comparisons, dependencies, specifications, and implications.

2. Decompose the question into maximum %d reasoning-enhancing sub-questions. These sub-questions should help a language model understand the topic progressively. Consider including:
   - Fact-finding sub-questions (specifications, definitions, values)
   - Comparative sub-questions (model differences, implications)
   - Causal or inferential sub-questions (how one property affects another)
   - Contextual or procedural sub-questions (what this means for usage, maintenance, safety)

3. Each sub-question must be:
   - Answerable using the manual
   - As atomic and logically coherent as possible
   - Mapped to the correct section number, section title, and list of chapters from the manual

4. Return only a JSON array of objects with keys "sub_question", "section_number", "section_title", "matched_chapters".

Only return the JSON array. Do not explain or include any additional text or formatting.`

// LLMDecomposer implements Decomposer with a chat model call. The model is
// asked for a JSON array of mappings; entries naming sections that do not
// exist in the manual structure are dropped, and the result is capped at
// MaxSubQuestions.
type LLMDecomposer struct {
	// model is the chat model that performs the decomposition.
	model model.ToolCallingChatModel
	// structure is the table of contents sub-questions must anchor to.
	structure ManualStructure
}

// NewLLMDecomposer constructs an LLMDecomposer. A nil structure falls back to
// DefaultStructure.
func NewLLMDecomposer(m model.ToolCallingChatModel, structure ManualStructure) *LLMDecomposer {
	if len(structure) == 0 {
		structure = DefaultStructure()
	}
	return &LLMDecomposer{model: m, structure: structure}
}

// Decompose splits question into at most MaxSubQuestions mappings.
func (d *LLMDecomposer) Decompose(ctx context.Context, question string) ([]SubQuestionMapping, error) {
	structureJSON, err := json.MarshalIndent(d.structure, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("decompose: marshal manual structure: %w", err)
	}

	msgs := []*schema.Message{
		schema.SystemMessage(decompositionSystemPrompt),
		schema.UserMessage(fmt.Sprintf(decompositionPromptTemplate, structureJSON, question, MaxSubQuestions)),
	}
	resp, err := d.model.Generate(ctx, msgs)
	if err != nil {
		return nil, fmt.Errorf("decompose: generate failed: %w", err)
	}

	mappings, err := parseMappings(resp.Content)
	if err != nil {
		return nil, err
	}

	log := logging.FromContext(ctx)
	kept := make([]SubQuestionMapping, 0, len(mappings))
	for _, m := range mappings {
		if strings.TrimSpace(m.SubQuestion) == "" {
			continue
		}
		if !d.structure.HasSection(m.SectionNumber) {
			log.Warn("decompose: dropping sub-question mapped to unknown section",
				slog.Int("section_number", m.SectionNumber),
				slog.String("sub_question", m.SubQuestion))
			continue
		}
		kept = append(kept, m)
		if len(kept) == MaxSubQuestions {
			break
		}
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("decompose: model produced no usable sub-questions")
	}
	return kept, nil
}

// parseMappings unmarshals the model output, tolerating a markdown code
// fence around the JSON array.
func parseMappings(content string) ([]SubQuestionMapping, error) {
	text := strings.TrimSpace(content)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}

	var mappings []SubQuestionMapping
	if err := json.Unmarshal([]byte(text), &mappings); err != nil {
		return nil, fmt.Errorf("decompose: parse model output: %w", err)
	}
	return mappings, nil
}
