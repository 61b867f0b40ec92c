// Package answer orchestrates the full question pipeline: decompose the user
// question, retrieve each sub-question concurrently, extract the citation
// set, and synthesize the final answer with an LLM call over the retrieved
// context.
package answer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/panjf2000/ants/v2"

	"github.com/54b3r/manualiq-go/internal/budget"
	"github.com/54b3r/manualiq-go/internal/decompose"
	"github.com/54b3r/manualiq-go/internal/logging"
	"github.com/54b3r/manualiq-go/internal/references"
	"github.com/54b3r/manualiq-go/internal/retrieval"
)

// DefaultConcurrency bounds parallel sub-question retrieval. Each retrieval
// fans out to the embedding APIs, so the bound doubles as a rate-limit guard.
const DefaultConcurrency = 4

// History persists answered questions. Implementations must tolerate being
// called from the request path; persistence failures are logged, never
// surfaced to the caller.
type History interface {
	// SaveAnswer records one answered question.
	SaveAnswer(ctx context.Context, collection, question, answer string, refs references.References) error
}

// Result is the response to one answered question.
type Result struct {
	// Answer is the synthesized answer text.
	Answer string `json:"answer"`
	// References is the deduplicated citation bundle.
	References references.References `json:"references"`
}

// Config wires a Service.
type Config struct {
	// Decomposer splits questions into sub-questions.
	Decomposer decompose.Decomposer
	// Strategy runs one retrieval per sub-question.
	Strategy retrieval.Strategy
	// Model synthesizes the final answer.
	Model model.ToolCallingChatModel
	// History is optional; nil disables persistence.
	History History
	// Retrieval tunes the per-sub-question retrieve calls (collection,
	// limit, threshold).
	Retrieval retrieval.Options
	// ScratchDir is the root of the on-disk page extracts for reference
	// correlation.
	ScratchDir string
	// Concurrency bounds parallel sub-question retrieval
	// (default: DefaultConcurrency).
	Concurrency int
	// MaxContextTokens caps the synthesis prompt
	// (default: budget.DefaultMaxContextTokens).
	MaxContextTokens int
}

// Service answers questions against the indexed manual.
type Service struct {
	cfg  Config
	pool *ants.Pool
}

// NewService constructs a Service and its retrieval worker pool.
func NewService(cfg Config) (*Service, error) {
	if cfg.Decomposer == nil || cfg.Strategy == nil || cfg.Model == nil {
		return nil, fmt.Errorf("answer: decomposer, strategy, and model are required")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.MaxContextTokens <= 0 {
		cfg.MaxContextTokens = budget.DefaultMaxContextTokens
	}
	pool, err := ants.NewPool(cfg.Concurrency)
	if err != nil {
		return nil, fmt.Errorf("answer: create worker pool: %w", err)
	}
	return &Service{cfg: cfg, pool: pool}, nil
}

// Close releases the worker pool.
func (s *Service) Close() {
	s.pool.Release()
}

// Answer runs the full pipeline for one user question. Any sub-question's
// retrieval failure aborts the whole request: the citation set must stay
// consistent with the context the synthesis step sees, so there is no
// partial-answer mode.
func (s *Service) Answer(ctx context.Context, question string) (*Result, error) {
	log := logging.FromContext(ctx)

	mappings, err := s.cfg.Decomposer.Decompose(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("answer: decomposition failed: %w", err)
	}
	log.Info("answer: question decomposed",
		slog.Int("sub_questions", len(mappings)))

	sets, err := s.retrieveAll(ctx, mappings)
	if err != nil {
		return nil, err
	}

	refSets := make([]references.ResultSet, 0, len(sets))
	for _, set := range sets {
		refSets = append(refSets, references.ResultSet{
			SubQuestion: set.subQuestion,
			Results:     references.Docs(set.results),
		})
	}
	refs := references.Extract(refSets, s.cfg.ScratchDir)
	log.Info("answer: references extracted",
		slog.Int("tables", len(refs.Tables)),
		slog.Int("figures", len(refs.Figures)))

	text, err := s.synthesize(ctx, question, sets)
	if err != nil {
		return nil, err
	}

	if s.cfg.History != nil {
		if err := s.cfg.History.SaveAnswer(ctx, s.cfg.Retrieval.Collection, question, text, refs); err != nil {
			log.Warn("answer: failed to persist answer", slog.Any("error", err))
		}
	}
	return &Result{Answer: text, References: refs}, nil
}

// subQuestionResults pairs a sub-question with its retrieved results,
// preserving decomposition order.
type subQuestionResults struct {
	subQuestion string
	results     []retrieval.FormattedResult
}

// retrieveAll runs one retrieve per sub-question on the worker pool. Results
// land in disjoint slots; the first failure wins and names its sub-question.
func (s *Service) retrieveAll(ctx context.Context, mappings []decompose.SubQuestionMapping) ([]subQuestionResults, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sets := make([]subQuestionResults, len(mappings))
	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	for i, mapping := range mappings {
		i, mapping := i, mapping
		wg.Add(1)
		task := func() {
			defer wg.Done()
			results, err := s.cfg.Strategy.Retrieve(ctx, mapping.SubQuestion, s.cfg.Retrieval)
			if err != nil {
				errOnce.Do(func() {
					firstErr = fmt.Errorf("answer: retrieval failed for sub-question %q: %w", mapping.SubQuestion, err)
					cancel()
				})
				return
			}
			sets[i] = subQuestionResults{subQuestion: mapping.SubQuestion, results: results}
		}
		if err := s.pool.Submit(task); err != nil {
			wg.Done()
			errOnce.Do(func() {
				firstErr = fmt.Errorf("answer: submit retrieval for sub-question %q: %w", mapping.SubQuestion, err)
				cancel()
			})
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return sets, nil
}

// contextPoint is one retrieved page as presented to the synthesis model.
// The full payload stays out: the convenience fields carry everything the
// model needs at a fraction of the tokens.
type contextPoint struct {
	Text            string   `json:"text"`
	Score           float32  `json:"score"`
	PageNumber      int      `json:"page_number"`
	SectionTitle    string   `json:"section_title"`
	SubsectionTitle string   `json:"subsection_title,omitempty"`
	ModelsCovered   []string `json:"models_covered,omitempty"`
	Warnings        []string `json:"warnings,omitempty"`
}

// synthesize builds the budget-trimmed context block and asks the model for
// the final answer.
func (s *Service) synthesize(ctx context.Context, question string, sets []subQuestionResults) (string, error) {
	byQuestion := make(map[string][]retrieval.FormattedResult, len(sets))
	for _, set := range sets {
		byQuestion[set.subQuestion] = set.results
	}

	scaffolding := fmt.Sprintf(answerPromptTemplate, question, "")
	fixed := budget.Estimate(answerSystemPrompt) + budget.Estimate(scaffolding)
	trimmed := budget.TrimResults(byQuestion, fixed, s.cfg.MaxContextTokens)

	contextBlock, err := renderContext(sets, trimmed)
	if err != nil {
		return "", err
	}

	msgs := []*schema.Message{
		schema.SystemMessage(answerSystemPrompt),
		schema.UserMessage(fmt.Sprintf(answerPromptTemplate, question, contextBlock)),
	}
	resp, err := s.cfg.Model.Generate(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("answer: synthesis failed: %w", err)
	}
	return resp.Content, nil
}

// renderContext serializes the trimmed result sets in decomposition order.
func renderContext(sets []subQuestionResults, trimmed map[string][]retrieval.FormattedResult) (string, error) {
	ordered := make([]map[string]any, 0, len(sets))
	for _, set := range sets {
		points := make([]contextPoint, 0, len(trimmed[set.subQuestion]))
		for _, r := range trimmed[set.subQuestion] {
			points = append(points, contextPoint{
				Text:            r.Text,
				Score:           r.Score,
				PageNumber:      r.PageNumber,
				SectionTitle:    r.SectionTitle,
				SubsectionTitle: r.SubsectionTitle,
				ModelsCovered:   r.ModelsCovered,
				Warnings:        r.Warnings,
			})
		}
		ordered = append(ordered, map[string]any{
			"sub_question": set.subQuestion,
			"points":       points,
		})
	}
	data, err := json.MarshalIndent(ordered, "", "  ")
	if err != nil {
		return "", fmt.Errorf("answer: render context: %w", err)
	}
	return string(data), nil
}
