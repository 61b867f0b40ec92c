package answer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/manualiq-go/internal/decompose"
	"github.com/54b3r/manualiq-go/internal/references"
	"github.com/54b3r/manualiq-go/internal/retrieval"
)

type fakeDecomposer struct {
	mappings []decompose.SubQuestionMapping
	err      error
}

func (f *fakeDecomposer) Decompose(context.Context, string) ([]decompose.SubQuestionMapping, error) {
	return f.mappings, f.err
}

// fakeStrategy returns the configured results for every sub-question and
// records which queries it saw. failOn makes that one query fail.
type fakeStrategy struct {
	mu      sync.Mutex
	queries []string
	results []retrieval.FormattedResult
	failOn  string
}

func (f *fakeStrategy) Kind() retrieval.Kind { return retrieval.KindColbert }

func (f *fakeStrategy) Retrieve(_ context.Context, query string, _ retrieval.Options) ([]retrieval.FormattedResult, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if query == f.failOn {
		return nil, errors.New("store unavailable")
	}
	return f.results, nil
}

type fakeChatModel struct {
	response string
	err      error
}

func (f *fakeChatModel) Generate(context.Context, []*schema.Message, ...model.Option) (*schema.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.response, nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := f.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (f *fakeChatModel) WithTools([]*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return f, nil
}

type fakeHistory struct {
	mu    sync.Mutex
	saved int
	err   error
}

func (f *fakeHistory) SaveAnswer(context.Context, string, string, string, references.References) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved++
	return f.err
}

func mappings(subQuestions ...string) []decompose.SubQuestionMapping {
	out := make([]decompose.SubQuestionMapping, 0, len(subQuestions))
	for _, q := range subQuestions {
		out = append(out, decompose.SubQuestionMapping{SubQuestion: q, SectionNumber: 5, SectionTitle: "Axles"})
	}
	return out
}

func tableResult(elementID string, page int) retrieval.FormattedResult {
	return retrieval.FormattedResult{
		Score:      1,
		Text:       "Axle capacities table",
		PageNumber: page,
		Payload: map[string]any{
			"full_page_metadata": map[string]any{
				"content_elements": []any{
					map[string]any{"type": "table", "element_id": elementID},
				},
			},
		},
	}
}

func newTestService(t *testing.T, d decompose.Decomposer, s retrieval.Strategy, m model.ToolCallingChatModel, h History) *Service {
	t.Helper()
	svc, err := NewService(Config{
		Decomposer: d,
		Strategy:   s,
		Model:      m,
		History:    h,
		Retrieval:  retrieval.Options{Collection: "manual", Limit: 3},
		ScratchDir: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("NewService() error: %v", err)
	}
	t.Cleanup(svc.Close)
	return svc
}

func TestAnswer(t *testing.T) {
	t.Parallel()
	strategy := &fakeStrategy{results: []retrieval.FormattedResult{tableResult("table-2-1", 2)}}
	history := &fakeHistory{}
	svc := newTestService(t,
		&fakeDecomposer{mappings: mappings("capacities?", "schedule?")},
		strategy,
		&fakeChatModel{response: "Fill each axle housing to the level plug."},
		history,
	)

	result, err := svc.Answer(context.Background(), "How much oil do the axles take?")
	if err != nil {
		t.Fatalf("Answer() error: %v", err)
	}
	if result.Answer != "Fill each axle housing to the level plug." {
		t.Errorf("unexpected answer: %q", result.Answer)
	}
	// Both sub-questions cite the same table; dedup keeps one.
	if len(result.References.Tables) != 1 || result.References.Tables[0].ElementID != "table-2-1" {
		t.Errorf("expected one deduplicated table reference, got %+v", result.References.Tables)
	}
	if len(strategy.queries) != 2 {
		t.Errorf("expected one retrieve per sub-question, got %v", strategy.queries)
	}
	if history.saved != 1 {
		t.Errorf("expected the answer to be persisted once, got %d", history.saved)
	}
}

// A failed sub-question aborts the whole request and names the sub-question.
func TestAnswerRetrievalFailureAborts(t *testing.T) {
	t.Parallel()
	strategy := &fakeStrategy{
		results: []retrieval.FormattedResult{tableResult("table-1-1", 1)},
		failOn:  "schedule?",
	}
	svc := newTestService(t,
		&fakeDecomposer{mappings: mappings("capacities?", "schedule?")},
		strategy,
		&fakeChatModel{response: "unused"},
		nil,
	)

	result, err := svc.Answer(context.Background(), "q")
	if err == nil {
		t.Fatal("expected retrieval failure to abort the request")
	}
	if result != nil {
		t.Error("no partial result may be returned")
	}
	if !strings.Contains(err.Error(), "schedule?") {
		t.Errorf("error must name the failing sub-question: %v", err)
	}
}

func TestAnswerDecompositionFailureAborts(t *testing.T) {
	t.Parallel()
	svc := newTestService(t,
		&fakeDecomposer{err: errors.New("model down")},
		&fakeStrategy{},
		&fakeChatModel{response: "unused"},
		nil,
	)
	if _, err := svc.Answer(context.Background(), "q"); err == nil {
		t.Fatal("expected decomposition failure to abort the request")
	}
}

func TestAnswerSynthesisFailureAborts(t *testing.T) {
	t.Parallel()
	svc := newTestService(t,
		&fakeDecomposer{mappings: mappings("capacities?")},
		&fakeStrategy{results: []retrieval.FormattedResult{tableResult("table-1-1", 1)}},
		&fakeChatModel{err: errors.New("rate limited")},
		nil,
	)
	if _, err := svc.Answer(context.Background(), "q"); err == nil {
		t.Fatal("expected synthesis failure to abort the request")
	}
}

// Persistence failures are logged, not surfaced.
func TestAnswerHistoryFailureIgnored(t *testing.T) {
	t.Parallel()
	svc := newTestService(t,
		&fakeDecomposer{mappings: mappings("capacities?")},
		&fakeStrategy{results: []retrieval.FormattedResult{tableResult("table-1-1", 1)}},
		&fakeChatModel{response: "answer"},
		&fakeHistory{err: errors.New("disk full")},
	)
	result, err := svc.Answer(context.Background(), "q")
	if err != nil {
		t.Fatalf("history failure must not fail the request: %v", err)
	}
	if result.Answer != "answer" {
		t.Errorf("unexpected answer: %q", result.Answer)
	}
}

func TestNewServiceValidation(t *testing.T) {
	t.Parallel()
	_, err := NewService(Config{})
	if err == nil {
		t.Fatal("expected error for missing collaborators")
	}
}
