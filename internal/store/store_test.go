package store

import (
	"context"
	"strconv"
	"testing"

	"github.com/54b3r/manualiq-go/internal/references"
)

// openTestStore opens an in-memory SQLiteStore for use in tests.
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleRefs() references.References {
	return references.References{
		Tables: []references.TableReference{
			{SubQuestion: "oil capacity?", ElementID: "table-2-1", PageNumber: 2, PNGFile: "/scratch/page_2/tables/table-2-1.png"},
		},
		Figures: []references.FigureReference{
			{SubQuestion: "oil capacity?", Label: "figure-2-1", PageNumber: 2},
		},
	}
}

func Test_Store_SaveAndRecent(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.SaveAnswer(ctx, "manual", "How much oil?", "About 2.5 liters per axle.", sampleRefs()); err != nil {
		t.Fatalf("save: %v", err)
	}

	answers, err := s.Recent(ctx, "manual", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(answers) != 1 {
		t.Fatalf("want 1 answer, got %d", len(answers))
	}
	got := answers[0]
	if got.Question != "How much oil?" || got.Answer != "About 2.5 liters per axle." {
		t.Errorf("unexpected answer row: %+v", got)
	}
	if len(got.References.Tables) != 1 || got.References.Tables[0].ElementID != "table-2-1" {
		t.Errorf("references did not survive the round trip: %+v", got.References)
	}
	if got.CreatedAt.IsZero() {
		t.Error("created_at not populated")
	}
}

func Test_Store_RecentLimitAndOrdering(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	for i := range 6 {
		q := "question " + strconv.Itoa(i)
		if err := s.SaveAnswer(ctx, "manual", q, "answer", references.References{}); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	answers, err := s.Recent(ctx, "manual", 4)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(answers) != 4 {
		t.Fatalf("want 4 answers, got %d", len(answers))
	}
	// Newest first.
	if answers[0].Question != "question 5" || answers[3].Question != "question 2" {
		t.Errorf("unexpected ordering: %q .. %q", answers[0].Question, answers[3].Question)
	}
}

func Test_Store_CollectionIsolation(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.SaveAnswer(ctx, "telehandler", "from x", "a", references.References{}); err != nil {
		t.Fatalf("save x: %v", err)
	}
	if err := s.SaveAnswer(ctx, "excavator", "from y", "a", references.References{}); err != nil {
		t.Fatalf("save y: %v", err)
	}

	answersX, err := s.Recent(ctx, "telehandler", 10)
	if err != nil {
		t.Fatalf("recent x: %v", err)
	}
	answersY, err := s.Recent(ctx, "excavator", 10)
	if err != nil {
		t.Fatalf("recent y: %v", err)
	}

	if len(answersX) != 1 || answersX[0].Question != "from x" {
		t.Errorf("collection telehandler isolation failed: got %v", answersX)
	}
	if len(answersY) != 1 || answersY[0].Question != "from y" {
		t.Errorf("collection excavator isolation failed: got %v", answersY)
	}
}

func Test_Store_EmptyCollectionReturnsNil(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	answers, err := s.Recent(context.Background(), "unknown", 10)
	if err != nil {
		t.Fatalf("recent empty: %v", err)
	}
	if len(answers) != 0 {
		t.Errorf("want 0 answers, got %d", len(answers))
	}
}
