package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/54b3r/manualiq-go/internal/vecstore"
)

// fakeProvider returns fixed embeddings so tests can assert on point shape
// without a sidecar or API key.
type fakeProvider struct {
	err error
}

func (f *fakeProvider) Dense(context.Context, string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0, 0, 0}, nil
}

func (f *fakeProvider) Sparse(context.Context, string) (*vecstore.SparseVector, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &vecstore.SparseVector{Indices: []uint32{7}, Values: []float32{1}}, nil
}

func (f *fakeProvider) Multivector(context.Context, string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return [][]float32{{1, 0}}, nil
}

func (f *fakeProvider) Truncated(_ context.Context, _ string, dims int) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return make([]float32, dims), nil
}

func samplePage(page int) PageMetadata {
	return PageMetadata{
		"page_number": float64(page),
		"document_metadata": map[string]any{
			"document_id":       "svc-manual-1",
			"document_title":    "Service and Maintenance Manual",
			"manufacturer":      "JLG",
			"document_revision": "B",
			"models_covered":    []any{"1043", "1055"},
		},
		"section": map[string]any{
			"section_number":   "5",
			"section_title":    "Axles, Drive Shafts & Transmission",
			"subsection_title": "Axle Maintenance",
		},
		"has_tables":  true,
		"table_count": float64(1),
		"content_elements": []any{
			map[string]any{
				"type":     "table",
				"title":    "Axle Oil Capacities",
				"summary":  "Fill volumes per axle housing",
				"entities": []any{"axle housing", "gear oil"},
				"keywords": []any{"capacity"},
			},
			map[string]any{
				"type":     "text_block",
				"title":    "Checking Oil Level",
				"summary":  "Procedure for the level plug",
				"entities": []any{"level plug", "axle housing"},
			},
		},
		"text_content": "Remove the level plug and verify oil is at the bottom of the hole.",
	}
}

func TestBuildEmbeddingText(t *testing.T) {
	t.Parallel()
	text := BuildEmbeddingText(samplePage(12))

	for _, want := range []string{
		"Document: Service and Maintenance Manual (JLG, Revision B)",
		"Section: 5 Axles, Drive Shafts & Transmission",
		"Page: 12",
		"Table: Axle Oil Capacities – Fill volumes per axle housing",
		"Text Block: Checking Oil Level",
		"Full Text Content:\nRemove the level plug",
		// Aggregated across elements, deduplicated and sorted.
		"Entities: axle housing, gear oil, level plug",
		"Keywords: capacity",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("embedding text missing %q:\n%s", want, text)
		}
	}
}

func TestBuildEmbeddingTextEmptyPage(t *testing.T) {
	t.Parallel()
	text := BuildEmbeddingText(PageMetadata{"page_number": float64(3)})
	if !strings.Contains(text, "Page: 3") {
		t.Errorf("expected page header, got:\n%s", text)
	}
	if strings.Contains(text, "Entities:") {
		t.Error("no tag lines expected for a page without elements")
	}
}

func TestPointID(t *testing.T) {
	t.Parallel()
	a := PointID("svc-manual-1", 12)
	b := PointID("svc-manual-1", 12)
	c := PointID("svc-manual-1", 13)
	if a != b {
		t.Error("same page must hash to the same ID")
	}
	if a == c {
		t.Error("different pages must hash to different IDs")
	}
	if a > 0x7FFFFFFFFFFFFFFF {
		t.Errorf("ID must fit a positive int64, got %d", a)
	}
}

func TestIngest(t *testing.T) {
	t.Parallel()
	store := vecstore.NewMemoryStore()
	p, err := NewPipeline(&fakeProvider{}, store, nil)
	if err != nil {
		t.Fatalf("NewPipeline() error: %v", err)
	}

	pages := []PageMetadata{samplePage(4), samplePage(5), samplePage(6)}
	var updates []int
	progress := func(done, total int) {
		updates = append(updates, done)
		if total != 3 {
			t.Errorf("total = %d, want 3", total)
		}
	}
	if err := p.Ingest(context.Background(), "manual", pages, progress); err != nil {
		t.Fatalf("Ingest() error: %v", err)
	}
	if len(updates) == 0 || updates[len(updates)-1] != 3 {
		t.Errorf("progress never reached 3: %v", updates)
	}

	exists, err := store.CollectionExists(context.Background(), "manual")
	if err != nil || !exists {
		t.Fatalf("collection missing after ingest: exists=%v err=%v", exists, err)
	}

	// The ingested payload must expose the filterable fields and the full
	// metadata for reference extraction.
	results, err := store.Query(context.Background(), "manual", &vecstore.StagedQuery{
		Vector: vecstore.QueryVector{Dense: []float32{1, 0, 0, 0}},
		Using:  vecstore.FieldDense,
	}, vecstore.QueryOptions{Limit: 3})
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	payload := results[0].Payload
	if payload["document_title"] != "Service and Maintenance Manual" {
		t.Errorf("document_title = %v", payload["document_title"])
	}
	if payload["embedding_text"] == "" {
		t.Error("embedding_text missing from payload")
	}
	if _, ok := payload["full_page_metadata"].(map[string]any); !ok {
		t.Error("full_page_metadata missing from payload")
	}
}

func TestIngestEmbeddingErrorAborts(t *testing.T) {
	t.Parallel()
	p, err := NewPipeline(&fakeProvider{err: errors.New("sidecar down")}, vecstore.NewMemoryStore(), nil)
	if err != nil {
		t.Fatalf("NewPipeline() error: %v", err)
	}
	err = p.Ingest(context.Background(), "manual", []PageMetadata{samplePage(4)}, nil)
	if err == nil {
		t.Fatal("expected embedding failure to abort")
	}
	if !strings.Contains(err.Error(), "page 4") {
		t.Errorf("error must name the page: %v", err)
	}
}

func TestIngestNoPages(t *testing.T) {
	t.Parallel()
	p, err := NewPipeline(&fakeProvider{}, vecstore.NewMemoryStore(), nil)
	if err != nil {
		t.Fatalf("NewPipeline() error: %v", err)
	}
	if err := p.Ingest(context.Background(), "manual", nil, nil); err == nil {
		t.Fatal("expected error for empty page set")
	}
}

func TestLoadPages(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	for _, page := range []int{7, 5} {
		dir := filepath.Join(root, "page_"+strconv.Itoa(page))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		raw, err := json.Marshal(samplePage(page))
		if err != nil {
			t.Fatal(err)
		}
		path := filepath.Join(dir, "context_metadata_page_"+strconv.Itoa(page)+".json")
		if err := os.WriteFile(path, raw, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	// A page directory without metadata is skipped, not an error.
	if err := os.MkdirAll(filepath.Join(root, "page_9"), 0o755); err != nil {
		t.Fatal(err)
	}

	pages, err := LoadPages(root)
	if err != nil {
		t.Fatalf("LoadPages() error: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("got %d pages, want 2", len(pages))
	}
	if pages[0].PageNumber() != 5 || pages[1].PageNumber() != 7 {
		t.Errorf("pages not ordered by page number: %d, %d", pages[0].PageNumber(), pages[1].PageNumber())
	}
}

func TestLoadPagesMalformed(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	dir := filepath.Join(root, "page_2")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "context_metadata_page_2.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadPages(root); err == nil {
		t.Fatal("expected parse error")
	}
}

