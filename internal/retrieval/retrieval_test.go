package retrieval

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/54b3r/manualiq-go/internal/embedding"
	"github.com/54b3r/manualiq-go/internal/vecstore"
)

// fakeProvider returns fixed vectors for every text. Setting err makes every
// call fail with it.
type fakeProvider struct {
	dense  []float32
	sparse *vecstore.SparseVector
	multi  [][]float32
	small  []float32
	large  []float32
	err    error
}

func (f *fakeProvider) Dense(context.Context, string) ([]float32, error) {
	return f.dense, f.err
}

func (f *fakeProvider) Sparse(context.Context, string) (*vecstore.SparseVector, error) {
	return f.sparse, f.err
}

func (f *fakeProvider) Multivector(context.Context, string) ([][]float32, error) {
	return f.multi, f.err
}

func (f *fakeProvider) Truncated(_ context.Context, _ string, dims int) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if dims <= vecstore.SmallDimensions {
		return f.small, nil
	}
	return f.large, nil
}

// newAlignedProvider builds a provider whose query vectors all point along
// the x axis, so points seeded by seedManual score higher the closer their
// angle is to zero.
func newAlignedProvider() *fakeProvider {
	return &fakeProvider{
		dense:  []float32{1, 0},
		sparse: &vecstore.SparseVector{Indices: []uint32{1}, Values: []float32{1}},
		multi:  [][]float32{{1, 0}},
		small:  []float32{1, 0},
		large:  []float32{1, 0},
	}
}

// seedManual loads n points into collection "manual". Point i (ID i+1) has
// unit vectors at increasing angles from the x axis in every dense field, so
// ID 1 is the best match for an x-aligned query. Every point also carries a
// sparse entry at index 1 with decreasing weight and a payload.
func seedManual(t *testing.T, store *vecstore.MemoryStore, n int) {
	t.Helper()
	points := make([]vecstore.Point, 0, n)
	for i := 0; i < n; i++ {
		angle := float64(i) * math.Pi / float64(2*n)
		v := []float32{float32(math.Cos(angle)), float32(math.Sin(angle))}
		points = append(points, vecstore.Point{
			ID: uint64(i + 1),
			Vectors: vecstore.PointVectors{
				Dense:   v,
				Sparse:  &vecstore.SparseVector{Indices: []uint32{1}, Values: []float32{float32(n - i)}},
				Colbert: [][]float32{v},
				Small:   v,
				Large:   v,
			},
			Payload: map[string]any{
				"page_number":    int64(i + 1),
				"document_title": "Service Manual",
			},
		})
	}
	if err := store.Upsert(context.Background(), "manual", points); err != nil {
		t.Fatalf("seed upsert: %v", err)
	}
}

func TestNewSelectsByTag(t *testing.T) {
	t.Parallel()
	store := vecstore.NewMemoryStore()
	provider := newAlignedProvider()

	for _, kind := range []Kind{KindColbert, KindHybrid, KindMatrioska, KindFusion} {
		s, err := New(kind, store, provider)
		if err != nil {
			t.Fatalf("New(%q) error: %v", kind, err)
		}
		if s.Kind() != kind {
			t.Errorf("New(%q).Kind() = %q", kind, s.Kind())
		}
	}
}

func TestNewUnknownTag(t *testing.T) {
	t.Parallel()
	_, err := New("bm25", vecstore.NewMemoryStore(), newAlignedProvider())
	if err == nil {
		t.Fatal("expected error for unknown strategy tag, got nil")
	}
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigError, got %T", err)
	}
}

func TestColbertOrdering(t *testing.T) {
	t.Parallel()
	store := vecstore.NewMemoryStore()
	seedManual(t, store, 6)
	s, _ := New(KindColbert, store, newAlignedProvider())

	results, err := s.Retrieve(context.Background(), "brake release procedure", Options{Collection: "manual", Limit: 4})
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	if results[0].ID != 1 {
		t.Errorf("expected best-aligned point first, got ID %d", results[0].ID)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("results not in descending score order at %d", i)
		}
	}
}

// A threshold above every achievable score yields an empty set, not an error.
func TestColbertHighThresholdEmpty(t *testing.T) {
	t.Parallel()
	store := vecstore.NewMemoryStore()
	seedManual(t, store, 5)
	s, _ := New(KindColbert, store, newAlignedProvider())

	threshold := float32(10)
	results, err := s.Retrieve(context.Background(), "anything", Options{
		Collection:     "manual",
		Limit:          5,
		ScoreThreshold: &threshold,
	})
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected empty result set, got %d results", len(results))
	}
}

func TestHybridLimitAndOrder(t *testing.T) {
	t.Parallel()
	store := vecstore.NewMemoryStore()
	seedManual(t, store, 10)
	s, _ := New(KindHybrid, store, newAlignedProvider())

	results, err := s.Retrieve(context.Background(), "hydraulic schematic", Options{
		Collection:    "manual",
		Limit:         3,
		PrefetchLimit: 5,
	})
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if len(results) > 3 {
		t.Fatalf("expected at most 3 results, got %d", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("results not in descending score order at %d", i)
		}
	}
}

func TestHybridEmbeddingErrorAborts(t *testing.T) {
	t.Parallel()
	store := vecstore.NewMemoryStore()
	seedManual(t, store, 3)
	provider := newAlignedProvider()
	provider.err = &embedding.Error{Backend: "fastembed", Err: errors.New("sidecar down")}
	s, _ := New(KindHybrid, store, provider)

	results, err := s.Retrieve(context.Background(), "anything", Options{Collection: "manual"})
	if err == nil {
		t.Fatal("expected embedding error to propagate, got nil")
	}
	if results != nil {
		t.Errorf("expected no partial results, got %d", len(results))
	}
	var embErr *embedding.Error
	if !errors.As(err, &embErr) {
		t.Fatalf("expected *embedding.Error, got %T", err)
	}
}

func TestMatrioskaBounds(t *testing.T) {
	t.Parallel()
	store := vecstore.NewMemoryStore()
	seedManual(t, store, 8)
	s, _ := New(KindMatrioska, store, newAlignedProvider())

	results, err := s.Retrieve(context.Background(), "torque values", Options{Collection: "manual", Limit: 5})
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if len(results) > 5 {
		t.Fatalf("expected at most 5 results, got %d", len(results))
	}
	if results[0].ID != 1 {
		t.Errorf("expected best-aligned point first, got ID %d", results[0].ID)
	}
}

func TestFusionCombinesBranches(t *testing.T) {
	t.Parallel()
	store := vecstore.NewMemoryStore()
	seedManual(t, store, 12)
	s, _ := New(KindFusion, store, newAlignedProvider())

	results, err := s.Retrieve(context.Background(), "axle assembly", Options{Collection: "manual", Limit: 6})
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected results from fusion retrieval")
	}
	if len(results) > 6 {
		t.Fatalf("expected at most 6 results, got %d", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("results not in descending score order at %d", i)
		}
	}
}

func TestStoreErrorAborts(t *testing.T) {
	t.Parallel()
	store := vecstore.NewMemoryStore()
	s, _ := New(KindColbert, store, newAlignedProvider())

	_, err := s.Retrieve(context.Background(), "anything", Options{Collection: "no-such-collection"})
	if err == nil {
		t.Fatal("expected store error for missing collection, got nil")
	}
	var storeErr *vecstore.StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("expected *vecstore.StoreError, got %T", err)
	}
}
