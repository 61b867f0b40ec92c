package vecstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// rrfK tempers the influence of top ranks in reciprocal rank fusion: a fused
// score is the sum over branches of 1/(rrfK+rank). 60 matches the constant
// Qdrant and the IR literature use.
const rrfK = 60

// MemoryStore is an in-process Store that executes staged query plans with
// the same semantics as the Qdrant backend: cosine similarity for dense
// fields, dot product for sparse, MaxSim aggregation for multivectors, and
// client-side reciprocal rank fusion for fusion nodes.
//
// It backs the strategy and property tests, and doubles as an offline store
// for small corpora. Safe for concurrent use.
type MemoryStore struct {
	// mu protects collections.
	mu sync.RWMutex
	// collections maps collection name to its points.
	collections map[string][]Point
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string][]Point)}
}

// CollectionExists reports whether the named collection exists.
func (s *MemoryStore) CollectionExists(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.collections[name]
	return ok, nil
}

// EnsureCollection creates the collection if it does not exist. Vector sizes
// are not enforced in memory.
func (s *MemoryStore) EnsureCollection(_ context.Context, name string, _, _ uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; !ok {
		s.collections[name] = nil
	}
	return nil
}

// Upsert writes or replaces points by ID.
func (s *MemoryStore) Upsert(_ context.Context, collection string, points []Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.collections[collection]
	for _, p := range points {
		replaced := false
		for i := range existing {
			if existing[i].ID == p.ID {
				existing[i] = p
				replaced = true
				break
			}
		}
		if !replaced {
			existing = append(existing, p)
		}
	}
	s.collections[collection] = existing
	return nil
}

// Query executes the staged plan against the collection.
func (s *MemoryStore) Query(_ context.Context, collection string, query *StagedQuery, opts QueryOptions) ([]RawResult, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	points, ok := s.collections[collection]
	s.mu.RUnlock()
	if !ok {
		return nil, storeErr("query", fmt.Errorf("collection %q not found", collection))
	}

	ranked, err := execStage(query, points, opts.Limit)
	if err != nil {
		return nil, err
	}

	results := make([]RawResult, 0, len(ranked))
	for _, r := range ranked {
		if opts.ScoreThreshold != nil && r.score < *opts.ScoreThreshold {
			continue
		}
		results = append(results, RawResult{ID: r.point.ID, Score: r.score, Payload: r.point.Payload})
	}
	return results, nil
}

// Close is a no-op; a MemoryStore holds no external resources.
func (s *MemoryStore) Close() error { return nil }

// scored pairs a point with the score the current stage assigned it.
type scored struct {
	point Point
	score float32
}

// execStage evaluates one plan node. limit overrides the node's own Limit
// (used for the root, where QueryOptions govern).
func execStage(q *StagedQuery, corpus []Point, limit uint64) ([]scored, error) {
	// Resolve this stage's candidate pool from the prefetch subtrees.
	candidates := corpus
	var branches [][]scored
	if len(q.Prefetch) > 0 {
		seen := make(map[uint64]bool)
		var pool []Point
		for _, child := range q.Prefetch {
			ranked, err := execStage(child, corpus, child.Limit)
			if err != nil {
				return nil, err
			}
			branches = append(branches, ranked)
			for _, r := range ranked {
				if !seen[r.point.ID] {
					seen[r.point.ID] = true
					pool = append(pool, r.point)
				}
			}
		}
		candidates = pool
	}

	var ranked []scored
	if q.FuseRRF {
		ranked = fuseRRF(branches)
	} else {
		ranked = make([]scored, 0, len(candidates))
		for _, p := range candidates {
			sc, err := scorePoint(q, p)
			if err != nil {
				return nil, err
			}
			ranked = append(ranked, scored{point: p, score: sc})
		}
		sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	}

	if limit > 0 && uint64(len(ranked)) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// fuseRRF combines ranked branch lists by reciprocal rank fusion. A point
// absent from a branch contributes nothing for that branch; only rank
// positions matter, never raw scores, so branches with incomparable score
// scales fuse cleanly.
func fuseRRF(branches [][]scored) []scored {
	type entry struct {
		point Point
		score float32
		order int
	}
	fused := make(map[uint64]*entry)
	next := 0
	for _, branch := range branches {
		for rank, r := range branch {
			contribution := float32(1.0 / float64(rrfK+rank+1))
			if e, ok := fused[r.point.ID]; ok {
				e.score += contribution
			} else {
				fused[r.point.ID] = &entry{point: r.point, score: contribution, order: next}
				next++
			}
		}
	}

	out := make([]scored, 0, len(fused))
	entries := make([]*entry, 0, len(fused))
	for _, e := range fused {
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].score != entries[j].score {
			return entries[i].score > entries[j].score
		}
		return entries[i].order < entries[j].order
	})
	for _, e := range entries {
		out = append(out, scored{point: e.point, score: e.score})
	}
	return out
}

// scorePoint scores one point against the stage's query vector.
func scorePoint(q *StagedQuery, p Point) (float32, error) {
	switch q.Using {
	case FieldDense:
		return cosine(q.Vector.Dense, p.Vectors.Dense), nil
	case FieldSmall:
		return cosine(q.Vector.Dense, p.Vectors.Small), nil
	case FieldLarge:
		return cosine(q.Vector.Dense, p.Vectors.Large), nil
	case FieldSparse:
		return sparseDot(q.Vector.Sparse, p.Vectors.Sparse), nil
	case FieldColbert:
		return maxSim(q.Vector.Multi, p.Vectors.Colbert), nil
	default:
		return 0, fmt.Errorf("vecstore: unknown vector field %q", q.Using)
	}
}

// cosine returns the cosine similarity of two dense vectors. Mismatched or
// missing vectors score zero rather than failing, mirroring how a server
// would treat a point without the queried field.
func cosine(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// sparseDot returns the dot product over matching indices of two sparse vectors.
func sparseDot(a, b *SparseVector) float32 {
	if a == nil || b == nil {
		return 0
	}
	weights := make(map[uint32]float32, len(a.Indices))
	for i, idx := range a.Indices {
		weights[idx] = a.Values[i]
	}
	var dot float32
	for i, idx := range b.Indices {
		if w, ok := weights[idx]; ok {
			dot += w * b.Values[i]
		}
	}
	return dot
}

// maxSim returns the late-interaction score: for each query token vector,
// the best cosine similarity against any document token vector, summed.
func maxSim(query, doc [][]float32) float32 {
	if len(query) == 0 || len(doc) == 0 {
		return 0
	}
	var total float32
	for _, qv := range query {
		best := float32(math.Inf(-1))
		for _, dv := range doc {
			if s := cosine(qv, dv); s > best {
				best = s
			}
		}
		total += best
	}
	return total
}
