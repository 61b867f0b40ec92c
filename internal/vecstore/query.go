package vecstore

import (
	"fmt"
)

// QueryVector is the vector a query stage scores candidates with. Exactly one
// of the three representations is set; which one decides the wire encoding.
type QueryVector struct {
	// Dense is a single dense vector (dense, small-embedding, large-embedding).
	Dense []float32
	// Sparse is a lexical sparse vector (sparse field only).
	Sparse *SparseVector
	// Multi is a per-token multivector (colbert field only).
	Multi [][]float32
}

// IsZero reports whether no representation is set.
func (v QueryVector) IsZero() bool {
	return v.Dense == nil && v.Sparse == nil && v.Multi == nil
}

// StagedQuery is a recursive multi-level retrieval plan.
//
// Three node shapes are valid:
//
//   - leaf: Vector+Using set, no Prefetch — a single-field similarity search
//     returning up to Limit candidates.
//   - rerank: Vector+Using set, Prefetch non-empty — the prefetch subtrees
//     produce the candidate pool, which this node rescores with a different
//     vector/field and truncates to Limit.
//   - fusion: FuseRRF set, ≥2 Prefetch children, no Vector — sibling candidate
//     sets are combined by reciprocal rank fusion into one pool.
//
// Validate enforces these invariants; stores may assume a validated tree.
type StagedQuery struct {
	// Prefetch holds the inner stages whose candidates feed this node.
	Prefetch []*StagedQuery
	// Vector is the scoring vector for leaf and rerank nodes.
	Vector QueryVector
	// Using names the vector field Vector is compared against.
	Using string
	// FuseRRF combines the Prefetch branches by reciprocal rank fusion
	// instead of rescoring them with a vector.
	FuseRRF bool
	// Limit caps the candidates this stage passes upward. Ignored on the
	// root node, where QueryOptions.Limit governs.
	Limit uint64
}

// knownFields is the closed set of named vector fields a leaf may target.
var knownFields = map[string]bool{
	FieldDense:   true,
	FieldSparse:  true,
	FieldColbert: true,
	FieldSmall:   true,
	FieldLarge:   true,
}

// Validate checks the structural invariants of the plan tree. A nil query or
// a node violating the leaf/rerank/fusion shape rules is a caller bug and is
// reported as a plain error (not a StoreError).
func (q *StagedQuery) Validate() error {
	if q == nil {
		return fmt.Errorf("vecstore: nil staged query")
	}

	if q.FuseRRF {
		if !q.Vector.IsZero() || q.Using != "" {
			return fmt.Errorf("vecstore: fusion node must not carry a scoring vector")
		}
		if len(q.Prefetch) < 2 {
			return fmt.Errorf("vecstore: fusion node requires at least 2 prefetch branches, got %d", len(q.Prefetch))
		}
	} else {
		if q.Vector.IsZero() {
			return fmt.Errorf("vecstore: non-fusion node requires a scoring vector")
		}
		if !knownFields[q.Using] {
			return fmt.Errorf("vecstore: unknown vector field %q", q.Using)
		}
	}

	for _, child := range q.Prefetch {
		if err := child.Validate(); err != nil {
			return err
		}
	}
	return nil
}
