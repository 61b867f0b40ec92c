// Package vecstore defines the vector store contract used by the retrieval
// strategies: a point-oriented database holding multiple named vector fields
// per point (dense, sparse, colbert multivector, and two matryoshka dense
// variants) that can execute staged prefetch/rerank query plans.
// Concrete implementations (Qdrant, in-memory) satisfy the Store interface so
// the strategy layer never depends on a specific backend.
package vecstore

import (
	"context"
	"fmt"
)

// Named vector fields carried by every manual page point. The set is closed:
// a StagedQuery leaf must reference one of these.
const (
	// FieldDense is the full-size dense semantic embedding.
	FieldDense = "dense"
	// FieldSparse is the lexical sparse (indices+values) embedding.
	FieldSparse = "sparse"
	// FieldColbert is the per-token late-interaction multivector, compared
	// with MaxSim aggregation.
	FieldColbert = "colbert"
	// FieldSmall is the 128-dimensional truncated matryoshka embedding.
	FieldSmall = "small-embedding"
	// FieldLarge is the 1024-dimensional truncated matryoshka embedding.
	FieldLarge = "large-embedding"
)

// Matryoshka vector dimensionalities fixed by the collection schema.
const (
	// SmallDimensions is the size of the small-embedding field.
	SmallDimensions = 128
	// LargeDimensions is the size of the large-embedding field.
	LargeDimensions = 1024
)

// SparseVector is a lexical embedding: parallel index/value slices where
// Indices[i] is the vocabulary position of weight Values[i].
type SparseVector struct {
	// Indices are the non-zero vocabulary positions.
	Indices []uint32
	// Values are the weights at the corresponding indices.
	Values []float32
}

// RawResult is one point returned by a store query.
type RawResult struct {
	// ID is the 64-bit point identifier.
	ID uint64
	// Score is the similarity score assigned by the final query stage.
	Score float32
	// Payload is the open-ended document metadata stored with the point.
	Payload map[string]any
}

// PointVectors holds all named vectors for a single point. Unset fields are
// simply not written to the corresponding named field.
type PointVectors struct {
	// Dense is the full-size dense embedding.
	Dense []float32
	// Sparse is the lexical sparse embedding.
	Sparse *SparseVector
	// Colbert is the per-token late-interaction multivector.
	Colbert [][]float32
	// Small is the 128-d truncated matryoshka embedding.
	Small []float32
	// Large is the 1024-d truncated matryoshka embedding.
	Large []float32
}

// Point is a single indexed manual page: an ID, its named vectors, and the
// metadata payload that retrieval returns verbatim.
type Point struct {
	// ID is the 64-bit point identifier (content hash of the page key).
	ID uint64
	// Vectors holds the named vector fields for this point.
	Vectors PointVectors
	// Payload is the open-ended page metadata bag.
	Payload map[string]any
}

// QueryOptions control the outermost stage of a staged query.
type QueryOptions struct {
	// Limit is the maximum number of results returned by the final stage.
	Limit uint64
	// ScoreThreshold drops results scoring below it at the final stage.
	// Nil means no threshold. The store applies it, not the caller.
	ScoreThreshold *float32
}

// Store is the vector store contract required by the retrieval strategies.
// Implementations must be safe to call from multiple goroutines and must
// support idempotent Close.
type Store interface {
	// CollectionExists reports whether the named collection exists.
	CollectionExists(ctx context.Context, name string) (bool, error)

	// EnsureCollection creates the collection with all five named vector
	// fields if it does not already exist. denseSize and colbertSize are the
	// dimensionalities of the dense and colbert token vectors; the matryoshka
	// fields are fixed at SmallDimensions/LargeDimensions.
	EnsureCollection(ctx context.Context, name string, denseSize, colbertSize uint64) error

	// Query executes a staged query plan against the collection and returns
	// the final stage's results ordered by descending score, with payloads.
	// opts govern the outermost stage; the root node's Limit is ignored.
	Query(ctx context.Context, collection string, query *StagedQuery, opts QueryOptions) ([]RawResult, error)

	// Upsert writes or replaces a batch of points.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Close releases any resources held by the store. Safe to call twice.
	Close() error
}

// StoreError wraps a failure from the underlying store. Callers decide retry
// policy; no retries are built in (single attempt per query).
type StoreError struct {
	// Op is the store operation that failed (e.g. "query", "upsert").
	Op string
	// Err is the underlying transport or server error.
	Err error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return fmt.Sprintf("vecstore: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As chains.
func (e *StoreError) Unwrap() error { return e.Err }

// storeErr wraps err as a *StoreError for the given operation.
func storeErr(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}
