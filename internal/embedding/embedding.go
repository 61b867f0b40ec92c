// Package embedding provides the query/document embedding providers used by
// the retrieval strategies: dense semantic vectors, sparse lexical vectors,
// per-token late-interaction multivectors, and truncated matryoshka vectors.
// Each provider talks to its backend via plain HTTP — no SDK dependencies.
package embedding

import (
	"context"
	"fmt"

	"github.com/54b3r/manualiq-go/internal/vecstore"
)

// Provider produces all vector representations the collection schema needs.
// Implementations must be deterministic for identical input and model version
// and safe to call from multiple goroutines.
type Provider interface {
	// Dense embeds text as a single full-size dense vector.
	Dense(ctx context.Context, text string) ([]float32, error)

	// Sparse embeds text as a lexical sparse vector.
	Sparse(ctx context.Context, text string) (*vecstore.SparseVector, error)

	// Multivector embeds text as one vector per token for late interaction.
	Multivector(ctx context.Context, text string) ([][]float32, error)

	// Truncated embeds text as a dense vector truncated to dims dimensions
	// (matryoshka). Supported dims are the collection's small/large sizes.
	Truncated(ctx context.Context, text string, dims int) ([]float32, error)
}

// Error wraps an embedding provider failure. A failed embed aborts the
// enclosing retrieve call — there are no partial query vector bundles.
type Error struct {
	// Backend identifies the provider that failed (e.g. "fastembed", "openai").
	Backend string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("embedding: %s: %v", e.Backend, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As chains.
func (e *Error) Unwrap() error { return e.Err }

// embErr wraps err as an *Error for the given backend.
func embErr(backend string, err error) error {
	return &Error{Backend: backend, Err: err}
}
