package embedding

import (
	"context"
	"fmt"
	"os"

	"github.com/54b3r/manualiq-go/internal/vecstore"
)

// Composite implements Provider by routing each representation to the backend
// that produces it: the fastembed sidecar for dense/sparse/multivector and
// the OpenAI API for truncated matryoshka vectors.
type Composite struct {
	// fastembed produces the dense, sparse, and late-interaction vectors.
	fastembed *FastEmbedClient
	// openai produces the truncated matryoshka vectors.
	openai *OpenAIEmbedder
}

// NewComposite constructs a Composite from its two backends.
func NewComposite(fe *FastEmbedClient, oa *OpenAIEmbedder) *Composite {
	return &Composite{fastembed: fe, openai: oa}
}

// Dense embeds text as a single full-size dense vector.
func (c *Composite) Dense(ctx context.Context, text string) ([]float32, error) {
	return c.fastembed.Dense(ctx, text)
}

// Sparse embeds text as a lexical sparse vector.
func (c *Composite) Sparse(ctx context.Context, text string) (*vecstore.SparseVector, error) {
	return c.fastembed.Sparse(ctx, text)
}

// Multivector embeds text as one vector per token.
func (c *Composite) Multivector(ctx context.Context, text string) ([][]float32, error) {
	return c.fastembed.Multivector(ctx, text)
}

// Truncated embeds text as a dims-dimensional matryoshka vector.
func (c *Composite) Truncated(ctx context.Context, text string, dims int) ([]float32, error) {
	return c.openai.Truncated(ctx, text, dims)
}

// Sidecar returns the underlying fastembed client (used by health probes).
func (c *Composite) Sidecar() *FastEmbedClient { return c.fastembed }

// NewFromEnv constructs the Provider from environment variables.
//
// Resolution order:
//  1. FASTEMBED_URL — sidecar base URL (default: http://localhost:8500)
//  2. EMBEDDING_DENSE_MODEL / EMBEDDING_SPARSE_MODEL / EMBEDDING_COLBERT_MODEL —
//     override the sidecar model defaults
//  3. EMBEDDING_API_KEY — key for the matryoshka backend; falls back to
//     OPENAI_API_KEY
//  4. EMBEDDING_ENDPOINT — overrides the OpenAI API base URL
//  5. EMBEDDING_SMALL_MODEL / EMBEDDING_LARGE_MODEL — override the
//     matryoshka model defaults
func NewFromEnv() (Provider, error) {
	sidecarURL := os.Getenv("FASTEMBED_URL")
	if sidecarURL == "" {
		sidecarURL = "http://localhost:8500"
	}

	apiKey := os.Getenv("EMBEDDING_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("embedding: no API key for matryoshka embeddings — set EMBEDDING_API_KEY or OPENAI_API_KEY")
	}

	fe := NewFastEmbedClient(&FastEmbedConfig{
		BaseURL:      sidecarURL,
		DenseModel:   os.Getenv("EMBEDDING_DENSE_MODEL"),
		SparseModel:  os.Getenv("EMBEDDING_SPARSE_MODEL"),
		ColbertModel: os.Getenv("EMBEDDING_COLBERT_MODEL"),
	})
	oa := NewOpenAIEmbedder(&OpenAIConfig{
		BaseURL:    os.Getenv("EMBEDDING_ENDPOINT"),
		APIKey:     apiKey,
		SmallModel: os.Getenv("EMBEDDING_SMALL_MODEL"),
		LargeModel: os.Getenv("EMBEDDING_LARGE_MODEL"),
	})
	return NewComposite(fe, oa), nil
}
