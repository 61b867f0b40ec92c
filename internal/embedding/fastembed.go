package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/54b3r/manualiq-go/internal/vecstore"
)

// Default models served by the fastembed sidecar. These mirror the models the
// collection was indexed with — changing one without reindexing breaks
// retrieval silently, so they are configuration, not tuning knobs.
const (
	// DefaultDenseModel is the dense sentence embedding model.
	DefaultDenseModel = "sentence-transformers/all-MiniLM-L6-v2"
	// DefaultSparseModel is the attention-weighted sparse model.
	DefaultSparseModel = "Qdrant/bm42-all-minilm-l6-v2-attentions"
	// DefaultColbertModel is the late-interaction model.
	DefaultColbertModel = "colbert-ir/colbertv2.0"
)

// FastEmbedClient talks to a fastembed-compatible embedding sidecar over
// HTTP. The sidecar exposes one endpoint per representation:
//
//	POST /embed         {model, input[]} -> {embeddings: [][]float32}
//	POST /embed/sparse  {model, input[]} -> {embeddings: [{indices, values}]}
//	POST /embed/colbert {model, input[]} -> {embeddings: [[][]float32]}
//
// It is safe for concurrent use. No API key is required — the sidecar runs
// alongside the service.
type FastEmbedClient struct {
	// baseURL is the sidecar base URL (e.g. "http://localhost:8500").
	baseURL string
	// denseModel is the dense embedding model name.
	denseModel string
	// sparseModel is the sparse embedding model name.
	sparseModel string
	// colbertModel is the late-interaction model name.
	colbertModel string
	// client is the shared HTTP client with a sensible timeout.
	client *http.Client
}

// FastEmbedConfig holds the settings for constructing a FastEmbedClient.
type FastEmbedConfig struct {
	// BaseURL is the sidecar base URL (e.g. "http://localhost:8500").
	BaseURL string
	// DenseModel overrides DefaultDenseModel.
	DenseModel string
	// SparseModel overrides DefaultSparseModel.
	SparseModel string
	// ColbertModel overrides DefaultColbertModel.
	ColbertModel string
}

// NewFastEmbedClient constructs a FastEmbedClient from the given config.
func NewFastEmbedClient(cfg *FastEmbedConfig) *FastEmbedClient {
	c := &FastEmbedClient{
		baseURL:      cfg.BaseURL,
		denseModel:   cfg.DenseModel,
		sparseModel:  cfg.SparseModel,
		colbertModel: cfg.ColbertModel,
		client:       &http.Client{Timeout: 60 * time.Second},
	}
	if c.denseModel == "" {
		c.denseModel = DefaultDenseModel
	}
	if c.sparseModel == "" {
		c.sparseModel = DefaultSparseModel
	}
	if c.colbertModel == "" {
		c.colbertModel = DefaultColbertModel
	}
	return c
}

// BaseURL returns the configured sidecar base URL (used by health probes).
func (c *FastEmbedClient) BaseURL() string { return c.baseURL }

// fastembedRequest is the JSON body sent to every sidecar endpoint.
type fastembedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// sparsePayload is the wire form of one sparse embedding.
type sparsePayload struct {
	Indices []uint32  `json:"indices"`
	Values  []float32 `json:"values"`
}

// post sends a request to the sidecar and decodes the response into out.
func (c *FastEmbedClient) post(ctx context.Context, path, model, text string, out any) error {
	payload, err := json.Marshal(fastembedRequest{Model: model, Input: []string{text}})
	if err != nil {
		return embErr("fastembed", fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return embErr("fastembed", fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return embErr("fastembed", fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return embErr("fastembed", fmt.Errorf("%s returned HTTP %d", path, resp.StatusCode))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return embErr("fastembed", fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// Dense embeds text as a single dense vector.
func (c *FastEmbedClient) Dense(ctx context.Context, text string) ([]float32, error) {
	var result struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := c.post(ctx, "/embed", c.denseModel, text, &result); err != nil {
		return nil, err
	}
	if len(result.Embeddings) == 0 {
		return nil, embErr("fastembed", fmt.Errorf("empty dense embedding response"))
	}
	return result.Embeddings[0], nil
}

// Sparse embeds text as a lexical sparse vector.
func (c *FastEmbedClient) Sparse(ctx context.Context, text string) (*vecstore.SparseVector, error) {
	var result struct {
		Embeddings []sparsePayload `json:"embeddings"`
	}
	if err := c.post(ctx, "/embed/sparse", c.sparseModel, text, &result); err != nil {
		return nil, err
	}
	if len(result.Embeddings) == 0 {
		return nil, embErr("fastembed", fmt.Errorf("empty sparse embedding response"))
	}
	sp := result.Embeddings[0]
	if len(sp.Indices) != len(sp.Values) {
		return nil, embErr("fastembed", fmt.Errorf("sparse embedding has %d indices but %d values", len(sp.Indices), len(sp.Values)))
	}
	return &vecstore.SparseVector{Indices: sp.Indices, Values: sp.Values}, nil
}

// Multivector embeds text as one vector per token.
func (c *FastEmbedClient) Multivector(ctx context.Context, text string) ([][]float32, error) {
	var result struct {
		Embeddings [][][]float32 `json:"embeddings"`
	}
	if err := c.post(ctx, "/embed/colbert", c.colbertModel, text, &result); err != nil {
		return nil, err
	}
	if len(result.Embeddings) == 0 {
		return nil, embErr("fastembed", fmt.Errorf("empty multivector embedding response"))
	}
	return result.Embeddings[0], nil
}
