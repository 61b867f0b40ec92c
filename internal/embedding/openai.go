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

// Matryoshka model names. Both models support the API-side `dimensions`
// parameter, which truncates and renormalizes the embedding server-side.
const (
	// DefaultSmallModel produces the 128-d first-pass vectors.
	DefaultSmallModel = "text-embedding-3-small"
	// DefaultLargeModel produces the 1024-d rerank vectors.
	DefaultLargeModel = "text-embedding-3-large"
)

// OpenAIEmbedder produces truncated matryoshka embeddings via the OpenAI
// embeddings REST API. Requests at or below the collection's small size go to
// the small model; everything else goes to the large model. It is safe for
// concurrent use.
type OpenAIEmbedder struct {
	// baseURL is the API base (e.g. "https://api.openai.com/v1").
	baseURL string
	// apiKey is the Bearer token.
	apiKey string
	// smallModel is the model used for dims <= vecstore.SmallDimensions.
	smallModel string
	// largeModel is the model used for larger dims.
	largeModel string
	// client is the shared HTTP client with a sensible timeout.
	client *http.Client
}

// OpenAIConfig holds the settings for constructing an OpenAIEmbedder.
type OpenAIConfig struct {
	// BaseURL is the API base URL. Defaults to "https://api.openai.com/v1".
	BaseURL string
	// APIKey is the authentication key.
	APIKey string
	// SmallModel overrides DefaultSmallModel.
	SmallModel string
	// LargeModel overrides DefaultLargeModel.
	LargeModel string
}

// NewOpenAIEmbedder constructs an OpenAIEmbedder from the given config.
func NewOpenAIEmbedder(cfg *OpenAIConfig) *OpenAIEmbedder {
	e := &OpenAIEmbedder{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		smallModel: cfg.SmallModel,
		largeModel: cfg.LargeModel,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
	if e.baseURL == "" {
		e.baseURL = "https://api.openai.com/v1"
	}
	if e.smallModel == "" {
		e.smallModel = DefaultSmallModel
	}
	if e.largeModel == "" {
		e.largeModel = DefaultLargeModel
	}
	return e
}

// openaiEmbedRequest is the JSON body sent to the embeddings endpoint.
type openaiEmbedRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions,omitempty"`
}

// openaiEmbedResponse is the JSON body returned from the embeddings endpoint.
type openaiEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Truncated embeds text at the requested dimensionality. Dims at or below the
// collection's small field size use the small model; larger dims use the
// large model.
func (e *OpenAIEmbedder) Truncated(ctx context.Context, text string, dims int) ([]float32, error) {
	if dims <= 0 {
		return nil, embErr("openai", fmt.Errorf("dimensions must be positive, got %d", dims))
	}
	model := e.largeModel
	if dims <= vecstore.SmallDimensions {
		model = e.smallModel
	}

	payload, err := json.Marshal(openaiEmbedRequest{
		Input:      []string{text},
		Model:      model,
		Dimensions: dims,
	})
	if err != nil {
		return nil, embErr("openai", fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, embErr("openai", fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, embErr("openai", fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	var result openaiEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, embErr("openai", fmt.Errorf("decode response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if result.Error != nil {
			msg = result.Error.Message
		}
		return nil, embErr("openai", fmt.Errorf("%s", msg))
	}

	if len(result.Data) == 0 {
		return nil, embErr("openai", fmt.Errorf("empty embedding response"))
	}
	vec := result.Data[0].Embedding
	if len(vec) != dims {
		return nil, embErr("openai", fmt.Errorf("requested %d dimensions, got %d", dims, len(vec)))
	}
	return vec, nil
}
