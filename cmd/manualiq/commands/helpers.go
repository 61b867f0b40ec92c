package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/cloudwego/eino/components/model"

	"github.com/54b3r/manualiq-go/internal/answer"
	"github.com/54b3r/manualiq-go/internal/decompose"
	"github.com/54b3r/manualiq-go/internal/embedding"
	"github.com/54b3r/manualiq-go/internal/provider"
	"github.com/54b3r/manualiq-go/internal/retrieval"
	"github.com/54b3r/manualiq-go/internal/store"
	"github.com/54b3r/manualiq-go/internal/vecstore"
)

// Shared defaults, matching the sidecar-era ingestion layout.
const (
	defaultCollection = "hybrid_collection"
	defaultScratchDir = "scratch/service_manual_long"
)

// stack bundles the wired components behind an answer.Service so commands
// that need individual pieces (pingers, the Qdrant client) can reach them.
type stack struct {
	ChatModel model.ToolCallingChatModel
	Embedder  embedding.Provider
	Qdrant    *vecstore.QdrantStore
	Service   *answer.Service
}

// buildStack wires the full answering pipeline from environment variables.
// The returned cleanup closes the worker pool, the history store, and the
// Qdrant connection; it is safe to call even after a partial failure.
func buildStack(ctx context.Context, log *slog.Logger) (*stack, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	chatModel, err := provider.NewFromEnv(ctx)
	if err != nil {
		return nil, cleanup, fmt.Errorf("failed to initialise model provider: %w", err)
	}

	emb, err := embedding.NewFromEnv()
	if err != nil {
		return nil, cleanup, fmt.Errorf("failed to initialise embedding backends: %w", err)
	}

	qdrantStore, err := vecstore.NewQdrantStore(&vecstore.QdrantConfig{
		Host:   getEnvOrDefault("QDRANT_HOST", "localhost"),
		Port:   getEnvInt("QDRANT_PORT", 6334),
		APIKey: os.Getenv("QDRANT_API_KEY"),
		UseTLS: os.Getenv("QDRANT_TLS") == "true",
	})
	if err != nil {
		return nil, cleanup, fmt.Errorf("failed to connect to Qdrant: %w", err)
	}
	closers = append(closers, func() { _ = qdrantStore.Close() })

	kind := retrieval.Kind(getEnvOrDefault("RETRIEVAL_STRATEGY", string(retrieval.KindHybrid)))
	strategy, err := retrieval.New(kind, qdrantStore, emb)
	if err != nil {
		return nil, cleanup, err
	}
	log.Info("retrieval strategy selected", slog.String("strategy", string(kind)))

	structure := decompose.DefaultStructure()
	if path := os.Getenv("MANUAL_STRUCTURE_FILE"); path != "" {
		structure, err = decompose.LoadStructure(path)
		if err != nil {
			return nil, cleanup, err
		}
		log.Info("manual structure loaded", slog.String("path", path), slog.Int("sections", len(structure)))
	}

	cfg := answer.Config{
		Decomposer: decompose.NewLLMDecomposer(chatModel, structure),
		Strategy:   strategy,
		Model:      chatModel,
		Retrieval: retrieval.Options{
			Collection:     getEnvOrDefault("QDRANT_COLLECTION", defaultCollection),
			Limit:          getEnvInt("RETRIEVAL_LIMIT", 0),
			PrefetchLimit:  getEnvInt("RETRIEVAL_PREFETCH_LIMIT", 0),
			ScoreThreshold: envScoreThreshold(),
		},
		ScratchDir:  getEnvOrDefault("REFERENCES_SCRATCH_DIR", defaultScratchDir),
		Concurrency: getEnvInt("RETRIEVAL_CONCURRENCY", 0),
	}

	// Answer history store. MANUALIQ_HISTORY_DB overrides the default path
	// (~/.manualiq/history.db). Set to "disabled" to turn persistence off.
	if hs := openHistory(log); hs != nil {
		cfg.History = hs
		closers = append(closers, func() { _ = hs.Close() })
	}

	svc, err := answer.NewService(cfg)
	if err != nil {
		return nil, cleanup, err
	}
	closers = append(closers, svc.Close)

	return &stack{
		ChatModel: chatModel,
		Embedder:  emb,
		Qdrant:    qdrantStore,
		Service:   svc,
	}, cleanup, nil
}

// openHistory opens the SQLite answer history, or returns nil when disabled
// or unavailable. History failures never block the pipeline.
func openHistory(log *slog.Logger) *store.SQLiteStore {
	dbPath := os.Getenv("MANUALIQ_HISTORY_DB")
	if dbPath == "disabled" {
		log.Info("history: disabled via MANUALIQ_HISTORY_DB=disabled")
		return nil
	}
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			log.Warn("history: could not resolve default DB path, disabling", slog.Any("error", err))
			return nil
		}
	}
	hs, err := store.Open(dbPath)
	if err != nil {
		log.Warn("history: failed to open store, disabling", slog.Any("error", err))
		return nil
	}
	log.Info("history: store opened", slog.String("path", dbPath))
	return hs
}

// envScoreThreshold parses RETRIEVAL_SCORE_THRESHOLD, returning nil when the
// variable is unset or malformed (no threshold cut).
func envScoreThreshold() *float32 {
	raw := os.Getenv("RETRIEVAL_SCORE_THRESHOLD")
	if raw == "" {
		return nil
	}
	f, err := strconv.ParseFloat(raw, 32)
	if err != nil {
		return nil
	}
	t := float32(f)
	return &t
}

// getEnvOrDefault returns the env var value or a fallback when unset.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the env var parsed as int, or a fallback when unset or
// malformed.
func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
