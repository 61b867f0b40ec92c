package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/54b3r/manualiq-go/internal/embedding"
	"github.com/54b3r/manualiq-go/internal/ingestion"
	"github.com/54b3r/manualiq-go/internal/logging"
	"github.com/54b3r/manualiq-go/internal/vecstore"
)

// NewIngestCmd constructs the `manualiq ingest` command, which indexes
// parsed manual pages into the Qdrant vector store.
func NewIngestCmd() *cobra.Command {
	var dir string
	var collection string
	var batchSize int
	var skipFullMetadata bool

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Index parsed manual pages into the Qdrant vector store",
		Long: `Read per-page context metadata from a parsed manual directory and index it
into Qdrant with five vector representations per page: dense, sparse, and
late-interaction embeddings from the local fastembed sidecar, plus small and
large matryoshka embeddings from the OpenAI API.

The input directory is the parser's scratch layout — one page_{N}/ directory
per page, each holding a context_metadata_page_{N}.json file. Pages without a
metadata file are skipped.

Required environment variables:
  QDRANT_HOST            Qdrant server hostname (default: localhost)
  QDRANT_PORT            Qdrant gRPC port (default: 6334)
  QDRANT_API_KEY         Optional API key for authenticated clusters
  FASTEMBED_URL          fastembed sidecar base URL (default: http://localhost:8500)
  EMBEDDING_API_KEY      OpenAI-compatible key for matryoshka embeddings
                         (falls back to OPENAI_API_KEY)

Examples:
  manualiq ingest --dir scratch/service_manual_long
  manualiq ingest --dir scratch/service_manual_long --collection telehandler-1043
  manualiq ingest --dir ./pages --batch-size 8 --skip-full-metadata`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if dir == "" {
				return fmt.Errorf("ingest: --dir is required")
			}

			pages, err := ingestion.LoadPages(dir)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			if len(pages) == 0 {
				return fmt.Errorf("ingest: no page metadata found under %s", dir)
			}
			log.Info("pages loaded", slog.String("dir", dir), slog.Int("pages", len(pages)))

			emb, err := embedding.NewFromEnv()
			if err != nil {
				return fmt.Errorf("ingest: failed to initialise embedding backends: %w", err)
			}

			qdrantStore, err := vecstore.NewQdrantStore(&vecstore.QdrantConfig{
				Host:   getEnvOrDefault("QDRANT_HOST", "localhost"),
				Port:   getEnvInt("QDRANT_PORT", 6334),
				APIKey: os.Getenv("QDRANT_API_KEY"),
				UseTLS: os.Getenv("QDRANT_TLS") == "true",
			})
			if err != nil {
				return fmt.Errorf("ingest: failed to connect to Qdrant: %w", err)
			}
			defer func() { _ = qdrantStore.Close() }()

			pipeline, err := ingestion.NewPipeline(emb, qdrantStore, &ingestion.Config{
				BatchSize:           batchSize,
				IncludeFullMetadata: !skipFullMetadata,
			})
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			if collection == "" {
				collection = getEnvOrDefault("QDRANT_COLLECTION", defaultCollection)
			}
			log.Info("starting ingestion",
				slog.String("collection", collection),
				slog.Int("pages", len(pages)),
				slog.Int("batch_size", batchSize),
			)

			err = pipeline.Ingest(ctx, collection, pages, func(done, total int) {
				log.Info("ingestion progress", slog.Int("done", done), slog.Int("total", total))
			})
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			log.Info("ingestion complete", slog.Int("pages", len(pages)), slog.String("collection", collection))
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Parsed manual directory containing page_{N}/ subdirectories")
	cmd.Flags().StringVarP(&collection, "collection", "c", "", "Qdrant collection name (default: QDRANT_COLLECTION or "+defaultCollection+")")
	cmd.Flags().IntVarP(&batchSize, "batch-size", "b", 4, "Pages per upsert batch")
	cmd.Flags().BoolVar(&skipFullMetadata, "skip-full-metadata", false, "Omit the full page metadata from point payloads")

	return cmd
}
