// Package ingestion indexes parsed manual pages into the vector store.
// Each page's context metadata is rendered into an embedding text, embedded
// under all five vector representations, and upserted as a single point
// whose payload carries the structured metadata plus the full page metadata
// for downstream reference extraction. This pipeline is invoked by the
// `manualiq ingest` CLI command.
package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/54b3r/manualiq-go/internal/embedding"
	"github.com/54b3r/manualiq-go/internal/logging"
	"github.com/54b3r/manualiq-go/internal/vecstore"
)

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// BatchSize is the number of pages embedded and upserted per batch.
	// Defaults to 4 if zero.
	BatchSize int

	// IncludeFullMetadata controls whether the complete page metadata is
	// stored in each point's payload under full_page_metadata. Reference
	// extraction and answer synthesis both read it, so it defaults to true
	// via NewPipeline.
	IncludeFullMetadata bool
}

// Pipeline orchestrates the load → embed → upsert flow for a set of
// parsed manual pages.
type Pipeline struct {
	// provider computes the five vector representations for each page.
	provider embedding.Provider

	// store persists the embedded pages.
	store vecstore.Store

	// cfg holds the resolved pipeline configuration.
	cfg *Config
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(provider embedding.Provider, store vecstore.Store, cfg *Config) (*Pipeline, error) {
	if provider == nil {
		return nil, fmt.Errorf("ingestion: embedding provider must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("ingestion: store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{IncludeFullMetadata: true}
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 4
	}

	return &Pipeline{
		provider: provider,
		store:    store,
		cfg:      cfg,
	}, nil
}

// LoadPages reads every page_{N}/context_metadata_page_{N}.json under root
// and returns the parsed metadata ordered by page number. Pages whose
// metadata file is missing are skipped; a file that exists but fails to
// parse is an error.
func LoadPages(root string) ([]PageMetadata, error) {
	matches, err := filepath.Glob(filepath.Join(root, "page_*", "context_metadata_page_*.json"))
	if err != nil {
		return nil, fmt.Errorf("ingestion: scanning %s: %w", root, err)
	}

	pages := make([]PageMetadata, 0, len(matches))
	for _, path := range matches {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("ingestion: reading %s: %w", path, err)
		}
		var m PageMetadata
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("ingestion: parsing %s: %w", path, err)
		}
		pages = append(pages, m)
	}

	sort.Slice(pages, func(i, j int) bool { return pages[i].PageNumber() < pages[j].PageNumber() })
	return pages, nil
}

// Ingest embeds and upserts all pages into the named collection, creating
// the collection first if it does not exist. Pages are processed in batches
// of cfg.BatchSize; the first error aborts the run. Progress is reported
// via the optional progress callback after each batch.
func (p *Pipeline) Ingest(ctx context.Context, collection string, pages []PageMetadata, progress func(done, total int)) error {
	if len(pages) == 0 {
		return fmt.Errorf("ingestion: no pages to ingest")
	}
	if progress == nil {
		progress = func(int, int) {}
	}
	log := logging.FromContext(ctx)

	// The first page fixes the collection's dense and colbert dimensions.
	first, err := p.buildPoint(ctx, pages[0])
	if err != nil {
		return err
	}
	if len(first.Vectors.Dense) == 0 || len(first.Vectors.Colbert) == 0 {
		return fmt.Errorf("ingestion: first page produced empty embeddings")
	}
	denseSize := uint64(len(first.Vectors.Dense))
	colbertSize := uint64(len(first.Vectors.Colbert[0]))
	if err := p.store.EnsureCollection(ctx, collection, denseSize, colbertSize); err != nil {
		return fmt.Errorf("ingestion: ensuring collection %q: %w", collection, err)
	}

	batch := []vecstore.Point{first}
	done := 0
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := p.store.Upsert(ctx, collection, batch); err != nil {
			return fmt.Errorf("ingestion: upserting pages %d-%d: %w", done, done+len(batch), err)
		}
		done += len(batch)
		batch = batch[:0]
		progress(done, len(pages))
		return nil
	}

	for _, page := range pages[1:] {
		point, err := p.buildPoint(ctx, page)
		if err != nil {
			return err
		}
		batch = append(batch, point)
		if len(batch) >= p.cfg.BatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	log.Info("ingestion complete", "collection", collection, "pages", len(pages))
	return nil
}

// buildPoint renders the page's embedding text, computes all five vector
// representations, and assembles the point payload.
func (p *Pipeline) buildPoint(ctx context.Context, m PageMetadata) (vecstore.Point, error) {
	page := m.PageNumber()
	text := BuildEmbeddingText(m)

	dense, err := p.provider.Dense(ctx, text)
	if err != nil {
		return vecstore.Point{}, fmt.Errorf("ingestion: dense embedding for page %d: %w", page, err)
	}
	sparse, err := p.provider.Sparse(ctx, text)
	if err != nil {
		return vecstore.Point{}, fmt.Errorf("ingestion: sparse embedding for page %d: %w", page, err)
	}
	colbert, err := p.provider.Multivector(ctx, text)
	if err != nil {
		return vecstore.Point{}, fmt.Errorf("ingestion: colbert embedding for page %d: %w", page, err)
	}
	small, err := p.provider.Truncated(ctx, text, vecstore.SmallDimensions)
	if err != nil {
		return vecstore.Point{}, fmt.Errorf("ingestion: small embedding for page %d: %w", page, err)
	}
	large, err := p.provider.Truncated(ctx, text, vecstore.LargeDimensions)
	if err != nil {
		return vecstore.Point{}, fmt.Errorf("ingestion: large embedding for page %d: %w", page, err)
	}

	return vecstore.Point{
		ID: PointID(m.DocumentID(), page),
		Vectors: vecstore.PointVectors{
			Dense:   dense,
			Sparse:  sparse,
			Colbert: colbert,
			Small:   small,
			Large:   large,
		},
		Payload: p.buildPayload(m, text),
	}, nil
}

// buildPayload flattens the filter-relevant page fields into a structured
// payload, aggregates the per-element annotations, and optionally embeds
// the full page metadata for reconstruction.
func (p *Pipeline) buildPayload(m PageMetadata, embeddingText string) map[string]any {
	doc, _ := m["document_metadata"].(map[string]any)
	section, _ := m["section"].(map[string]any)
	tags := collectElementTags(metaList(m, "content_elements"))

	payload := map[string]any{
		"embedding_text":          embeddingText,
		"page_number":             m["page_number"],
		"document_id":             doc["document_id"],
		"document_title":          doc["document_title"],
		"document_type":           doc["document_type"],
		"manufacturer":            doc["manufacturer"],
		"models_covered":          doc["models_covered"],
		"section_number":          section["section_number"],
		"section_title":           section["section_title"],
		"subsection_number":       section["subsection_number"],
		"subsection_title":        section["subsection_title"],
		"has_tables":              boolOr(m["has_tables"], false),
		"has_figures":             boolOr(m["has_figures"], false),
		"table_count":             m["table_count"],
		"figure_count":            m["figure_count"],
		"text_block_count":        m["text_block_count"],
		"page_visual_description": m["page_visual_description"],
		"entities":                tags.entities,
		"keywords":                tags.keywords,
		"warnings":                tags.warnings,
		"application_contexts":    tags.contexts,
		"applicable_models":       tags.models,
		"component_types":         tags.types,
	}
	if p.cfg.IncludeFullMetadata {
		payload["full_page_metadata"] = map[string]any(m)
	}
	return payload
}

func boolOr(v any, def bool) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return def
}
