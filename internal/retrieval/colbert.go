package retrieval

import (
	"context"
	"log/slog"

	"github.com/54b3r/manualiq-go/internal/embedding"
	"github.com/54b3r/manualiq-go/internal/logging"
	"github.com/54b3r/manualiq-go/internal/vecstore"
)

// ColbertStrategy searches the late-interaction field directly: one query,
// no prefetch stages. The per-token query vectors are scored against each
// page's token vectors by max-similarity aggregation, which the store does
// server-side.
type ColbertStrategy struct {
	store    vecstore.Store
	provider embedding.Provider
}

// Kind reports the strategy's tag.
func (s *ColbertStrategy) Kind() Kind { return KindColbert }

// Retrieve runs a single-stage late-interaction search.
func (s *ColbertStrategy) Retrieve(ctx context.Context, query string, opts Options) ([]FormattedResult, error) {
	opts = opts.withDefaults()

	multi, err := s.provider.Multivector(ctx, query)
	if err != nil {
		return nil, err
	}

	staged := &vecstore.StagedQuery{
		Vector: vecstore.QueryVector{Multi: multi},
		Using:  vecstore.FieldColbert,
	}
	raw, err := s.store.Query(ctx, opts.Collection, staged, vecstore.QueryOptions{
		Limit:          uint64(opts.Limit),
		ScoreThreshold: opts.ScoreThreshold,
	})
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).Debug("retrieval: colbert search complete",
		slog.String("collection", opts.Collection),
		slog.Int("results", len(raw)))
	return Format(raw), nil
}
