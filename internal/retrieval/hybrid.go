package retrieval

import (
	"context"
	"log/slog"

	"github.com/54b3r/manualiq-go/internal/embedding"
	"github.com/54b3r/manualiq-go/internal/logging"
	"github.com/54b3r/manualiq-go/internal/vecstore"
)

// HybridStrategy retrieves two independent candidate funnels, one dense and
// one sparse, each capped at the prefetch limit, and lets the store rerank
// their union with the late-interaction field. The branches are not fused by
// RRF first; the final rerank alone merges them. That is an intentional
// asymmetry with FusionStrategy, which does fuse its dense+sparse branch.
type HybridStrategy struct {
	store    vecstore.Store
	provider embedding.Provider
}

// Kind reports the strategy's tag.
func (s *HybridStrategy) Kind() Kind { return KindHybrid }

// Retrieve runs the dense+sparse prefetch with late-interaction rerank.
func (s *HybridStrategy) Retrieve(ctx context.Context, query string, opts Options) ([]FormattedResult, error) {
	opts = opts.withDefaults()

	dense, err := s.provider.Dense(ctx, query)
	if err != nil {
		return nil, err
	}
	sparse, err := s.provider.Sparse(ctx, query)
	if err != nil {
		return nil, err
	}
	multi, err := s.provider.Multivector(ctx, query)
	if err != nil {
		return nil, err
	}

	staged := &vecstore.StagedQuery{
		Prefetch: []*vecstore.StagedQuery{
			{
				Vector: vecstore.QueryVector{Dense: dense},
				Using:  vecstore.FieldDense,
				Limit:  uint64(opts.PrefetchLimit),
			},
			{
				Vector: vecstore.QueryVector{Sparse: sparse},
				Using:  vecstore.FieldSparse,
				Limit:  uint64(opts.PrefetchLimit),
			},
		},
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

	logging.FromContext(ctx).Debug("retrieval: hybrid search complete",
		slog.String("collection", opts.Collection),
		slog.Int("prefetch_limit", opts.PrefetchLimit),
		slog.Int("results", len(raw)))
	return Format(raw), nil
}
