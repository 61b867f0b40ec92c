package retrieval

import (
	"context"
	"log/slog"

	"github.com/54b3r/manualiq-go/internal/embedding"
	"github.com/54b3r/manualiq-go/internal/logging"
	"github.com/54b3r/manualiq-go/internal/vecstore"
)

// Stage sizes for the matryoshka rerank. The cheap 128-d pass casts a wide
// net; the 1024-d pass refines ranking over that candidate set at a fraction
// of a full-precision scan's cost.
const (
	// matrioskaSmallLimit is the stage-1 candidate count by the 128-d field.
	matrioskaSmallLimit = 100
	// matrioskaLargeLimit is the stage-2 rerank size by the 1024-d field.
	matrioskaLargeLimit = 50
)

// MatrioskaStrategy runs the staged small-to-large dense rerank: the 128-d
// field selects candidates, the 1024-d field reranks them, and the outer
// query narrows to the final limit.
type MatrioskaStrategy struct {
	store    vecstore.Store
	provider embedding.Provider
}

// Kind reports the strategy's tag.
func (s *MatrioskaStrategy) Kind() Kind { return KindMatrioska }

// Retrieve runs the two-level matryoshka rerank.
func (s *MatrioskaStrategy) Retrieve(ctx context.Context, query string, opts Options) ([]FormattedResult, error) {
	opts = opts.withDefaults()

	small, err := s.provider.Truncated(ctx, query, vecstore.SmallDimensions)
	if err != nil {
		return nil, err
	}
	large, err := s.provider.Truncated(ctx, query, vecstore.LargeDimensions)
	if err != nil {
		return nil, err
	}

	staged := matrioskaStagedQuery(small, large)
	raw, err := s.store.Query(ctx, opts.Collection, staged, vecstore.QueryOptions{
		Limit:          uint64(opts.Limit),
		ScoreThreshold: opts.ScoreThreshold,
	})
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).Debug("retrieval: matrioska search complete",
		slog.String("collection", opts.Collection),
		slog.Int("results", len(raw)))
	return Format(raw), nil
}

// matrioskaStagedQuery builds the small-to-large rerank plan. The outer node
// scores by the 1024-d field over the stage-2 candidates; FusionStrategy
// reuses the inner subtree as its branch A.
func matrioskaStagedQuery(small, large []float32) *vecstore.StagedQuery {
	return &vecstore.StagedQuery{
		Prefetch: []*vecstore.StagedQuery{
			matrioskaPrefetch(small, large),
		},
		Vector: vecstore.QueryVector{Dense: large},
		Using:  vecstore.FieldLarge,
	}
}

// matrioskaPrefetch builds the two-level prefetch subtree: 128-d selection at
// matrioskaSmallLimit, 1024-d rerank down to matrioskaLargeLimit.
func matrioskaPrefetch(small, large []float32) *vecstore.StagedQuery {
	return &vecstore.StagedQuery{
		Prefetch: []*vecstore.StagedQuery{
			{
				Vector: vecstore.QueryVector{Dense: small},
				Using:  vecstore.FieldSmall,
				Limit:  matrioskaSmallLimit,
			},
		},
		Vector: vecstore.QueryVector{Dense: large},
		Using:  vecstore.FieldLarge,
		Limit:  matrioskaLargeLimit,
	}
}
