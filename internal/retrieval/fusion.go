package retrieval

import (
	"context"
	"log/slog"

	"github.com/54b3r/manualiq-go/internal/embedding"
	"github.com/54b3r/manualiq-go/internal/logging"
	"github.com/54b3r/manualiq-go/internal/vecstore"
)

// Branch sizes for the dense+sparse fusion branch. The sparse branch is kept
// narrow; lexical matches beyond the top handful add noise, not recall.
const (
	// fusionDenseLimit is the dense branch candidate count.
	fusionDenseLimit = 100
	// fusionSparseLimit is the sparse branch candidate count.
	fusionSparseLimit = 25
)

// FusionStrategy combines every representation the collection carries.
// Branch A is the matryoshka small-to-large prefetch. Branch B retrieves
// dense and sparse candidates independently and merges them by reciprocal
// rank fusion. The union of both branches is scored a final time by the
// late-interaction field.
type FusionStrategy struct {
	store    vecstore.Store
	provider embedding.Provider
}

// Kind reports the strategy's tag.
func (s *FusionStrategy) Kind() Kind { return KindFusion }

// Retrieve runs the full fusion pipeline. All five query representations are
// embedded up front; any embedding failure aborts the call.
func (s *FusionStrategy) Retrieve(ctx context.Context, query string, opts Options) ([]FormattedResult, error) {
	opts = opts.withDefaults()

	small, err := s.provider.Truncated(ctx, query, vecstore.SmallDimensions)
	if err != nil {
		return nil, err
	}
	large, err := s.provider.Truncated(ctx, query, vecstore.LargeDimensions)
	if err != nil {
		return nil, err
	}
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

	denseSparseRRF := &vecstore.StagedQuery{
		Prefetch: []*vecstore.StagedQuery{
			{
				Vector: vecstore.QueryVector{Dense: dense},
				Using:  vecstore.FieldDense,
				Limit:  fusionDenseLimit,
			},
			{
				Vector: vecstore.QueryVector{Sparse: sparse},
				Using:  vecstore.FieldSparse,
				Limit:  fusionSparseLimit,
			},
		},
		FuseRRF: true,
	}
	staged := &vecstore.StagedQuery{
		Prefetch: []*vecstore.StagedQuery{
			matrioskaPrefetch(small, large),
			denseSparseRRF,
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

	logging.FromContext(ctx).Debug("retrieval: fusion search complete",
		slog.String("collection", opts.Collection),
		slog.Int("results", len(raw)))
	return Format(raw), nil
}
