// Package retrieval implements the multi-strategy search pipelines over the
// manual collection: single-stage late-interaction search, hybrid
// dense+sparse with late-interaction rerank, staged matryoshka rerank, and
// rank-fusion combining all of them. Strategies differ only in how candidates
// are selected and ranked; result shaping is shared (see Format).
package retrieval

import (
	"context"
	"fmt"

	"github.com/54b3r/manualiq-go/internal/embedding"
	"github.com/54b3r/manualiq-go/internal/vecstore"
)

// Kind selects a retrieval strategy. The tag set is closed; anything else is
// a configuration error.
type Kind string

// Known strategy tags.
const (
	// KindColbert is single-stage late-interaction search.
	KindColbert Kind = "colbert"
	// KindHybrid is dense+sparse prefetch with late-interaction rerank.
	KindHybrid Kind = "hybrid"
	// KindMatrioska is the staged small-to-large dense rerank.
	KindMatrioska Kind = "matrioska"
	// KindFusion combines the matryoshka and dense+sparse RRF branches with a
	// final late-interaction rerank.
	KindFusion Kind = "fusion"
)

// Default tuning values, applied when the corresponding Options field is zero.
const (
	// DefaultLimit is the final result count.
	DefaultLimit = 10
	// DefaultPrefetchLimit is the per-branch candidate count for hybrid search.
	DefaultPrefetchLimit = 20
)

// Options tunes a single retrieve call.
type Options struct {
	// Collection is the collection to search. Required.
	Collection string
	// Limit is the maximum number of results (default: DefaultLimit).
	Limit int
	// PrefetchLimit is the per-branch candidate count for staged strategies
	// (default: DefaultPrefetchLimit). Ignored by strategies with fixed
	// stage sizes.
	PrefetchLimit int
	// ScoreThreshold drops results scoring below it. Nil disables the cut.
	// The store applies the threshold, not this layer.
	ScoreThreshold *float32
}

// withDefaults returns a copy of o with zero fields replaced by defaults.
func (o Options) withDefaults() Options {
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.PrefetchLimit <= 0 {
		o.PrefetchLimit = DefaultPrefetchLimit
	}
	return o
}

// Strategy is the common contract all retrieval variants implement. Results
// are ordered by descending score and never exceed opts.Limit. A strategy
// either returns a complete ranked set or an error; there are no partial
// results.
type Strategy interface {
	// Retrieve runs the strategy's pipeline for one query text.
	Retrieve(ctx context.Context, query string, opts Options) ([]FormattedResult, error)

	// Kind reports the strategy's tag.
	Kind() Kind
}

// ConfigError reports an invalid retrieval configuration, such as an unknown
// strategy tag. It is fatal; there is no runtime fallback.
type ConfigError struct {
	// Msg describes what is misconfigured.
	Msg string
}

// Error implements the error interface.
func (e *ConfigError) Error() string { return "retrieval: " + e.Msg }

// New selects a Strategy by tag. Unknown tags return a *ConfigError.
func New(kind Kind, store vecstore.Store, provider embedding.Provider) (Strategy, error) {
	switch kind {
	case KindColbert:
		return &ColbertStrategy{store: store, provider: provider}, nil
	case KindHybrid:
		return &HybridStrategy{store: store, provider: provider}, nil
	case KindMatrioska:
		return &MatrioskaStrategy{store: store, provider: provider}, nil
	case KindFusion:
		return &FusionStrategy{store: store, provider: provider}, nil
	default:
		return nil, &ConfigError{Msg: fmt.Sprintf("unknown strategy %q — valid values: colbert, hybrid, matrioska, fusion", kind)}
	}
}
