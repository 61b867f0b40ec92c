package vecstore

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig holds connection parameters for a Qdrant instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantStore implements Store backed by a Qdrant instance. It maps the
// neutral StagedQuery plan onto Qdrant's Query API prefetch trees, so every
// staging decision (rerank vs RRF fusion) executes server-side.
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// closed guards against double-close of the gRPC connection.
	closed bool
}

// NewQdrantStore creates a QdrantStore from the given config.
// Collection creation is deferred to EnsureCollection so read-only callers
// (the retrieval strategies) never need create permissions.
func NewQdrantStore(cfg *QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("vecstore: failed to create qdrant client: %w", err)
	}

	return &QdrantStore{client: client}, nil
}

// Client exposes the underlying Qdrant client for health probes.
func (s *QdrantStore) Client() *qdrant.Client { return s.client }

// CollectionExists reports whether the named collection exists.
func (s *QdrantStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return false, storeErr("collection_exists", err)
	}
	return exists, nil
}

// EnsureCollection creates the collection with all five named vector fields
// if it does not already exist. The colbert field is configured for MaxSim
// multivector comparison; the matryoshka fields are stored as float16 since
// their role is coarse candidate filtering, not final precision.
func (s *QdrantStore) EnsureCollection(ctx context.Context, name string, denseSize, colbertSize uint64) error {
	exists, err := s.CollectionExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
			FieldDense: {
				Size:     denseSize,
				Distance: qdrant.Distance_Cosine,
			},
			FieldColbert: {
				Size:     colbertSize,
				Distance: qdrant.Distance_Cosine,
				MultivectorConfig: &qdrant.MultiVectorConfig{
					Comparator: qdrant.MultiVectorComparator_MaxSim,
				},
			},
			FieldSmall: {
				Size:     SmallDimensions,
				Distance: qdrant.Distance_Cosine,
				Datatype: qdrant.Datatype_Float16.Enum(),
			},
			FieldLarge: {
				Size:     LargeDimensions,
				Distance: qdrant.Distance_Cosine,
				Datatype: qdrant.Datatype_Float16.Enum(),
			},
		}),
		SparseVectorsConfig: qdrant.NewSparseVectorsConfig(map[string]*qdrant.SparseVectorParams{
			FieldSparse: {},
		}),
	})
	if err != nil {
		return storeErr("create_collection", err)
	}
	return nil
}

// Query executes a staged query plan server-side and returns the final
// stage's results ordered by descending score.
func (s *QdrantStore) Query(ctx context.Context, collection string, query *StagedQuery, opts QueryOptions) ([]RawResult, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	q, using := toQdrantQuery(query)
	req := &qdrant.QueryPoints{
		CollectionName: collection,
		Prefetch:       toQdrantPrefetch(query.Prefetch),
		Query:          q,
		Using:          using,
		Limit:          qdrant.PtrOf(opts.Limit),
		ScoreThreshold: opts.ScoreThreshold,
		WithPayload:    qdrant.NewWithPayload(true),
	}

	points, err := s.client.Query(ctx, req)
	if err != nil {
		return nil, storeErr("query", err)
	}

	results := make([]RawResult, 0, len(points))
	for _, p := range points {
		results = append(results, RawResult{
			ID:      p.GetId().GetNum(),
			Score:   p.GetScore(),
			Payload: payloadToMap(p.GetPayload()),
		})
	}
	return results, nil
}

// Upsert writes or replaces a batch of points with their named vectors.
func (s *QdrantStore) Upsert(ctx context.Context, collection string, points []Point) error {
	structs := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		vectors := map[string]*qdrant.Vector{}
		if p.Vectors.Dense != nil {
			vectors[FieldDense] = qdrant.NewVectorDense(p.Vectors.Dense)
		}
		if p.Vectors.Sparse != nil {
			vectors[FieldSparse] = qdrant.NewVectorSparse(p.Vectors.Sparse.Indices, p.Vectors.Sparse.Values)
		}
		if p.Vectors.Colbert != nil {
			vectors[FieldColbert] = qdrant.NewVectorMulti(p.Vectors.Colbert)
		}
		if p.Vectors.Small != nil {
			vectors[FieldSmall] = qdrant.NewVectorDense(p.Vectors.Small)
		}
		if p.Vectors.Large != nil {
			vectors[FieldLarge] = qdrant.NewVectorDense(p.Vectors.Large)
		}

		structs = append(structs, &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(p.ID),
			Vectors: qdrant.NewVectorsMap(vectors),
			Payload: qdrant.NewValueMap(p.Payload),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         structs,
	})
	if err != nil {
		return storeErr("upsert", err)
	}
	return nil
}

// Close closes the underlying Qdrant gRPC connection. Idempotent.
func (s *QdrantStore) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}

// toQdrantQuery converts a node's scoring vector into the wire query and the
// named field it targets. Fusion nodes map to a server-side RRF query with no
// field of their own.
func toQdrantQuery(q *StagedQuery) (*qdrant.Query, *string) {
	if q.FuseRRF {
		return qdrant.NewQueryFusion(qdrant.Fusion_RRF), nil
	}
	switch {
	case q.Vector.Multi != nil:
		return qdrant.NewQueryMulti(q.Vector.Multi), qdrant.PtrOf(q.Using)
	case q.Vector.Sparse != nil:
		return qdrant.NewQuerySparse(q.Vector.Sparse.Indices, q.Vector.Sparse.Values), qdrant.PtrOf(q.Using)
	default:
		return qdrant.NewQueryDense(q.Vector.Dense), qdrant.PtrOf(q.Using)
	}
}

// toQdrantPrefetch recursively converts prefetch subtrees.
func toQdrantPrefetch(stages []*StagedQuery) []*qdrant.PrefetchQuery {
	if len(stages) == 0 {
		return nil
	}
	out := make([]*qdrant.PrefetchQuery, 0, len(stages))
	for _, st := range stages {
		q, using := toQdrantQuery(st)
		pf := &qdrant.PrefetchQuery{
			Prefetch: toQdrantPrefetch(st.Prefetch),
			Query:    q,
			Using:    using,
		}
		if st.Limit > 0 {
			pf.Limit = qdrant.PtrOf(st.Limit)
		}
		out = append(out, pf)
	}
	return out
}

// payloadToMap converts a Qdrant payload into a plain map[string]any so the
// formatter and extractors never touch protobuf types.
func payloadToMap(p map[string]*qdrant.Value) map[string]any {
	if p == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = valueToAny(v)
	}
	return out
}

// valueToAny recursively converts a Qdrant Value into native Go types.
func valueToAny(v *qdrant.Value) any {
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_ListValue:
		items := kind.ListValue.GetValues()
		list := make([]any, 0, len(items))
		for _, item := range items {
			list = append(list, valueToAny(item))
		}
		return list
	case *qdrant.Value_StructValue:
		fields := kind.StructValue.GetFields()
		m := make(map[string]any, len(fields))
		for k, f := range fields {
			m[k] = valueToAny(f)
		}
		return m
	default:
		return nil
	}
}
