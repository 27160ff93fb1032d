package ports

import (
	"context"

	"github.com/avolkov/grounding/internal/core/domain"
)

// DenseEmbedder produces dense vectors from the embedding provider.
type DenseEmbedder interface {
	EmbedDense(ctx context.Context, text string, space domain.VectorSpace, mode domain.EmbeddingMode) ([]float32, error)
}

// SparseEmbedder produces sparse lexical vectors.
type SparseEmbedder interface {
	EmbedSparse(ctx context.Context, text string, mode domain.EmbeddingMode) (domain.SparseVector, error)
}

// SearchLane is one prefetch request inside a hybrid search. Exactly one of
// Dense and Sparse is populated, matching the lane's vector space.
type SearchLane struct {
	Space  domain.VectorSpace
	Dense  []float32
	Sparse domain.SparseVector
	Limit  int
}

// HybridSearcher issues one fused nearest-neighbor query across all lanes and
// returns a ranked, deduplicated candidate list annotated with fused scores.
type HybridSearcher interface {
	HybridSearch(ctx context.Context, lanes []SearchLane, filter domain.Filter, limit int) ([]domain.Candidate, error)
}

// RerankResult maps a relevance score back to the submitted document index.
type RerankResult struct {
	Index int
	Score float64
}

// Reranker scores documents against an instruction-prefixed query with an
// external cross-encoder. Results come back sorted by descending relevance.
// On error, callers fall back to fused-score ordering.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankResult, error)
}

// QueryLog persists completed evidence packs for auditing. Best effort: a
// failed write never fails the query.
type QueryLog interface {
	Record(ctx context.Context, requestID string, pack *domain.EvidencePack) error
}

// EventPublisher emits search telemetry events. Best effort as well.
type EventPublisher interface {
	PublishSearchCompleted(ctx context.Context, event domain.SearchEvent) error
}
