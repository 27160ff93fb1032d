package domain

// ContentKind distinguishes documentation chunks from source code chunks.
type ContentKind string

const (
	KindDoc  ContentKind = "doc"
	KindCode ContentKind = "code"
)

// VectorSpace names one retrieval lane in the vector store collection.
type VectorSpace string

const (
	SpaceDenseDocs     VectorSpace = "dense_docs"
	SpaceDenseCode     VectorSpace = "dense_code"
	SpaceSparseLexical VectorSpace = "sparse_lexical"
)

// EmbeddingMode selects the provider-side representation. Query and document
// embeddings are not always in the same space and must never be interchanged.
type EmbeddingMode string

const (
	EmbedQuery    EmbeddingMode = "query"
	EmbedDocument EmbeddingMode = "document"
)

// SparseVector is a weighted term-index pairing over a provider-fixed vocabulary.
type SparseVector struct {
	Indices []uint32  `json:"indices"`
	Values  []float32 `json:"values"`
}

func (v SparseVector) IsZero() bool {
	return len(v.Indices) == 0
}

// QueryVectors carries the three lane representations of one query variant.
// A nil dense vector or zero sparse vector marks a lane that failed to embed.
type QueryVectors struct {
	DenseDocs []float32
	DenseCode []float32
	Sparse    SparseVector
}

// LaneCount reports how many lanes produced a usable vector.
func (v QueryVectors) LaneCount() int {
	n := 0
	if len(v.DenseDocs) > 0 {
		n++
	}
	if len(v.DenseCode) > 0 {
		n++
	}
	if !v.Sparse.IsZero() {
		n++
	}
	return n
}

// Candidate is one retrieved chunk. It carries the fused score from hybrid
// search and, after reranking, a rerank score that supersedes it.
type Candidate struct {
	ID          string      `json:"id"`
	Kind        ContentKind `json:"kind"`
	Corpus      string      `json:"corpus"`
	Repo        string      `json:"repo"`
	Ref         string      `json:"ref"`
	Path        string      `json:"path"`
	Text        string      `json:"text"`
	StartLine   int         `json:"start_line,omitempty"`
	EndLine     int         `json:"end_line,omitempty"`
	ChunkID     string      `json:"chunk_id"`
	FusedScore  float64     `json:"fused_score"`
	RerankScore float64     `json:"rerank_score,omitempty"`
	Reranked    bool        `json:"reranked"`
}

// EffectiveScore is the ordering score: rerank when present, fused otherwise.
func (c Candidate) EffectiveScore() float64 {
	if c.Reranked {
		return c.RerankScore
	}
	return c.FusedScore
}

func (c Candidate) HasLineRange() bool {
	return c.StartLine > 0 && c.EndLine >= c.StartLine
}
