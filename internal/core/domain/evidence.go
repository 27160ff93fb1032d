package domain

// Confidence labels a citation based on the rerank score. It is "unscored"
// whenever no rerank score exists: the fused score lives in a different numeric
// range and must not be compared against a rerank-calibrated threshold.
type Confidence string

const (
	ConfidenceHigh     Confidence = "high"
	ConfidenceMedium   Confidence = "medium"
	ConfidenceUnscored Confidence = "unscored"
)

// EvidenceItem is the final-output projection of a Candidate. Ranks are dense
// and 1-based over the pack.
type EvidenceItem struct {
	Rank       int         `json:"rank"`
	Score      float64     `json:"score"`
	Confidence Confidence  `json:"confidence"`
	Citation   string      `json:"citation"`
	Kind       ContentKind `json:"kind"`
	Corpus     string      `json:"corpus"`
	Repo       string      `json:"repo"`
	Ref        string      `json:"ref"`
	Path       string      `json:"path"`
	StartLine  int         `json:"start_line,omitempty"`
	EndLine    int         `json:"end_line,omitempty"`
	ChunkID    string      `json:"chunk_id"`
	Text       string      `json:"text"`
}

// Coverage counts final-selection items per content kind and per corpus.
type Coverage struct {
	ByKind   map[string]int `json:"by_kind"`
	ByCorpus map[string]int `json:"by_corpus"`
}

// StageTimings is the per-stage latency breakdown in milliseconds.
type StageTimings struct {
	ExpansionMS float64 `json:"expansion_ms"`
	EmbeddingMS float64 `json:"embedding_ms"`
	SearchMS    float64 `json:"search_ms"`
	BalancingMS float64 `json:"balancing_ms"`
	RerankingMS float64 `json:"reranking_ms"`
	CoverageMS  float64 `json:"coverage_ms"`
	TotalMS     float64 `json:"total_ms"`
}

// EvidencePack is the full response for one query, immutable after return.
// A fatal per-query failure yields a pack with Err set and empty Items, so a
// host batching queries is never aborted by one failure.
type EvidencePack struct {
	Query    string         `json:"query"`
	Mode     RetrievalMode  `json:"mode"`
	Items    []EvidenceItem `json:"items"`
	Coverage Coverage       `json:"coverage"`
	Warnings []string       `json:"warnings,omitempty"`
	Timings  StageTimings   `json:"timings"`
	Reranked bool           `json:"reranked"`
	Variants []string       `json:"variants,omitempty"`
	Err      string         `json:"error,omitempty"`
}

// SearchEvent is the telemetry record published after a completed query.
type SearchEvent struct {
	ID         string        `json:"id"`
	Query      string        `json:"query"`
	Mode       RetrievalMode `json:"mode"`
	ItemCount  int           `json:"item_count"`
	Reranked   bool          `json:"reranked"`
	Warnings   int           `json:"warnings"`
	DurationMS float64       `json:"duration_ms"`
	Failed     bool          `json:"failed"`
}
