package lexical

import (
	"context"
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/avolkov/grounding/internal/core/domain"
)

const (
	bm25K          = 1.2
	maxSparseTerms = 256
)

// Encoder produces BM25-weighted sparse vectors from hashed alphanumeric
// tokens. Both sides of the lexical lane must use the same hashing scheme,
// so this encoder is shared by the indexer and the query path.
type Encoder struct{}

func NewEncoder() *Encoder {
	return &Encoder{}
}

func (e *Encoder) EmbedSparse(_ context.Context, text string, _ domain.EmbeddingMode) (domain.SparseVector, error) {
	termFreq := make(map[uint32]float64, 32)
	for _, token := range tokenizeAlphaNum(text) {
		termFreq[hashToken(token)]++
	}
	return termFreqToSparse(termFreq), nil
}

func termFreqToSparse(tf map[uint32]float64) domain.SparseVector {
	if len(tf) == 0 {
		return domain.SparseVector{}
	}
	indices := make([]uint32, 0, len(tf))
	for idx := range tf {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	if len(indices) > maxSparseTerms {
		indices = indices[:maxSparseTerms]
	}

	values := make([]float32, 0, len(indices))
	for _, idx := range indices {
		tfValue := tf[idx]
		weight := (tfValue * (bm25K + 1.0)) / (tfValue + bm25K)
		if math.IsNaN(weight) || math.IsInf(weight, 0) {
			weight = 0
		}
		values = append(values, float32(weight))
	}

	return domain.SparseVector{Indices: indices, Values: values}
}

// hashToken maps a token to a non-zero sparse index. Zero is reserved so an
// all-zero vector always means "no terms".
func hashToken(token string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	sum := h.Sum32()
	if sum == 0 {
		return 1
	}
	return sum
}

func tokenizeAlphaNum(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, 0, 24)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}
