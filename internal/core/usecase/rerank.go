package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/avolkov/grounding/internal/core/domain"
	"github.com/avolkov/grounding/internal/core/ports"
)

// rerankInstructions phrase a distinct ranking intent per retrieval mode. The
// literal query is appended after the instruction.
var rerankInstructions = map[domain.RetrievalMode]string{
	domain.ModeBuild:    "Rank evidence for implementing the requested functionality correctly. Prefer official documentation and primary source code.",
	domain.ModeDebug:    "Rank evidence for debugging errors and understanding internals.",
	domain.ModeExplain:  "Rank evidence for explaining concepts and architecture.",
	domain.ModeRefactor: "Rank evidence for best practices and refactoring existing code.",
}

func rerankQuery(mode domain.RetrievalMode, query string) string {
	instruction, ok := rerankInstructions[mode]
	if !ok {
		instruction = rerankInstructions[domain.ModeBuild]
	}
	return instruction + "\nQUERY: " + query
}

// buildRerankDocument serializes a candidate into the reranker input format:
// a metadata header block, a blank line, then the raw chunk text.
func buildRerankDocument(c domain.Candidate) string {
	lines := "null"
	if c.HasLineRange() {
		lines = fmt.Sprintf("%d-%d", c.StartLine, c.EndLine)
	}
	parts := []string{
		"SOURCE_TYPE: " + c.Corpus,
		"KIND: " + string(c.Kind),
		"REPO: " + c.Repo,
		"REF: " + c.Ref,
		"PATH_OR_URL: " + c.Path,
		"LINES: " + lines,
		"CHUNK_ID: " + c.ChunkID,
		"",
		c.Text,
	}
	return strings.Join(parts, "\n")
}

// rerankCandidates invokes the cross-encoder and maps relevance scores back
// onto the candidates by submission index. The returned list follows the
// reranker's descending-relevance order. On reranker failure the input list is
// returned untouched together with a warning: fused ordering is the fallback,
// never a failed query.
func rerankCandidates(
	ctx context.Context,
	reranker ports.Reranker,
	mode domain.RetrievalMode,
	query string,
	candidates []domain.Candidate,
) ([]domain.Candidate, []string) {
	if len(candidates) == 0 {
		return candidates, nil
	}

	documents := make([]string, len(candidates))
	for i, cand := range candidates {
		documents[i] = buildRerankDocument(cand)
	}

	results, err := reranker.Rerank(ctx, rerankQuery(mode, query), documents, len(documents))
	if err != nil {
		warn := fmt.Sprintf("reranking failed, falling back to fused ordering: %v", err)
		return candidates, []string{warn}
	}

	reranked := make([]domain.Candidate, 0, len(results))
	for _, res := range results {
		if res.Index < 0 || res.Index >= len(candidates) {
			continue
		}
		cand := candidates[res.Index]
		cand.RerankScore = res.Score
		cand.Reranked = true
		reranked = append(reranked, cand)
	}
	if len(reranked) == 0 {
		return candidates, []string{"reranker returned no usable results, falling back to fused ordering"}
	}
	return reranked, nil
}
