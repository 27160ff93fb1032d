package usecase

import (
	"fmt"

	"github.com/avolkov/grounding/internal/core/domain"
)

// buildCitation formats the citation string per content kind. Doc chunks cite
// the chunk id; code chunks cite the line range when one exists.
func buildCitation(c domain.Candidate) string {
	ref := c.Ref
	if len(ref) > 7 {
		ref = ref[:7]
	}
	if c.Kind == domain.KindCode && c.HasLineRange() {
		return fmt.Sprintf("%s@%s:%s#L%d-L%d", c.Corpus, ref, c.Path, c.StartLine, c.EndLine)
	}
	return fmt.Sprintf("%s@%s:%s#%s", c.Corpus, ref, c.Path, c.ChunkID)
}

func confidenceLabel(c domain.Candidate, highThreshold float64) domain.Confidence {
	if !c.Reranked {
		return domain.ConfidenceUnscored
	}
	if c.RerankScore > highThreshold {
		return domain.ConfidenceHigh
	}
	return domain.ConfidenceMedium
}

// assembleEvidence builds the final ranked items and coverage aggregates from
// the gated selection. Ranks are dense, 1-based, in the selection's order.
func assembleEvidence(selection []domain.Candidate, highThreshold float64) ([]domain.EvidenceItem, domain.Coverage) {
	items := make([]domain.EvidenceItem, 0, len(selection))
	coverage := domain.Coverage{
		ByKind:   make(map[string]int),
		ByCorpus: make(map[string]int),
	}

	for i, cand := range selection {
		items = append(items, domain.EvidenceItem{
			Rank:       i + 1,
			Score:      cand.EffectiveScore(),
			Confidence: confidenceLabel(cand, highThreshold),
			Citation:   buildCitation(cand),
			Kind:       cand.Kind,
			Corpus:     cand.Corpus,
			Repo:       cand.Repo,
			Ref:        cand.Ref,
			Path:       cand.Path,
			StartLine:  cand.StartLine,
			EndLine:    cand.EndLine,
			ChunkID:    cand.ChunkID,
			Text:       cand.Text,
		})
		coverage.ByKind[string(cand.Kind)]++
		if cand.Corpus != "" {
			coverage.ByCorpus[cand.Corpus]++
		}
	}
	return items, coverage
}
