package usecase

import (
	"sort"

	"github.com/avolkov/grounding/internal/core/domain"
)

type fusedCandidate struct {
	candidate domain.Candidate
	score     float64
	firstSeen int
}

// fuseVariantsRRF merges per-variant ranked lists into one list using
// Reciprocal Rank Fusion: score(d) = sum over lists of 1/(k + rank), rank
// 1-based. Duplicates keep the first-seen payload with the accumulated score.
//
// Equal fused scores tie-break by first-seen position, which encodes variant
// order first and per-list rank second, so repeated runs produce identical
// orderings.
func fuseVariantsRRF(lists [][]domain.Candidate, rrfK int) []domain.Candidate {
	if rrfK <= 0 {
		rrfK = 60
	}

	acc := make(map[string]*fusedCandidate)
	order := 0
	for _, list := range lists {
		for rank, cand := range list {
			entry, ok := acc[cand.ID]
			if !ok {
				entry = &fusedCandidate{candidate: cand, firstSeen: order}
				acc[cand.ID] = entry
				order++
			}
			entry.score += 1.0 / float64(rrfK+rank+1)
		}
	}

	out := make([]domain.Candidate, 0, len(acc))
	seen := make([]int, 0, len(acc))
	for _, entry := range acc {
		cand := entry.candidate
		cand.FusedScore = entry.score
		out = append(out, cand)
		seen = append(seen, entry.firstSeen)
	}

	idx := make([]int, len(out))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		if out[idx[a]].FusedScore != out[idx[b]].FusedScore {
			return out[idx[a]].FusedScore > out[idx[b]].FusedScore
		}
		return seen[idx[a]] < seen[idx[b]]
	})

	sorted := make([]domain.Candidate, len(out))
	for i, j := range idx {
		sorted[i] = out[j]
	}
	return sorted
}
