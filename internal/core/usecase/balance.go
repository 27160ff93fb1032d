package usecase

import "github.com/avolkov/grounding/internal/core/domain"

// balanceCandidates reshapes a fused candidate list into a bounded pool with
// up to target/2 slots reserved per content kind, so the reranker never sees a
// pool skewed to one kind purely by upstream retrieval imbalance. Each kind's
// sublist is truncated in its own rank order; leftover slots are filled from
// the unused remainder in original rank order. No-op when the input already
// fits the target.
func balanceCandidates(candidates []domain.Candidate, target int) []domain.Candidate {
	if target <= 0 || len(candidates) <= target {
		return candidates
	}

	perKind := target / 2
	selected := make([]domain.Candidate, 0, target)
	taken := make(map[string]struct{}, target)

	docsTaken, codeTaken := 0, 0
	for _, cand := range candidates {
		switch {
		case cand.Kind == domain.KindDoc && docsTaken < perKind:
			docsTaken++
		case cand.Kind == domain.KindCode && codeTaken < perKind:
			codeTaken++
		default:
			continue
		}
		selected = append(selected, cand)
		taken[cand.ID] = struct{}{}
	}

	for _, cand := range candidates {
		if len(selected) >= target {
			break
		}
		if _, ok := taken[cand.ID]; ok {
			continue
		}
		selected = append(selected, cand)
		taken[cand.ID] = struct{}{}
	}

	return selected
}
