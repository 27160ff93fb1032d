package usecase

import (
	"fmt"
	"sort"
	"strings"

	"github.com/avolkov/grounding/internal/core/domain"
)

// applyCoverageGate selects the final topK candidates while enforcing minimum
// representation per content kind:
//
//  1. force-select the top minDocs doc candidates, then the top minCode code
//     candidates, each by descending effective score;
//  2. fill remaining slots from the full score-ordered list, skipping already
//     selected identifiers;
//  3. re-sort the selection by descending effective score and let the caller
//     re-rank 1..N.
//
// When a kind has fewer candidates than its minimum the gate emits a warning
// and proceeds best-effort; it never blocks a response.
func applyCoverageGate(candidates []domain.Candidate, topK, minDocs, minCode int) ([]domain.Candidate, []string) {
	if topK <= 0 || len(candidates) == 0 {
		return nil, nil
	}

	ordered := make([]domain.Candidate, len(candidates))
	copy(ordered, candidates)
	sortByEffectiveScore(ordered)

	var docs, code []domain.Candidate
	for _, cand := range ordered {
		switch cand.Kind {
		case domain.KindDoc:
			docs = append(docs, cand)
		case domain.KindCode:
			code = append(code, cand)
		}
	}

	selected := make([]domain.Candidate, 0, topK)
	taken := make(map[string]struct{}, topK)
	force := func(pool []domain.Candidate, minimum int) {
		for i := 0; i < len(pool) && i < minimum; i++ {
			if _, ok := taken[pool[i].ID]; ok {
				continue
			}
			selected = append(selected, pool[i])
			taken[pool[i].ID] = struct{}{}
		}
	}
	force(docs, minDocs)
	force(code, minCode)

	for _, cand := range ordered {
		if len(selected) >= topK {
			break
		}
		if _, ok := taken[cand.ID]; ok {
			continue
		}
		selected = append(selected, cand)
		taken[cand.ID] = struct{}{}
	}

	sortByEffectiveScore(selected)

	var warnings []string
	finalDocs, finalCode := 0, 0
	for _, cand := range selected {
		if cand.Kind == domain.KindDoc {
			finalDocs++
		} else if cand.Kind == domain.KindCode {
			finalCode++
		}
	}
	var shortfalls []string
	if finalDocs < minDocs {
		shortfalls = append(shortfalls, fmt.Sprintf("docs=%d (wanted %d)", finalDocs, minDocs))
	}
	if finalCode < minCode {
		shortfalls = append(shortfalls, fmt.Sprintf("code=%d (wanted %d)", finalCode, minCode))
	}
	if len(shortfalls) > 0 {
		warnings = append(warnings, "coverage shortfall: "+strings.Join(shortfalls, ", "))
	}

	return selected, warnings
}

func sortByEffectiveScore(candidates []domain.Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		si, sj := candidates[i].EffectiveScore(), candidates[j].EffectiveScore()
		if si != sj {
			return si > sj
		}
		return candidates[i].ID < candidates[j].ID
	})
}
