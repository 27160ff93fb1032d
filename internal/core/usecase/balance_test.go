package usecase

import (
	"fmt"
	"testing"

	"github.com/avolkov/grounding/internal/core/domain"
)

func kindList(kind domain.ContentKind, prefix string, n int) []domain.Candidate {
	out := make([]domain.Candidate, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.Candidate{ID: fmt.Sprintf("%s-%d", prefix, i), Kind: kind})
	}
	return out
}

func TestBalanceCandidatesNoOpWhenWithinTarget(t *testing.T) {
	candidates := kindList(domain.KindDoc, "doc", 10)
	balanced := balanceCandidates(candidates, 60)
	if len(balanced) != 10 {
		t.Fatalf("expected untouched list, got %d candidates", len(balanced))
	}
	for i := range candidates {
		if balanced[i].ID != candidates[i].ID {
			t.Fatalf("order changed at %d", i)
		}
	}
}

func TestBalanceCandidatesReservesPerKindSlots(t *testing.T) {
	// 90 docs ranked ahead of 30 code candidates. Without balancing the code
	// candidates would be pushed out entirely.
	candidates := append(kindList(domain.KindDoc, "doc", 90), kindList(domain.KindCode, "code", 30)...)

	balanced := balanceCandidates(candidates, 60)
	if len(balanced) != 60 {
		t.Fatalf("expected 60 candidates, got %d", len(balanced))
	}

	docs, code := 0, 0
	for _, cand := range balanced {
		switch cand.Kind {
		case domain.KindDoc:
			docs++
		case domain.KindCode:
			code++
		}
	}
	if code != 30 {
		t.Fatalf("expected all 30 code candidates retained, got %d", code)
	}
	if docs != 30 {
		t.Fatalf("expected 30 doc candidates, got %d", docs)
	}
}

func TestBalanceCandidatesFillsRemainderInRankOrder(t *testing.T) {
	// Only 5 code candidates exist, so docs take the leftover slots.
	candidates := append(kindList(domain.KindDoc, "doc", 100), kindList(domain.KindCode, "code", 5)...)

	balanced := balanceCandidates(candidates, 60)
	if len(balanced) != 60 {
		t.Fatalf("expected 60 candidates, got %d", len(balanced))
	}

	docs := 0
	for _, cand := range balanced {
		if cand.Kind == domain.KindDoc {
			docs++
		}
	}
	if docs != 55 {
		t.Fatalf("expected 55 docs after filling remainder, got %d", docs)
	}
}

func TestBalanceCandidatesNoDuplicates(t *testing.T) {
	candidates := append(kindList(domain.KindDoc, "doc", 40), kindList(domain.KindCode, "code", 40)...)

	balanced := balanceCandidates(candidates, 60)
	seen := make(map[string]struct{}, len(balanced))
	for _, cand := range balanced {
		if _, dup := seen[cand.ID]; dup {
			t.Fatalf("duplicate candidate %s in balanced pool", cand.ID)
		}
		seen[cand.ID] = struct{}{}
	}
}
