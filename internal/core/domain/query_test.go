package domain

import (
	"errors"
	"testing"
)

func TestParseRetrievalMode(t *testing.T) {
	cases := []struct {
		in   string
		want RetrievalMode
	}{
		{"build", ModeBuild},
		{"DEBUG", ModeDebug},
		{" explain ", ModeExplain},
		{"refactor", ModeRefactor},
		{"", ModeBuild},
	}
	for _, tc := range cases {
		got, err := ParseRetrievalMode(tc.in)
		if err != nil {
			t.Fatalf("ParseRetrievalMode(%q) error = %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseRetrievalMode(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestParseRetrievalModeUnknown(t *testing.T) {
	_, err := ParseRetrievalMode("banana")
	if !IsKind(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
}

func TestWrapErrorPreservesBothChains(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := WrapError(ErrSearch, "hybrid search", cause)

	if !IsKind(err, ErrSearch) {
		t.Fatal("kind lost in wrapping")
	}
	if !errors.Is(err, cause) {
		t.Fatal("cause lost in wrapping")
	}
}

func TestWrapErrorNil(t *testing.T) {
	if WrapError(ErrSearch, "op", nil) != nil {
		t.Fatal("wrapping nil must stay nil")
	}
}

func TestEffectiveScorePrefersRerank(t *testing.T) {
	c := Candidate{FusedScore: 0.03, RerankScore: 0.91, Reranked: true}
	if c.EffectiveScore() != 0.91 {
		t.Fatalf("expected rerank score, got %v", c.EffectiveScore())
	}
	c.Reranked = false
	if c.EffectiveScore() != 0.03 {
		t.Fatalf("expected fused score, got %v", c.EffectiveScore())
	}
}

func TestHasLineRange(t *testing.T) {
	cases := []struct {
		start, end int
		want       bool
	}{
		{10, 20, true},
		{10, 10, true},
		{0, 20, false},
		{20, 10, false},
	}
	for _, tc := range cases {
		c := Candidate{StartLine: tc.start, EndLine: tc.end}
		if c.HasLineRange() != tc.want {
			t.Fatalf("HasLineRange(%d, %d) = %v, want %v", tc.start, tc.end, c.HasLineRange(), tc.want)
		}
	}
}

func TestQueryVectorsLaneCount(t *testing.T) {
	var v QueryVectors
	if v.LaneCount() != 0 {
		t.Fatalf("empty vectors must have 0 lanes, got %d", v.LaneCount())
	}
	v.DenseDocs = []float32{1}
	v.Sparse = SparseVector{Indices: []uint32{1}, Values: []float32{1}}
	if v.LaneCount() != 2 {
		t.Fatalf("expected 2 lanes, got %d", v.LaneCount())
	}
}
