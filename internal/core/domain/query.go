package domain

import (
	"fmt"
	"strings"
)

// RetrievalMode steers the rerank instruction only; retrieval itself is mode-agnostic.
type RetrievalMode string

const (
	ModeBuild    RetrievalMode = "build"
	ModeDebug    RetrievalMode = "debug"
	ModeExplain  RetrievalMode = "explain"
	ModeRefactor RetrievalMode = "refactor"
)

func ParseRetrievalMode(s string) (RetrievalMode, error) {
	switch mode := RetrievalMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case ModeBuild, ModeDebug, ModeExplain, ModeRefactor:
		return mode, nil
	case "":
		return ModeBuild, nil
	default:
		return "", WrapError(ErrInvalidInput, "parse retrieval mode", fmt.Errorf("unknown mode %q", s))
	}
}

// RangeBound is a numeric range constraint; nil fields are unbounded.
type RangeBound struct {
	GTE *float64 `json:"gte,omitempty"`
	LTE *float64 `json:"lte,omitempty"`
	GT  *float64 `json:"gt,omitempty"`
	LT  *float64 `json:"lt,omitempty"`
}

// Filter is a conjunction of payload predicates applied identically to every
// retrieval lane, so fusion never mixes filtered and unfiltered ranks.
type Filter struct {
	Equals map[string]string     `json:"equals,omitempty"`
	AnyOf  map[string][]string   `json:"any_of,omitempty"`
	Ranges map[string]RangeBound `json:"ranges,omitempty"`
}

func (f Filter) IsZero() bool {
	return len(f.Equals) == 0 && len(f.AnyOf) == 0 && len(f.Ranges) == 0
}

// QueryFlags toggle the optional pipeline stages.
type QueryFlags struct {
	MultiQuery bool `json:"multi_query"`
	Rerank     bool `json:"rerank"`
}

// Query is the immutable per-invocation request. Created once, never mutated.
type Query struct {
	Text        string        `json:"text"`
	Mode        RetrievalMode `json:"mode"`
	Filter      Filter        `json:"filter,omitempty"`
	TopK        int           `json:"top_k"`
	Flags       QueryFlags    `json:"flags"`
	NumVariants int           `json:"num_variants,omitempty"`
}
