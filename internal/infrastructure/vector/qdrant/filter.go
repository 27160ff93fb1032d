package qdrant

import (
	"sort"

	"github.com/avolkov/grounding/internal/core/domain"
)

// translateFilter converts the domain filter into Qdrant must-conditions:
// equality, set membership, and numeric range, joined by implicit AND. The
// same filter is attached to every prefetch lane so fusion never mixes
// filtered and unfiltered ranks. Keys are emitted in sorted order to keep
// request bodies deterministic.
func translateFilter(filter domain.Filter) map[string]any {
	if filter.IsZero() {
		return nil
	}

	var must []map[string]any

	for _, key := range sortedKeys(filter.Equals) {
		must = append(must, map[string]any{
			"key":   key,
			"match": map[string]any{"value": filter.Equals[key]},
		})
	}
	for _, key := range sortedKeys(filter.AnyOf) {
		must = append(must, map[string]any{
			"key":   key,
			"match": map[string]any{"any": filter.AnyOf[key]},
		})
	}
	for _, key := range sortedKeys(filter.Ranges) {
		bound := filter.Ranges[key]
		rangeBody := map[string]any{}
		if bound.GTE != nil {
			rangeBody["gte"] = *bound.GTE
		}
		if bound.LTE != nil {
			rangeBody["lte"] = *bound.LTE
		}
		if bound.GT != nil {
			rangeBody["gt"] = *bound.GT
		}
		if bound.LT != nil {
			rangeBody["lt"] = *bound.LT
		}
		if len(rangeBody) == 0 {
			continue
		}
		must = append(must, map[string]any{
			"key":   key,
			"range": rangeBody,
		})
	}

	if len(must) == 0 {
		return nil
	}
	return map[string]any{"must": must}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
