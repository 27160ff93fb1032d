package usecase

// Variant templates keep the expansion balanced: one code-biased phrasing, one
// neutral, one docs-biased, so no content kind dominates the merged candidates.
var variantTemplates = []string{
	"source code implementation: ",
	"implementation pattern: ",
	"documentation guide: ",
}

// expandQuery seeds templated variants from the normalized query. The original
// query is always first; its position is the deterministic tie-break order for
// fusion.
func expandQuery(query string, numVariants int) []string {
	variants := []string{query}
	if numVariants > len(variantTemplates) {
		numVariants = len(variantTemplates)
	}
	for _, tpl := range variantTemplates[:max(numVariants, 0)] {
		variants = append(variants, tpl+query)
	}
	return variants
}
