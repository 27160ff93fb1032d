package mcpadapter

import (
	"github.com/mark3labs/mcp-go/mcp"
)

func searchTool() mcp.Tool {
	return mcp.Tool{
		Name:        "grounding_search",
		Description: "Retrieve grounded evidence (docs and code) for a natural-language query using hybrid search, multi-query fusion, and cross-encoder reranking",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Natural-language search query",
				},
				"mode": map[string]interface{}{
					"type":        "string",
					"description": "Retrieval mode shaping the rerank instruction",
					"enum":        []string{"build", "debug", "explain", "refactor"},
					"default":     "build",
				},
				"top_k": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of evidence items to return",
					"default":     12,
					"minimum":     1,
					"maximum":     50,
				},
				"multi_query": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, expand the query into phrasing variants and fuse their results",
					"default":     true,
				},
				"rerank": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, rescore the candidate pool with the cross-encoder reranker",
					"default":     true,
				},
				"corpus": map[string]interface{}{
					"type":        "string",
					"description": "Restrict results to a single corpus",
				},
				"repo": map[string]interface{}{
					"type":        "string",
					"description": "Restrict results to a single repository",
				},
			},
			Required: []string{"query"},
		},
	}
}

func searchQuickTool() mcp.Tool {
	return mcp.Tool{
		Name:        "grounding_search_quick",
		Description: "Fast single-variant retrieval without reranking, for latency-sensitive lookups",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Natural-language search query",
				},
				"top_k": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of evidence items to return",
					"default":     5,
					"minimum":     1,
					"maximum":     20,
				},
			},
			Required: []string{"query"},
		},
	}
}

func configShowTool() mcp.Tool {
	return mcp.Tool{
		Name:        "grounding_config_show",
		Description: "Show the effective retrieval configuration with secrets redacted",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
