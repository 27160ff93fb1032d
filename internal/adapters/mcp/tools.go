package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/avolkov/grounding/internal/core/domain"
)

func (s *Server) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid arguments")
	}

	queryText, ok := args["query"].(string)
	if !ok || queryText == "" {
		return nil, fmt.Errorf("query parameter is required")
	}

	mode, err := domain.ParseRetrievalMode(getStringDefault(args, "mode", ""))
	if err != nil {
		return nil, err
	}

	filter := domain.Filter{}
	equals := map[string]string{}
	if corpus := getStringDefault(args, "corpus", ""); corpus != "" {
		equals["corpus"] = corpus
	}
	if repo := getStringDefault(args, "repo", ""); repo != "" {
		equals["repo"] = repo
	}
	if len(equals) > 0 {
		filter.Equals = equals
	}

	pack, err := s.searcher.Search(ctx, domain.Query{
		Text:   queryText,
		Mode:   mode,
		Filter: filter,
		TopK:   getIntDefault(args, "top_k", 0),
		Flags: domain.QueryFlags{
			MultiQuery: getBoolDefault(args, "multi_query", true),
			Rerank:     getBoolDefault(args, "rerank", true),
		},
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("mcp_search",
		"query", queryText,
		"mode", string(pack.Mode),
		"items", len(pack.Items),
		"reranked", pack.Reranked,
	)
	return mcp.NewToolResultText(formatJSON(pack)), nil
}

func (s *Server) handleSearchQuick(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid arguments")
	}

	queryText, ok := args["query"].(string)
	if !ok || queryText == "" {
		return nil, fmt.Errorf("query parameter is required")
	}

	pack, err := s.searcher.Search(ctx, domain.Query{
		Text: queryText,
		Mode: domain.ModeBuild,
		TopK: getIntDefault(args, "top_k", 5),
		Flags: domain.QueryFlags{
			MultiQuery: false,
			Rerank:     false,
		},
	})
	if err != nil {
		return nil, err
	}

	return mcp.NewToolResultText(formatJSON(pack)), nil
}

func (s *Server) handleConfigShow(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(formatJSON(s.cfg.Redacted())), nil
}

func formatJSON(data any) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

func getStringDefault(args map[string]interface{}, key, defaultValue string) string {
	if val, ok := args[key].(string); ok && val != "" {
		return val
	}
	return defaultValue
}

func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	switch val := args[key].(type) {
	case float64:
		return int(val)
	case int:
		return val
	default:
		return defaultValue
	}
}

func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}
