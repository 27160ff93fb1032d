package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avolkov/grounding/internal/core/domain"
	"github.com/avolkov/grounding/internal/core/ports"
	"github.com/avolkov/grounding/internal/infrastructure/resilience"
)

// Client issues fused hybrid queries against the Qdrant Query API. Fusion
// (RRF over the prefetch lanes) runs server-side; the client only translates
// lanes, filters, and payloads.
type Client struct {
	baseURL    string
	apiKey     string
	collection string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
}

func New(baseURL, apiKey, collection string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		collection: collection,
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.ResilienceExecutor,
	}
}

type prefetchRequest struct {
	Query  any            `json:"query"`
	Using  string         `json:"using"`
	Limit  int            `json:"limit"`
	Filter map[string]any `json:"filter,omitempty"`
}

type queryRequest struct {
	Prefetch    []prefetchRequest `json:"prefetch"`
	Query       map[string]any    `json:"query"`
	Limit       int               `json:"limit"`
	WithPayload bool              `json:"with_payload"`
}

type scoredPoint struct {
	ID      any            `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

type queryResponse struct {
	Result struct {
		Points []scoredPoint `json:"points"`
	} `json:"result"`
}

func (c *Client) HybridSearch(
	ctx context.Context,
	lanes []ports.SearchLane,
	filter domain.Filter,
	limit int,
) ([]domain.Candidate, error) {
	if len(lanes) == 0 {
		return nil, fmt.Errorf("hybrid search requires at least one lane")
	}
	if limit <= 0 {
		limit = 100
	}

	qdrantFilter := translateFilter(filter)
	prefetch := make([]prefetchRequest, 0, len(lanes))
	for _, lane := range lanes {
		var vector any
		if lane.Sparse.IsZero() {
			vector = lane.Dense
		} else {
			vector = map[string]any{
				"indices": lane.Sparse.Indices,
				"values":  lane.Sparse.Values,
			}
		}
		prefetch = append(prefetch, prefetchRequest{
			Query:  vector,
			Using:  string(lane.Space),
			Limit:  lane.Limit,
			Filter: qdrantFilter,
		})
	}

	reqBody := queryRequest{
		Prefetch:    prefetch,
		Query:       map[string]any{"fusion": "rrf"},
		Limit:       limit,
		WithPayload: true,
	}

	var resp queryResponse
	call := func(callCtx context.Context) error {
		return c.postJSON(callCtx, fmt.Sprintf("/collections/%s/points/query", c.collection), reqBody, &resp)
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "qdrant.query", call, resilience.ClassifyHTTPError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, err
	}

	out := make([]domain.Candidate, 0, len(resp.Result.Points))
	seen := make(map[string]struct{}, len(resp.Result.Points))
	for _, point := range resp.Result.Points {
		cand := candidateFromPoint(point)
		if cand.ID == "" {
			continue
		}
		if _, dup := seen[cand.ID]; dup {
			continue
		}
		seen[cand.ID] = struct{}{}
		out = append(out, cand)
	}
	return out, nil
}

func candidateFromPoint(point scoredPoint) domain.Candidate {
	payload := point.Payload
	ref := stringPayload(payload, "ref")
	if ref == "" {
		ref = stringPayload(payload, "commit")
	}
	return domain.Candidate{
		ID:         fmt.Sprintf("%v", point.ID),
		Kind:       domain.ContentKind(stringPayload(payload, "kind")),
		Corpus:     stringPayload(payload, "corpus"),
		Repo:       stringPayload(payload, "repo"),
		Ref:        ref,
		Path:       stringPayload(payload, "path"),
		Text:       stringPayload(payload, "text"),
		StartLine:  intPayload(payload, "start_line"),
		EndLine:    intPayload(payload, "end_line"),
		ChunkID:    stringPayload(payload, "chunk_id"),
		FusedScore: point.Score,
	}
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal query body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create query request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant query request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &resilience.HTTPStatusError{
			Operation:  "qdrant.query",
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(msg)),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode query response: %w", err)
	}
	return nil
}

func stringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func intPayload(payload map[string]any, key string) int {
	v, ok := payload[key]
	if !ok || v == nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case json.Number:
		i, _ := n.Int64()
		return int(i)
	default:
		return 0
	}
}
