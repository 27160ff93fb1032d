package voyage

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/avolkov/grounding/internal/core/domain"
	"github.com/avolkov/grounding/internal/core/ports"
	"github.com/avolkov/grounding/internal/infrastructure/resilience"
)

// Client talks to the Voyage AI embeddings and rerank endpoints. The docs
// model requires the contextualized endpoint; the code model uses the plain
// one. Query and document input types are never interchanged.
type Client struct {
	baseURL     string
	apiKey      string
	docsModel   string
	codeModel   string
	rerankModel string
	outputDim   int
	httpClient  *http.Client
	limiter     *rate.Limiter
	executor    *resilience.Executor
}

type Options struct {
	DocsModel          string
	CodeModel          string
	RerankModel        string
	OutputDimension    int
	RequestsPerMinute  int
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
}

func New(baseURL, apiKey string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	rpm := options.RequestsPerMinute
	if rpm <= 0 {
		rpm = 120
	}
	docsModel := options.DocsModel
	if docsModel == "" {
		docsModel = "voyage-context-3"
	}
	codeModel := options.CodeModel
	if codeModel == "" {
		codeModel = "voyage-code-3"
	}
	rerankModel := options.RerankModel
	if rerankModel == "" {
		rerankModel = "rerank-2.5"
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		docsModel:   docsModel,
		codeModel:   codeModel,
		rerankModel: rerankModel,
		outputDim:   options.OutputDimension,
		httpClient:  &http.Client{Timeout: timeout},
		limiter:     rate.NewLimiter(rate.Limit(float64(rpm)/60.0), rpm),
		executor:    options.ResilienceExecutor,
	}
}

func (c *Client) EmbedDense(
	ctx context.Context,
	text string,
	space domain.VectorSpace,
	mode domain.EmbeddingMode,
) ([]float32, error) {
	switch space {
	case domain.SpaceDenseDocs:
		return c.embedContextualized(ctx, text, mode)
	case domain.SpaceDenseCode:
		return c.embedPlain(ctx, text, mode)
	default:
		return nil, fmt.Errorf("voyage: no dense model for space %q", space)
	}
}

// embedContextualized drives the contextualized endpoint used by the docs
// model; a query travels as a single-chunk document.
func (c *Client) embedContextualized(ctx context.Context, text string, mode domain.EmbeddingMode) ([]float32, error) {
	request := map[string]any{
		"inputs":     [][]string{{text}},
		"model":      c.docsModel,
		"input_type": string(mode),
	}
	if c.outputDim > 0 {
		request["output_dimension"] = c.outputDim
	}

	var response struct {
		Results []struct {
			Data []struct {
				Embedding []float32 `json:"embedding"`
			} `json:"data"`
		} `json:"results"`
	}
	if err := c.call(ctx, "voyage.embed_docs", "/contextualizedembeddings", request, &response); err != nil {
		return nil, err
	}
	if len(response.Results) == 0 || len(response.Results[0].Data) == 0 {
		return nil, fmt.Errorf("voyage embed_docs: empty embedding result")
	}
	return response.Results[0].Data[0].Embedding, nil
}

func (c *Client) embedPlain(ctx context.Context, text string, mode domain.EmbeddingMode) ([]float32, error) {
	request := map[string]any{
		"input":      []string{text},
		"model":      c.codeModel,
		"input_type": string(mode),
	}
	if c.outputDim > 0 {
		request["output_dimension"] = c.outputDim
	}

	var response struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := c.call(ctx, "voyage.embed_code", "/embeddings", request, &response); err != nil {
		return nil, err
	}
	if len(response.Data) == 0 {
		return nil, fmt.Errorf("voyage embed_code: empty embedding result")
	}
	return response.Data[0].Embedding, nil
}

func (c *Client) Rerank(
	ctx context.Context,
	query string,
	documents []string,
	topK int,
) ([]ports.RerankResult, error) {
	if len(documents) == 0 {
		return nil, nil
	}
	if topK <= 0 || topK > len(documents) {
		topK = len(documents)
	}

	request := map[string]any{
		"query":     query,
		"documents": documents,
		"model":     c.rerankModel,
		"top_k":     topK,
	}

	var response struct {
		Data []struct {
			Index          int     `json:"index"`
			RelevanceScore float64 `json:"relevance_score"`
		} `json:"data"`
	}
	if err := c.call(ctx, "voyage.rerank", "/rerank", request, &response); err != nil {
		return nil, domain.WrapError(domain.ErrRerank, "voyage rerank", err)
	}

	out := make([]ports.RerankResult, 0, len(response.Data))
	for _, item := range response.Data {
		out = append(out, ports.RerankResult{Index: item.Index, Score: item.RelevanceScore})
	}
	return out, nil
}

func (c *Client) call(ctx context.Context, operation, path string, payload, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s rate limit wait: %w", operation, err)
	}

	fn := func(callCtx context.Context) error {
		return c.postJSON(callCtx, operation, path, payload, out)
	}
	if c.executor != nil {
		return c.executor.Execute(ctx, operation, fn, resilience.ClassifyHTTPError)
	}
	return fn(ctx)
}
