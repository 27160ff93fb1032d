package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/avolkov/grounding/internal/core/domain"
	"github.com/avolkov/grounding/internal/core/ports"
	"github.com/avolkov/grounding/internal/observability/metrics"
)

type Router struct {
	searcher ports.EvidenceSearcher
	metrics  *metrics.SearchMetrics
	logger   *slog.Logger
	service  string
}

func NewRouter(searcher ports.EvidenceSearcher, m *metrics.SearchMetrics, logger *slog.Logger, service string) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		searcher: searcher,
		metrics:  m,
		logger:   logger,
		service:  service,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/search", rt.search)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = accessLogMiddleware(rt.logger, handler)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type searchRequest struct {
	Query       string        `json:"query"`
	Mode        string        `json:"mode"`
	TopK        int           `json:"top_k"`
	NumVariants int           `json:"num_variants"`
	MultiQuery  *bool         `json:"multi_query"`
	Rerank      *bool         `json:"rerank"`
	Filters     domain.Filter `json:"filters"`
}

func (rt *Router) search(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	mode, err := domain.ParseRetrievalMode(req.Mode)
	if err != nil {
		writeError(w, err)
		return
	}

	// Expansion and reranking default on; the request can switch either off.
	flags := domain.QueryFlags{MultiQuery: true, Rerank: true}
	if req.MultiQuery != nil {
		flags.MultiQuery = *req.MultiQuery
	}
	if req.Rerank != nil {
		flags.Rerank = *req.Rerank
	}

	pack, err := rt.searcher.Search(r.Context(), domain.Query{
		Text:        req.Query,
		Mode:        mode,
		Filter:      req.Filters,
		TopK:        req.TopK,
		NumVariants: req.NumVariants,
		Flags:       flags,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordSearch(rt.service, pack)
	}
	writeJSON(w, http.StatusOK, pack)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
