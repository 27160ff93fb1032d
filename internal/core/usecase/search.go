package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/avolkov/grounding/internal/core/domain"
	"github.com/avolkov/grounding/internal/core/ports"
)

// Settings are the pipeline tunables, constructed explicitly from config.
type Settings struct {
	PrefetchDense  int
	PrefetchSparse int
	RerankPool     int
	FinalTopK      int
	MinDocs        int
	MinCode        int
	RRFK           int
	NumVariants    int
	HighConfidence float64

	EmbedTimeout  time.Duration
	SearchTimeout time.Duration
	RerankTimeout time.Duration
}

func (s Settings) normalize() Settings {
	out := s
	if out.PrefetchDense <= 0 {
		out.PrefetchDense = 60
	}
	if out.PrefetchSparse <= 0 {
		out.PrefetchSparse = 80
	}
	if out.RerankPool <= 0 {
		out.RerankPool = 60
	}
	if out.FinalTopK <= 0 {
		out.FinalTopK = 12
	}
	if out.MinDocs < 0 {
		out.MinDocs = 0
	}
	if out.MinCode < 0 {
		out.MinCode = 0
	}
	if out.RRFK <= 0 {
		out.RRFK = 60
	}
	if out.NumVariants <= 0 {
		out.NumVariants = 3
	}
	if out.HighConfidence <= 0 || out.HighConfidence >= 1 {
		out.HighConfidence = 0.7
	}
	if out.EmbedTimeout <= 0 {
		out.EmbedTimeout = 30 * time.Second
	}
	if out.SearchTimeout <= 0 {
		out.SearchTimeout = 30 * time.Second
	}
	if out.RerankTimeout <= 0 {
		out.RerankTimeout = 45 * time.Second
	}
	return out
}

// SearchUseCase runs the multi-stage retrieval pipeline: normalize, embed,
// hybrid search per variant, fuse, balance, rerank, coverage-gate, assemble.
type SearchUseCase struct {
	dense    ports.DenseEmbedder
	sparse   ports.SparseEmbedder
	searcher ports.HybridSearcher
	reranker ports.Reranker
	queryLog ports.QueryLog
	events   ports.EventPublisher
	settings Settings
	logger   *slog.Logger
}

func NewSearchUseCase(
	dense ports.DenseEmbedder,
	sparse ports.SparseEmbedder,
	searcher ports.HybridSearcher,
	reranker ports.Reranker,
	settings Settings,
	logger *slog.Logger,
) *SearchUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchUseCase{
		dense:    dense,
		sparse:   sparse,
		searcher: searcher,
		reranker: reranker,
		settings: settings.normalize(),
		logger:   logger,
	}
}

// WithQueryLog attaches an optional audit log; failures are logged, not raised.
func (uc *SearchUseCase) WithQueryLog(log ports.QueryLog) *SearchUseCase {
	uc.queryLog = log
	return uc
}

// WithEventPublisher attaches an optional telemetry publisher.
func (uc *SearchUseCase) WithEventPublisher(pub ports.EventPublisher) *SearchUseCase {
	uc.events = pub
	return uc
}

func (uc *SearchUseCase) Search(ctx context.Context, query domain.Query) (*domain.EvidencePack, error) {
	start := time.Now()

	mode, err := domain.ParseRetrievalMode(string(query.Mode))
	if err != nil {
		return nil, err
	}

	clean := NormalizeQuery(query.Text)
	if clean == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search", fmt.Errorf("query text is empty"))
	}

	topK := query.TopK
	if topK <= 0 {
		topK = uc.settings.FinalTopK
	}
	numVariants := query.NumVariants
	if numVariants <= 0 {
		numVariants = uc.settings.NumVariants
	}

	pack := &domain.EvidencePack{
		Query: clean,
		Mode:  mode,
		Coverage: domain.Coverage{
			ByKind:   map[string]int{},
			ByCorpus: map[string]int{},
		},
	}

	stageStart := time.Now()
	variants := []string{clean}
	if query.Flags.MultiQuery {
		variants = expandQuery(clean, numVariants)
		pack.Variants = variants
	}
	pack.Timings.ExpansionMS = msSince(stageStart)

	variantResults, embedMS, searchMS, warnings, fatal := uc.retrieveVariants(ctx, variants, query.Filter)
	pack.Warnings = append(pack.Warnings, warnings...)
	pack.Timings.EmbeddingMS = embedMS
	pack.Timings.SearchMS = searchMS
	if fatal != nil {
		pack.Err = fatal.Error()
		pack.Timings.TotalMS = msSince(start)
		uc.logger.Warn("search_failed", "query", clean, "mode", string(mode), "error", fatal)
		uc.report(ctx, pack, start)
		return pack, nil
	}

	var candidates []domain.Candidate
	if len(variants) > 1 {
		candidates = fuseVariantsRRF(variantResults, uc.settings.RRFK)
	} else {
		candidates = variantResults[0]
	}

	if len(candidates) == 0 {
		pack.Warnings = append(pack.Warnings, "no candidates found")
		pack.Timings.TotalMS = msSince(start)
		uc.report(ctx, pack, start)
		return pack, nil
	}

	stageStart = time.Now()
	pool := balanceCandidates(candidates, uc.settings.RerankPool)
	pack.Timings.BalancingMS = msSince(stageStart)

	stageStart = time.Now()
	if query.Flags.Rerank {
		rerankCtx, cancel := context.WithTimeout(ctx, uc.settings.RerankTimeout)
		reranked, rerankWarnings := rerankCandidates(rerankCtx, uc.reranker, mode, clean, pool)
		cancel()
		pool = reranked
		pack.Warnings = append(pack.Warnings, rerankWarnings...)
		pack.Reranked = len(rerankWarnings) == 0
	}
	pack.Timings.RerankingMS = msSince(stageStart)

	stageStart = time.Now()
	selection, gateWarnings := applyCoverageGate(pool, topK, uc.settings.MinDocs, uc.settings.MinCode)
	pack.Warnings = append(pack.Warnings, gateWarnings...)
	pack.Timings.CoverageMS = msSince(stageStart)

	pack.Items, pack.Coverage = assembleEvidence(selection, uc.settings.HighConfidence)
	pack.Timings.TotalMS = msSince(start)

	uc.logger.Info("search_completed",
		"query", clean,
		"mode", string(mode),
		"variants", len(variants),
		"candidates", len(candidates),
		"items", len(pack.Items),
		"reranked", pack.Reranked,
		"warnings", len(pack.Warnings),
		"duration_ms", pack.Timings.TotalMS,
	)

	uc.report(ctx, pack, start)
	return pack, nil
}

// retrieveVariants runs embed+search for every query variant concurrently.
// results[i] stays empty when variant i degraded; fatal is non-nil only when
// every variant failed.
func (uc *SearchUseCase) retrieveVariants(
	ctx context.Context,
	variants []string,
	filter domain.Filter,
) (results [][]domain.Candidate, embedMS, searchMS float64, warnings []string, fatal error) {
	stageStart := time.Now()
	results = make([][]domain.Candidate, len(variants))
	variantWarnings := make([][]string, len(variants))
	variantErrs := make([]error, len(variants))
	embedDurations := make([]float64, len(variants))

	g := new(errgroup.Group)
	for i, variant := range variants {
		g.Go(func() error {
			candidates, embedDur, warns, err := uc.searchVariant(ctx, variant, filter)
			results[i] = candidates
			variantWarnings[i] = warns
			variantErrs[i] = err
			embedDurations[i] = embedDur
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for i := range variants {
		warnings = append(warnings, variantWarnings[i]...)
		if variantErrs[i] != nil {
			failed++
			if len(variants) > 1 {
				warnings = append(warnings, fmt.Sprintf("query variant %d failed: %v", i+1, variantErrs[i]))
			}
		}
	}
	if failed == len(variants) {
		fatal = errors.Join(variantErrs...)
		if len(variants) == 1 {
			fatal = variantErrs[0]
		} else {
			kind := domain.ErrSearch
			if allEmbeddingErrors(variantErrs) {
				kind = domain.ErrEmbedding
			}
			fatal = domain.WrapError(kind, "all query variants failed", fatal)
		}
	}

	embedMS = embedDurations[0]
	searchMS = msSince(stageStart) - embedMS
	if searchMS < 0 {
		searchMS = 0
	}
	return results, embedMS, searchMS, warnings, fatal
}

// searchVariant embeds the three lanes concurrently and issues one hybrid
// search. A single failed lane degrades to an empty lane with a warning;
// all lanes failing is an embedding error, a rejected search request a
// search error.
func (uc *SearchUseCase) searchVariant(
	ctx context.Context,
	text string,
	filter domain.Filter,
) ([]domain.Candidate, float64, []string, error) {
	embedStart := time.Now()
	var vectors domain.QueryVectors
	laneErrs := make([]error, 3)

	g := new(errgroup.Group)
	g.Go(func() error {
		embedCtx, cancel := context.WithTimeout(ctx, uc.settings.EmbedTimeout)
		defer cancel()
		vec, err := uc.dense.EmbedDense(embedCtx, text, domain.SpaceDenseDocs, domain.EmbedQuery)
		vectors.DenseDocs, laneErrs[0] = vec, err
		return nil
	})
	g.Go(func() error {
		embedCtx, cancel := context.WithTimeout(ctx, uc.settings.EmbedTimeout)
		defer cancel()
		vec, err := uc.dense.EmbedDense(embedCtx, text, domain.SpaceDenseCode, domain.EmbedQuery)
		vectors.DenseCode, laneErrs[1] = vec, err
		return nil
	})
	g.Go(func() error {
		embedCtx, cancel := context.WithTimeout(ctx, uc.settings.EmbedTimeout)
		defer cancel()
		vec, err := uc.sparse.EmbedSparse(embedCtx, text, domain.EmbedQuery)
		vectors.Sparse, laneErrs[2] = vec, err
		return nil
	})
	_ = g.Wait()
	embedMS := msSince(embedStart)

	if vectors.LaneCount() == 0 {
		err := domain.WrapError(domain.ErrEmbedding, "embed query", errors.Join(laneErrs...))
		return nil, embedMS, nil, err
	}

	var warnings []string
	laneNames := []domain.VectorSpace{domain.SpaceDenseDocs, domain.SpaceDenseCode, domain.SpaceSparseLexical}
	for i, laneErr := range laneErrs {
		if laneErr != nil {
			warnings = append(warnings, fmt.Sprintf("embedding lane %s degraded to empty results: %v", laneNames[i], laneErr))
		}
	}

	var lanes []ports.SearchLane
	maxLimit := 0
	if len(vectors.DenseDocs) > 0 {
		lanes = append(lanes, ports.SearchLane{Space: domain.SpaceDenseDocs, Dense: vectors.DenseDocs, Limit: uc.settings.PrefetchDense})
		maxLimit = uc.settings.PrefetchDense
	}
	if len(vectors.DenseCode) > 0 {
		lanes = append(lanes, ports.SearchLane{Space: domain.SpaceDenseCode, Dense: vectors.DenseCode, Limit: uc.settings.PrefetchDense})
		maxLimit = max(maxLimit, uc.settings.PrefetchDense)
	}
	if !vectors.Sparse.IsZero() {
		lanes = append(lanes, ports.SearchLane{Space: domain.SpaceSparseLexical, Sparse: vectors.Sparse, Limit: uc.settings.PrefetchSparse})
		maxLimit = max(maxLimit, uc.settings.PrefetchSparse)
	}

	searchCtx, cancel := context.WithTimeout(ctx, uc.settings.SearchTimeout)
	defer cancel()
	candidates, err := uc.searcher.HybridSearch(searchCtx, lanes, filter, maxLimit*2)
	if err != nil {
		return nil, embedMS, warnings, domain.WrapError(domain.ErrSearch, "hybrid search", err)
	}
	return candidates, embedMS, warnings, nil
}

// report persists the audit record and publishes the telemetry event without
// blocking on the caller's (possibly already canceled) context.
func (uc *SearchUseCase) report(ctx context.Context, pack *domain.EvidencePack, start time.Time) {
	if uc.queryLog == nil && uc.events == nil {
		return
	}

	reportCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	requestID := uuid.NewString()
	if uc.queryLog != nil {
		if err := uc.queryLog.Record(reportCtx, requestID, pack); err != nil {
			uc.logger.Warn("query_log_record_failed", "error", err)
		}
	}
	if uc.events != nil {
		event := domain.SearchEvent{
			ID:         requestID,
			Query:      pack.Query,
			Mode:       pack.Mode,
			ItemCount:  len(pack.Items),
			Reranked:   pack.Reranked,
			Warnings:   len(pack.Warnings),
			DurationMS: msSince(start),
			Failed:     pack.Err != "",
		}
		if err := uc.events.PublishSearchCompleted(reportCtx, event); err != nil {
			uc.logger.Warn("search_event_publish_failed", "error", err)
		}
	}
}

func allEmbeddingErrors(errs []error) bool {
	for _, err := range errs {
		if err != nil && !domain.IsKind(err, domain.ErrEmbedding) {
			return false
		}
	}
	return true
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000.0
}
