package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/avolkov/grounding/internal/core/domain"
	"github.com/avolkov/grounding/internal/core/ports"
)

type fakeDense struct {
	err error
	// failSpace makes only one lane fail when set.
	failSpace domain.VectorSpace
}

func (f *fakeDense) EmbedDense(_ context.Context, _ string, space domain.VectorSpace, mode domain.EmbeddingMode) ([]float32, error) {
	if mode != domain.EmbedQuery {
		return nil, fmt.Errorf("unexpected embedding mode %q", mode)
	}
	if f.err != nil && (f.failSpace == "" || f.failSpace == space) {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type fakeSparse struct {
	err error
}

func (f *fakeSparse) EmbedSparse(_ context.Context, _ string, _ domain.EmbeddingMode) (domain.SparseVector, error) {
	if f.err != nil {
		return domain.SparseVector{}, f.err
	}
	return domain.SparseVector{Indices: []uint32{1, 2}, Values: []float32{0.5, 0.5}}, nil
}

type fakeSearcher struct {
	mu      sync.Mutex
	calls   int
	batches [][]domain.Candidate
	err     error
}

func (f *fakeSearcher) HybridSearch(_ context.Context, lanes []ports.SearchLane, _ domain.Filter, _ int) ([]domain.Candidate, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(lanes) == 0 {
		return nil, errors.New("no lanes")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	batch := f.batches[f.calls%len(f.batches)]
	f.calls++
	return batch, nil
}

type recordingLog struct {
	mu    sync.Mutex
	packs []*domain.EvidencePack
}

func (r *recordingLog) Record(_ context.Context, _ string, pack *domain.EvidencePack) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.packs = append(r.packs, pack)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.SearchEvent
}

func (r *recordingPublisher) PublishSearchCompleted(_ context.Context, event domain.SearchEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func candidateBatch(prefix string, kind domain.ContentKind, n int) []domain.Candidate {
	out := make([]domain.Candidate, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.Candidate{
			ID:      fmt.Sprintf("%s-%d", prefix, i),
			Kind:    kind,
			Corpus:  "corpus",
			Repo:    "repo",
			Ref:     "abcdef1234",
			Path:    fmt.Sprintf("%s/%d", prefix, i),
			ChunkID: fmt.Sprintf("chunk-%s-%d", prefix, i),
			Text:    "text",
		})
	}
	return out
}

type ascendingReranker struct{}

func (ascendingReranker) Rerank(_ context.Context, _ string, documents []string, topK int) ([]ports.RerankResult, error) {
	results := make([]ports.RerankResult, 0, topK)
	for i := 0; i < len(documents) && i < topK; i++ {
		results = append(results, ports.RerankResult{Index: i, Score: 0.9 - float64(i)*0.01})
	}
	return results, nil
}

func newTestUseCase(searcher ports.HybridSearcher, reranker ports.Reranker) *SearchUseCase {
	return NewSearchUseCase(&fakeDense{}, &fakeSparse{}, searcher, reranker, Settings{}, nil)
}

func TestSearchRejectsInvalidMode(t *testing.T) {
	uc := newTestUseCase(&fakeSearcher{batches: [][]domain.Candidate{nil}}, ascendingReranker{})
	_, err := uc.Search(context.Background(), domain.Query{Text: "q", Mode: "banana"})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	uc := newTestUseCase(&fakeSearcher{batches: [][]domain.Candidate{nil}}, ascendingReranker{})
	_, err := uc.Search(context.Background(), domain.Query{Text: "   \t "})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
}

func TestSearchMultiQueryFusesAndDeduplicates(t *testing.T) {
	// Each variant search returns 40 docs and 40 code candidates with a shared
	// overlap block so fusion has duplicates to merge.
	shared := candidateBatch("shared", domain.KindDoc, 5)
	batchA := append(append([]domain.Candidate{}, shared...), candidateBatch("a", domain.KindCode, 40)...)
	batchB := append(append([]domain.Candidate{}, shared...), candidateBatch("b", domain.KindDoc, 40)...)

	searcher := &fakeSearcher{batches: [][]domain.Candidate{batchA, batchB}}
	uc := newTestUseCase(searcher, ascendingReranker{})

	pack, err := uc.Search(context.Background(), domain.Query{
		Text:  "how to fuse",
		Flags: domain.QueryFlags{MultiQuery: true, Rerank: true},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pack.Err != "" {
		t.Fatalf("unexpected pack error: %s", pack.Err)
	}
	if len(pack.Variants) != 4 {
		t.Fatalf("expected 4 variants recorded, got %d", len(pack.Variants))
	}
	if len(pack.Items) != 12 {
		t.Fatalf("expected 12 items, got %d", len(pack.Items))
	}

	seen := make(map[string]struct{})
	for _, item := range pack.Items {
		if _, dup := seen[item.ChunkID]; dup {
			t.Fatalf("duplicate chunk %s in final items", item.ChunkID)
		}
		seen[item.ChunkID] = struct{}{}
	}
	if !pack.Reranked {
		t.Fatal("expected reranked pack")
	}
}

func TestSearchSharedCandidatesOutrankSingleListOnes(t *testing.T) {
	// A candidate appearing in every variant list accumulates more RRF mass
	// than one appearing once at the same rank.
	shared := domain.Candidate{ID: "everywhere", Kind: domain.KindDoc, ChunkID: "everywhere"}
	batches := [][]domain.Candidate{
		{shared, {ID: "only-a", Kind: domain.KindDoc, ChunkID: "only-a"}},
		{shared, {ID: "only-b", Kind: domain.KindDoc, ChunkID: "only-b"}},
		{shared, {ID: "only-c", Kind: domain.KindDoc, ChunkID: "only-c"}},
		{shared, {ID: "only-d", Kind: domain.KindDoc, ChunkID: "only-d"}},
	}
	searcher := &fakeSearcher{batches: batches}
	uc := newTestUseCase(searcher, ascendingReranker{})

	pack, err := uc.Search(context.Background(), domain.Query{
		Text:  "q",
		Flags: domain.QueryFlags{MultiQuery: true},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pack.Items) == 0 || pack.Items[0].ChunkID != "everywhere" {
		t.Fatalf("expected shared candidate ranked first, got %+v", pack.Items)
	}
}

func TestSearchRerankerFailureDegradesToFusedOrder(t *testing.T) {
	batch := append(candidateBatch("doc", domain.KindDoc, 6), candidateBatch("code", domain.KindCode, 6)...)
	searcher := &fakeSearcher{batches: [][]domain.Candidate{batch}}
	uc := NewSearchUseCase(&fakeDense{}, &fakeSparse{}, searcher, &stubReranker{err: errors.New("503")}, Settings{}, nil)

	pack, err := uc.Search(context.Background(), domain.Query{
		Text:  "q",
		Flags: domain.QueryFlags{Rerank: true},
	})
	if err != nil {
		t.Fatalf("reranker failure must not fail the query: %v", err)
	}
	if pack.Err != "" {
		t.Fatalf("reranker failure must not be fatal: %s", pack.Err)
	}
	if pack.Reranked {
		t.Fatal("pack must not be marked reranked after fallback")
	}
	found := false
	for _, w := range pack.Warnings {
		if strings.Contains(w, "falling back to fused ordering") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected fallback warning, got %v", pack.Warnings)
	}
	for _, item := range pack.Items {
		if item.Confidence != domain.ConfidenceUnscored {
			t.Fatalf("expected unscored confidence after fallback, got %s", item.Confidence)
		}
	}
}

func TestSearchCoverageShortfallWarning(t *testing.T) {
	batch := append(candidateBatch("doc", domain.KindDoc, 10), candidateBatch("code", domain.KindCode, 2)...)
	searcher := &fakeSearcher{batches: [][]domain.Candidate{batch}}
	uc := newTestUseCase(searcher, ascendingReranker{})

	pack, err := uc.Search(context.Background(), domain.Query{Text: "q", Flags: domain.QueryFlags{Rerank: true}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	code := 0
	for _, item := range pack.Items {
		if item.Kind == domain.KindCode {
			code++
		}
	}
	if code != 2 {
		t.Fatalf("expected both code candidates selected, got %d", code)
	}
	found := false
	for _, w := range pack.Warnings {
		if strings.Contains(w, "code=2 (wanted 3)") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected coverage shortfall warning, got %v", pack.Warnings)
	}
}

func TestSearchAllVariantsFailedSetsPackError(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("connection refused")}
	uc := newTestUseCase(searcher, ascendingReranker{})

	pack, err := uc.Search(context.Background(), domain.Query{
		Text:  "q",
		Flags: domain.QueryFlags{MultiQuery: true},
	})
	if err != nil {
		t.Fatalf("fatal collaborator failure must be carried on the pack, got error %v", err)
	}
	if pack.Err == "" {
		t.Fatal("expected pack error")
	}
	if len(pack.Items) != 0 {
		t.Fatalf("expected no items on failed pack, got %d", len(pack.Items))
	}
}

func TestSearchEmbeddingLaneFailureDegrades(t *testing.T) {
	dense := &fakeDense{err: errors.New("timeout"), failSpace: domain.SpaceDenseCode}
	batch := candidateBatch("doc", domain.KindDoc, 4)
	searcher := &fakeSearcher{batches: [][]domain.Candidate{batch}}
	uc := NewSearchUseCase(dense, &fakeSparse{}, searcher, ascendingReranker{}, Settings{}, nil)

	pack, err := uc.Search(context.Background(), domain.Query{Text: "q"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pack.Err != "" {
		t.Fatalf("single lane failure must not be fatal: %s", pack.Err)
	}
	found := false
	for _, w := range pack.Warnings {
		if strings.Contains(w, "dense_code degraded to empty results") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected lane degradation warning, got %v", pack.Warnings)
	}
}

func TestSearchAllEmbeddingLanesFailedIsFatal(t *testing.T) {
	dense := &fakeDense{err: errors.New("unreachable")}
	sparse := &fakeSparse{err: errors.New("unreachable")}
	searcher := &fakeSearcher{batches: [][]domain.Candidate{nil}}
	uc := NewSearchUseCase(dense, sparse, searcher, ascendingReranker{}, Settings{}, nil)

	pack, err := uc.Search(context.Background(), domain.Query{Text: "q"})
	if err != nil {
		t.Fatalf("fatal failure must be carried on the pack, got error %v", err)
	}
	if pack.Err == "" {
		t.Fatal("expected pack error when every lane fails")
	}
}

func TestSearchEmptyResultsWarnsNotFails(t *testing.T) {
	searcher := &fakeSearcher{batches: [][]domain.Candidate{nil}}
	uc := newTestUseCase(searcher, ascendingReranker{})

	pack, err := uc.Search(context.Background(), domain.Query{Text: "q"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pack.Err != "" {
		t.Fatalf("empty results must not be fatal: %s", pack.Err)
	}
	found := false
	for _, w := range pack.Warnings {
		if w == "no candidates found" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected no-candidates warning, got %v", pack.Warnings)
	}
}

func TestSearchReportsToLogAndPublisher(t *testing.T) {
	batch := candidateBatch("doc", domain.KindDoc, 3)
	searcher := &fakeSearcher{batches: [][]domain.Candidate{batch}}
	auditLog := &recordingLog{}
	publisher := &recordingPublisher{}
	uc := newTestUseCase(searcher, ascendingReranker{}).
		WithQueryLog(auditLog).
		WithEventPublisher(publisher)

	if _, err := uc.Search(context.Background(), domain.Query{Text: "q"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(auditLog.packs) != 1 {
		t.Fatalf("expected 1 audit record, got %d", len(auditLog.packs))
	}
	if len(publisher.events) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(publisher.events))
	}
	event := publisher.events[0]
	if event.ID == "" || event.Query != "q" || event.Failed {
		t.Fatalf("unexpected event: %+v", event)
	}
}

func TestSearchTimingsPopulated(t *testing.T) {
	batch := candidateBatch("doc", domain.KindDoc, 3)
	searcher := &fakeSearcher{batches: [][]domain.Candidate{batch}}
	uc := newTestUseCase(searcher, ascendingReranker{})

	pack, err := uc.Search(context.Background(), domain.Query{Text: "q", Flags: domain.QueryFlags{Rerank: true}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pack.Timings.TotalMS <= 0 {
		t.Fatalf("expected positive total duration, got %v", pack.Timings.TotalMS)
	}
	if pack.Timings.TotalMS < pack.Timings.EmbeddingMS {
		t.Fatalf("total %v smaller than embedding stage %v", pack.Timings.TotalMS, pack.Timings.EmbeddingMS)
	}
}
