package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/avolkov/grounding/internal/config"
	"github.com/avolkov/grounding/internal/core/ports"
	"github.com/avolkov/grounding/internal/core/usecase"
	"github.com/avolkov/grounding/internal/infrastructure/embedding/lexical"
	"github.com/avolkov/grounding/internal/infrastructure/embedding/voyage"
	"github.com/avolkov/grounding/internal/infrastructure/queue/nats"
	"github.com/avolkov/grounding/internal/infrastructure/repository/postgres"
	"github.com/avolkov/grounding/internal/infrastructure/resilience"
	"github.com/avolkov/grounding/internal/infrastructure/vector/qdrant"
	"github.com/avolkov/grounding/internal/observability/metrics"
)

type App struct {
	Config   config.Config
	Logger   *slog.Logger
	Searcher ports.EvidenceSearcher
	Metrics  *metrics.SearchMetrics

	closeFn func()
}

// New wires the full pipeline. Postgres and NATS are optional; an empty DSN
// or URL simply disables the audit log or event stream.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	embedder := voyage.New(cfg.Voyage.BaseURL, cfg.Voyage.APIKey, voyage.Options{
		DocsModel:          cfg.Voyage.DocsModel,
		CodeModel:          cfg.Voyage.CodeModel,
		RerankModel:        cfg.Voyage.RerankModel,
		OutputDimension:    cfg.Voyage.OutputDimension,
		RequestsPerMinute:  cfg.Voyage.RequestsPerMinute,
		Timeout:            cfg.Voyage.Timeout,
		ResilienceExecutor: executor,
	})

	sparse := lexical.NewEncoder()

	vectorDB := qdrant.New(cfg.Qdrant.URL, cfg.Qdrant.APIKey, cfg.Qdrant.Collection, qdrant.Options{
		Timeout:            cfg.Qdrant.Timeout,
		ResilienceExecutor: executor,
	})

	searchUC := usecase.NewSearchUseCase(embedder, sparse, vectorDB, embedder, usecase.Settings{
		PrefetchDense:  cfg.Retrieval.PrefetchDense,
		PrefetchSparse: cfg.Retrieval.PrefetchSparse,
		RerankPool:     cfg.Retrieval.RerankPool,
		FinalTopK:      cfg.Retrieval.FinalTopK,
		MinDocs:        cfg.Retrieval.MinDocs,
		MinCode:        cfg.Retrieval.MinCode,
		RRFK:           cfg.Retrieval.RRFK,
		NumVariants:    cfg.Retrieval.NumVariants,
		HighConfidence: cfg.Retrieval.HighConfidence,
	}, logger)

	closers := make([]func(), 0, 2)

	if cfg.Postgres.DSN != "" {
		db, err := postgres.OpenDB(cfg.Postgres.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		repo := postgres.NewQueryLogRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		searchUC.WithQueryLog(repo)
		closers = append(closers, func() { _ = db.Close() })
	}

	if cfg.NATS.URL != "" {
		publisher, err := nats.NewWithOptions(cfg.NATS.URL, cfg.NATS.Subject, nats.Options{
			ResilienceExecutor: executor,
		})
		if err != nil {
			return nil, fmt.Errorf("init event publisher: %w", err)
		}
		searchUC.WithEventPublisher(publisher)
		closers = append(closers, publisher.Close)
	}

	return &App{
		Config:   cfg,
		Logger:   logger,
		Searcher: searchUC,
		Metrics:  metrics.NewSearchMetrics("grounding"),
		closeFn: func() {
			for _, closeFn := range closers {
				closeFn()
			}
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
