package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/avolkov/grounding/internal/core/domain"
)

// QueryLogRepository persists one audit row per completed search so querying
// behavior can be inspected after the fact.
type QueryLogRepository struct {
	db *sql.DB
}

func NewQueryLogRepository(db *sql.DB) *QueryLogRepository {
	return &QueryLogRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *QueryLogRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across concurrent startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS search_queries (
	request_id TEXT PRIMARY KEY,
	query TEXT NOT NULL,
	mode TEXT NOT NULL,
	item_count INTEGER NOT NULL,
	reranked BOOLEAN NOT NULL,
	failed BOOLEAN NOT NULL,
	warnings JSONB NOT NULL DEFAULT '[]'::jsonb,
	timings JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_search_queries_created_at ON search_queries(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_search_queries_mode ON search_queries(mode);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *QueryLogRepository) Record(ctx context.Context, requestID string, pack *domain.EvidencePack) error {
	warningsJSON, err := json.Marshal(warningsOrEmpty(pack.Warnings))
	if err != nil {
		return fmt.Errorf("marshal warnings: %w", err)
	}
	timingsJSON, err := json.Marshal(pack.Timings)
	if err != nil {
		return fmt.Errorf("marshal timings: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO search_queries (
	request_id, query, mode, item_count, reranked, failed, warnings, timings, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (request_id) DO NOTHING`,
		requestID,
		pack.Query,
		string(pack.Mode),
		len(pack.Items),
		pack.Reranked,
		pack.Err != "",
		warningsJSON,
		timingsJSON,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert search query: %w", err)
	}
	return nil
}

func warningsOrEmpty(warnings []string) []string {
	if warnings == nil {
		return []string{}
	}
	return warnings
}
