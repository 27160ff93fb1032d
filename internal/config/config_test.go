package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/avolkov/grounding/internal/core/domain"
)

func TestLoadDefaultsWithAPIKeyFromEnv(t *testing.T) {
	t.Setenv("VOYAGE_API_KEY", "test-key")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Retrieval.FinalTopK != 12 || cfg.Retrieval.PrefetchSparse != 80 {
		t.Fatalf("unexpected retrieval defaults: %+v", cfg.Retrieval)
	}
	if cfg.Voyage.APIKey != "test-key" {
		t.Fatalf("env override not applied: %q", cfg.Voyage.APIKey)
	}
}

func TestLoadFailsWithoutVoyageAPIKey(t *testing.T) {
	t.Setenv("VOYAGE_API_KEY", "")
	_, err := Load("")
	if !domain.IsKind(err, domain.ErrConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestLoadYAMLFileOverridesDefaults(t *testing.T) {
	t.Setenv("VOYAGE_API_KEY", "test-key")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
retrieval:
  final_top_k: 5
  rrf_k: 30
qdrant:
  collection: custom_chunks
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Retrieval.FinalTopK != 5 || cfg.Retrieval.RRFK != 30 {
		t.Fatalf("yaml overrides not applied: %+v", cfg.Retrieval)
	}
	if cfg.Qdrant.Collection != "custom_chunks" {
		t.Fatalf("yaml override not applied: %q", cfg.Qdrant.Collection)
	}
	// Untouched keys keep their defaults.
	if cfg.Retrieval.PrefetchDense != 60 {
		t.Fatalf("default lost after partial yaml: %d", cfg.Retrieval.PrefetchDense)
	}
}

func TestLoadEnvOverridesYAML(t *testing.T) {
	t.Setenv("VOYAGE_API_KEY", "test-key")
	t.Setenv("RETRIEVAL_FINAL_TOP_K", "7")

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("retrieval:\n  final_top_k: 5\n"), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Retrieval.FinalTopK != 7 {
		t.Fatalf("env must win over yaml, got %d", cfg.Retrieval.FinalTopK)
	}
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	t.Setenv("VOYAGE_API_KEY", "test-key")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("missing file must not fail: %v", err)
	}
	if cfg.Qdrant.Collection != "grounding_chunks" {
		t.Fatalf("defaults not applied: %q", cfg.Qdrant.Collection)
	}
}

func TestValidateRejectsBadThreshold(t *testing.T) {
	cfg := Default()
	cfg.Voyage.APIKey = "k"
	cfg.Retrieval.HighConfidence = 1.5
	if err := cfg.Validate(); !domain.IsKind(err, domain.ErrConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestRedactedMasksSecrets(t *testing.T) {
	cfg := Default()
	cfg.Voyage.APIKey = "secret"
	cfg.Qdrant.APIKey = "secret"
	cfg.Postgres.DSN = "postgres://u:p@h/db"

	redacted := cfg.Redacted()
	if redacted.Voyage.APIKey != "***" || redacted.Qdrant.APIKey != "***" || redacted.Postgres.DSN != "***" {
		t.Fatalf("secrets not masked: %+v", redacted)
	}
	if cfg.Voyage.APIKey != "secret" {
		t.Fatal("redaction must not mutate the original")
	}
}
