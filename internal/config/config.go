package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/avolkov/grounding/internal/core/domain"
)

type ServerConfig struct {
	APIPort  string `yaml:"api_port"`
	LogLevel string `yaml:"log_level"`
}

type QdrantConfig struct {
	URL        string        `yaml:"url"`
	APIKey     string        `yaml:"api_key"`
	Collection string        `yaml:"collection"`
	Timeout    time.Duration `yaml:"timeout"`
}

type VoyageConfig struct {
	BaseURL           string        `yaml:"base_url"`
	APIKey            string        `yaml:"api_key"`
	DocsModel         string        `yaml:"docs_model"`
	CodeModel         string        `yaml:"code_model"`
	RerankModel       string        `yaml:"rerank_model"`
	OutputDimension   int           `yaml:"output_dimension"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	Timeout           time.Duration `yaml:"timeout"`
}

type RetrievalConfig struct {
	PrefetchDense  int `yaml:"prefetch_limit_dense"`
	PrefetchSparse int `yaml:"prefetch_limit_sparse"`
	RerankPool     int `yaml:"rerank_pool"`
	FinalTopK      int `yaml:"final_top_k"`
	MinDocs        int `yaml:"min_docs"`
	MinCode        int `yaml:"min_code"`
	RRFK           int `yaml:"rrf_k"`
	NumVariants    int `yaml:"num_variants"`

	// HighConfidence is calibrated against one reranker model; recalibrate
	// when the rerank model changes.
	HighConfidence float64 `yaml:"high_confidence"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// Config is the explicit, immutable settings value passed into pipeline
// construction. There is no process-wide cached instance.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Qdrant    QdrantConfig    `yaml:"qdrant"`
	Voyage    VoyageConfig    `yaml:"voyage"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	NATS      NATSConfig      `yaml:"nats"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			APIPort:  "8080",
			LogLevel: "info",
		},
		Qdrant: QdrantConfig{
			URL:        "http://localhost:6333",
			Collection: "grounding_chunks",
			Timeout:    30 * time.Second,
		},
		Voyage: VoyageConfig{
			BaseURL:           "https://api.voyageai.com/v1",
			DocsModel:         "voyage-context-3",
			CodeModel:         "voyage-code-3",
			RerankModel:       "rerank-2.5",
			OutputDimension:   2048,
			RequestsPerMinute: 120,
			Timeout:           60 * time.Second,
		},
		Retrieval: RetrievalConfig{
			PrefetchDense:  60,
			PrefetchSparse: 80,
			RerankPool:     60,
			FinalTopK:      12,
			MinDocs:        3,
			MinCode:        3,
			RRFK:           60,
			NumVariants:    3,
			HighConfidence: 0.7,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if any),
// then environment variable overrides, then validation.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return Config{}, domain.WrapError(domain.ErrConfig, "read config file", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, domain.WrapError(domain.ErrConfig, "parse config file", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.APIPort = envString("API_PORT", c.Server.APIPort)
	c.Server.LogLevel = envString("LOG_LEVEL", c.Server.LogLevel)

	c.Qdrant.URL = envString("QDRANT_URL", c.Qdrant.URL)
	c.Qdrant.APIKey = envString("QDRANT_API_KEY", c.Qdrant.APIKey)
	c.Qdrant.Collection = envString("QDRANT_COLLECTION", c.Qdrant.Collection)

	c.Voyage.BaseURL = envString("VOYAGE_BASE_URL", c.Voyage.BaseURL)
	c.Voyage.APIKey = envString("VOYAGE_API_KEY", c.Voyage.APIKey)
	c.Voyage.DocsModel = envString("VOYAGE_DOCS_MODEL", c.Voyage.DocsModel)
	c.Voyage.CodeModel = envString("VOYAGE_CODE_MODEL", c.Voyage.CodeModel)
	c.Voyage.RerankModel = envString("VOYAGE_RERANK_MODEL", c.Voyage.RerankModel)

	c.Retrieval.PrefetchDense = envInt("RETRIEVAL_PREFETCH_DENSE", c.Retrieval.PrefetchDense)
	c.Retrieval.PrefetchSparse = envInt("RETRIEVAL_PREFETCH_SPARSE", c.Retrieval.PrefetchSparse)
	c.Retrieval.RerankPool = envInt("RETRIEVAL_RERANK_POOL", c.Retrieval.RerankPool)
	c.Retrieval.FinalTopK = envInt("RETRIEVAL_FINAL_TOP_K", c.Retrieval.FinalTopK)
	c.Retrieval.MinDocs = envInt("RETRIEVAL_MIN_DOCS", c.Retrieval.MinDocs)
	c.Retrieval.MinCode = envInt("RETRIEVAL_MIN_CODE", c.Retrieval.MinCode)
	c.Retrieval.RRFK = envInt("RETRIEVAL_RRF_K", c.Retrieval.RRFK)
	c.Retrieval.NumVariants = envInt("RETRIEVAL_NUM_VARIANTS", c.Retrieval.NumVariants)

	c.Postgres.DSN = envString("POSTGRES_DSN", c.Postgres.DSN)

	c.NATS.URL = envString("NATS_URL", c.NATS.URL)
	c.NATS.Subject = envString("NATS_SUBJECT", c.NATS.Subject)
}

// Validate reports configuration problems before any query executes.
func (c Config) Validate() error {
	if c.Qdrant.URL == "" {
		return domain.WrapError(domain.ErrConfig, "validate", fmt.Errorf("qdrant url is required"))
	}
	if c.Qdrant.Collection == "" {
		return domain.WrapError(domain.ErrConfig, "validate", fmt.Errorf("qdrant collection is required"))
	}
	if c.Voyage.APIKey == "" {
		return domain.WrapError(domain.ErrConfig, "validate", fmt.Errorf("voyage api key is required"))
	}
	if c.Retrieval.PrefetchDense <= 0 || c.Retrieval.PrefetchSparse <= 0 {
		return domain.WrapError(domain.ErrConfig, "validate", fmt.Errorf("prefetch limits must be positive"))
	}
	if c.Retrieval.FinalTopK <= 0 || c.Retrieval.RerankPool <= 0 {
		return domain.WrapError(domain.ErrConfig, "validate", fmt.Errorf("result limits must be positive"))
	}
	if c.Retrieval.MinDocs < 0 || c.Retrieval.MinCode < 0 {
		return domain.WrapError(domain.ErrConfig, "validate", fmt.Errorf("coverage minimums must not be negative"))
	}
	if c.Retrieval.RRFK <= 0 {
		return domain.WrapError(domain.ErrConfig, "validate", fmt.Errorf("rrf k must be positive"))
	}
	if c.Retrieval.HighConfidence <= 0 || c.Retrieval.HighConfidence >= 1 {
		return domain.WrapError(domain.ErrConfig, "validate", fmt.Errorf("high confidence threshold must be in (0, 1)"))
	}
	return nil
}

// Redacted returns a copy safe for logging and the config-show tool.
func (c Config) Redacted() Config {
	out := c
	if out.Qdrant.APIKey != "" {
		out.Qdrant.APIKey = "***"
	}
	if out.Voyage.APIKey != "" {
		out.Voyage.APIKey = "***"
	}
	if out.Postgres.DSN != "" {
		out.Postgres.DSN = "***"
	}
	return out
}

func envString(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
