package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration loaded from environment
// variables. It is immutable after Load() returns.
type Config struct {
	Port             int
	Environment      string
	DatabaseURL      string
	DatabaseMaxConns int

	LLMProvider     string
	LLMBaseURL      string
	LLMAPIKey       string
	LLMModel        string
	LLMTimeout      time.Duration
	LLMMaxRetries   int
	LLMTemperature  float64
	LLMMaxTokens    int

	EmbeddingProvider   string
	EmbeddingBaseURL    string
	EmbeddingAPIKey     string
	EmbeddingModel      string
	EmbeddingTimeout    time.Duration
	EmbeddingMaxRetries int
	EmbeddingDimensions int

	PipelineMaxConcurrentChunks int
	PipelineStageTimeout        time.Duration
	PipelineRetryBackoffBase    float64
	PipelineRetryBackoffMax     time.Duration
	PipelineRetryJitter         bool
	PipelineMaxAttempts         int

	ChunkSize    int
	ChunkOverlap int
	ChunkMinSize int

	SchemaRegistryPath string

	StorageMaxFileSizeMB    int
	StoragePersistPrompts   bool
	StoragePersistResponses bool

	CostPer1KInputTokens     float64
	CostPer1KOutputTokens    float64
	CostPer1KEmbeddingTokens float64

	RedactFields []string

	RedisURL      string
	RedisLockTTL  time.Duration
	RedisCacheTTL time.Duration

	CORSAllowedOrigin  string
	HTTPRequestTimeout time.Duration
}

// Load reads configuration from environment variables. DATABASE_URL is the
// only variable required regardless of environment; everything else has a
// default suitable for local development.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("config.Load: DATABASE_URL is required")
	}

	cfg := &Config{
		Port:             envInt("PORT", 8080),
		Environment:      envStr("ENVIRONMENT", "development"),
		DatabaseURL:      dbURL,
		DatabaseMaxConns: envInt("DATABASE_MAX_CONNS", 25),

		LLMProvider:    envStr("LLM_PROVIDER", "openai"),
		LLMBaseURL:     envStr("LLM_BASE_URL", "https://api.openai.com/v1"),
		LLMAPIKey:      envStr("LLM_API_KEY", ""),
		LLMModel:       envStr("LLM_MODEL", "gpt-4o-mini"),
		LLMTimeout:     envDuration("LLM_TIMEOUT", 30*time.Second),
		LLMMaxRetries:  envInt("LLM_MAX_RETRIES", 3),
		LLMTemperature: envFloat("LLM_TEMPERATURE", 0.0),
		LLMMaxTokens:   envInt("LLM_MAX_TOKENS", 4096),

		EmbeddingProvider:   envStr("EMBEDDING_PROVIDER", "openai"),
		EmbeddingBaseURL:    envStr("EMBEDDING_BASE_URL", "https://api.openai.com/v1"),
		EmbeddingAPIKey:     envStr("EMBEDDING_API_KEY", ""),
		EmbeddingModel:      envStr("EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingTimeout:    envDuration("EMBEDDING_TIMEOUT", 30*time.Second),
		EmbeddingMaxRetries: envInt("EMBEDDING_MAX_RETRIES", 3),
		EmbeddingDimensions: envInt("EMBEDDING_DIMENSIONS", 1536),

		PipelineMaxConcurrentChunks: envInt("PIPELINE_MAX_CONCURRENT_CHUNKS", 10),
		PipelineStageTimeout:        envDuration("PIPELINE_STAGE_TIMEOUT", 3600*time.Second),
		PipelineRetryBackoffBase:    envFloat("PIPELINE_RETRY_BACKOFF_BASE", 2.0),
		PipelineRetryBackoffMax:     envDuration("PIPELINE_RETRY_BACKOFF_MAX", 60*time.Second),
		PipelineRetryJitter:         envBool("PIPELINE_RETRY_JITTER", true),
		PipelineMaxAttempts:         envInt("PIPELINE_MAX_ATTEMPTS", 4),

		ChunkSize:    envInt("CHUNK_SIZE", 1000),
		ChunkOverlap: envInt("CHUNK_OVERLAP", 200),
		ChunkMinSize: envInt("CHUNK_MIN_SIZE", 100),

		SchemaRegistryPath: envStr("SCHEMA_REGISTRY_PATH", "./schemas"),

		StorageMaxFileSizeMB:    envInt("STORAGE_MAX_FILE_SIZE_MB", 100),
		StoragePersistPrompts:   envBool("STORAGE_PERSIST_PROMPTS", false),
		StoragePersistResponses: envBool("STORAGE_PERSIST_RAW_RESPONSES", false),

		CostPer1KInputTokens:     envFloat("COST_PER_1K_INPUT_TOKENS", 0.00015),
		CostPer1KOutputTokens:    envFloat("COST_PER_1K_OUTPUT_TOKENS", 0.0006),
		CostPer1KEmbeddingTokens: envFloat("COST_PER_1K_EMBEDDING_TOKENS", 0.00002),

		RedactFields: envList("REDACT_FIELDS", nil),

		RedisURL:      envStr("REDIS_URL", ""),
		RedisLockTTL:  envDuration("REDIS_LOCK_TTL", 5*time.Minute),
		RedisCacheTTL: envDuration("REDIS_CACHE_TTL", 24*time.Hour),

		CORSAllowedOrigin:  envStr("CORS_ALLOWED_ORIGIN", ""),
		HTTPRequestTimeout: envDuration("HTTP_REQUEST_TIMEOUT", 30*time.Second),
	}

	if cfg.LLMProvider != "" && cfg.LLMAPIKey == "" && cfg.Environment != "development" && cfg.Environment != "test" {
		return nil, fmt.Errorf("config.Load: LLM_API_KEY is required in %s environment", cfg.Environment)
	}

	if cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("config.Load: CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)", cfg.ChunkOverlap, cfg.ChunkSize)
	}

	return cfg, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
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

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
