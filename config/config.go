// Package config loads runtime configuration from the environment via
// godotenv into a plain Config struct.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// VectorBackend names which vector store implementation to wire up.
type VectorBackend string

const (
	VectorBackendChroma   VectorBackend = "chroma"
	VectorBackendQdrant   VectorBackend = "qdrant"
	VectorBackendPinecone VectorBackend = "pinecone"
)

// EmbeddingProvider names which embedding model to wire up.
type EmbeddingProvider string

const (
	EmbeddingProviderOpenAI      EmbeddingProvider = "openai"
	EmbeddingProviderHuggingFace EmbeddingProvider = "huggingface"
)

// Config is the full set of runtime-tunable settings from spec §6.4.
type Config struct {
	UseVisionExtraction      bool
	MaxRefinementIterations  int
	RequireOutlineApproval   bool
	UseLongContext           bool
	EnableCompetitorAnalysis bool

	VectorBackend     VectorBackend
	EmbeddingProvider EmbeddingProvider

	CacheEnabled    bool
	CacheTTLSeconds int

	LLMDefaultProvider string

	NodeTimeoutSeconds    int
	LLMCallTimeoutSeconds int

	CircuitBreakerFailureThreshold int
	CircuitBreakerRecoverySeconds  int

	RedisAddr      string
	PostgresDSN    string
	OpenAIAPIKey   string
	AnthropicAPIKey string
	GoogleAPIKey   string

	VectorStoreAddr string
	VectorStoreAPIKey string
}

// Defaults returns the literal defaults named throughout spec §4-§6.
func Defaults() Config {
	return Config{
		UseVisionExtraction:      false,
		MaxRefinementIterations:  3,
		RequireOutlineApproval:   true,
		UseLongContext:           false,
		EnableCompetitorAnalysis: true,

		VectorBackend:     VectorBackendChroma,
		EmbeddingProvider: EmbeddingProviderOpenAI,

		CacheEnabled:    true,
		CacheTTLSeconds: 900,

		LLMDefaultProvider: "openai",

		NodeTimeoutSeconds:    120,
		LLMCallTimeoutSeconds: 30,

		CircuitBreakerFailureThreshold: 5,
		CircuitBreakerRecoverySeconds:  60,
	}
}

// Load reads a .env file if present (missing is not an error, matching
// godotenv's typical dev-vs-prod usage) then overlays process environment
// variables onto Defaults().
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config: load %s: %w", envFile, err)
		}
	}

	cfg := Defaults()

	cfg.UseVisionExtraction = envBool("USE_VISION_EXTRACTION", cfg.UseVisionExtraction)
	cfg.MaxRefinementIterations = envInt("MAX_REFINEMENT_ITERATIONS", cfg.MaxRefinementIterations)
	cfg.RequireOutlineApproval = envBool("REQUIRE_OUTLINE_APPROVAL", cfg.RequireOutlineApproval)
	cfg.UseLongContext = envBool("USE_LONG_CONTEXT", cfg.UseLongContext)
	cfg.EnableCompetitorAnalysis = envBool("ENABLE_COMPETITOR_ANALYSIS", cfg.EnableCompetitorAnalysis)

	cfg.VectorBackend = VectorBackend(envString("VECTOR_BACKEND", string(cfg.VectorBackend)))
	cfg.EmbeddingProvider = EmbeddingProvider(envString("EMBEDDING_PROVIDER", string(cfg.EmbeddingProvider)))

	cfg.CacheEnabled = envBool("CACHE_ENABLED", cfg.CacheEnabled)
	cfg.CacheTTLSeconds = envInt("CACHE_TTL_SECONDS", cfg.CacheTTLSeconds)

	cfg.LLMDefaultProvider = envString("LLM_DEFAULT_PROVIDER", cfg.LLMDefaultProvider)

	cfg.NodeTimeoutSeconds = envInt("NODE_TIMEOUT_SECONDS", cfg.NodeTimeoutSeconds)
	cfg.LLMCallTimeoutSeconds = envInt("LLM_CALL_TIMEOUT_SECONDS", cfg.LLMCallTimeoutSeconds)

	cfg.CircuitBreakerFailureThreshold = envInt("CIRCUIT_BREAKER_FAILURE_THRESHOLD", cfg.CircuitBreakerFailureThreshold)
	cfg.CircuitBreakerRecoverySeconds = envInt("CIRCUIT_BREAKER_RECOVERY_SECONDS", cfg.CircuitBreakerRecoverySeconds)

	cfg.RedisAddr = envString("REDIS_ADDR", "localhost:6379")
	cfg.PostgresDSN = envString("POSTGRES_DSN", "")
	cfg.OpenAIAPIKey = envString("OPENAI_API_KEY", "")
	cfg.AnthropicAPIKey = envString("ANTHROPIC_API_KEY", "")
	cfg.GoogleAPIKey = envString("GOOGLE_API_KEY", "")

	cfg.VectorStoreAddr = envString("VECTOR_STORE_ADDR", "")
	cfg.VectorStoreAPIKey = envString("VECTOR_STORE_API_KEY", "")

	return cfg, nil
}

func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func envInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return parsed
}
