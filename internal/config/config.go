package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	GeminiAPIKey          string
	DatabaseURL           string
	TranslationModel      string
	EmbeddingModel        string
	EmbeddingBaseURL      string
	EmbeddingDimensions   int
	SourceLang            string
	TargetLang            string
	ChunkSize             int
	WorkerCount           int
	MaxConcurrentAPICalls int
	SafetyFiltersEnabled  bool
	MemoryEnabled         bool
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found, using environment variables")
	}

	return &Config{
		GeminiAPIKey:          getEnv("GEMINI_API_KEY", ""),
		DatabaseURL:           getEnv("DATABASE_URL", "postgres://localhost:5432/script_translator?sslmode=disable"),
		TranslationModel:      getEnv("TRANSLATION_MODEL", "gemini-2.5-flash"),
		EmbeddingModel:        getEnv("EMBEDDING_MODEL", "text-embedding-004"),
		EmbeddingBaseURL:      getEnv("EMBEDDING_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/openai"),
		EmbeddingDimensions:   getEnvInt("EMBEDDING_DIMENSIONS", 768),
		SourceLang:            getEnv("SOURCE_LANG", "auto"),
		TargetLang:            getEnv("TARGET_LANG", "vi"),
		ChunkSize:             getEnvInt("CHUNK_SIZE", 15),
		WorkerCount:           getEnvInt("WORKER_COUNT", 8),
		MaxConcurrentAPICalls: getEnvInt("MAX_CONCURRENT_API_CALLS", 5),
		SafetyFiltersEnabled:  getEnvBool("SAFETY_FILTERS", true),
		MemoryEnabled:         getEnvBool("TRANSLATION_MEMORY", false),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
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

func getEnvBool(key string, fallback bool) bool {
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
