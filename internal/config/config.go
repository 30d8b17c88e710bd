package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Ai       AIConfig
	Chat     ChatConfig
}

type AppConfig struct {
	Environment string
	LogFilePath string
	NatsURL     string
}

type DatabaseConfig struct {
	Connection string
}

type AIConfig struct {
	LLMProvider       string // "openai" or "ollama"
	LLMModel          string // e.g. "gpt-4o", "llama3"
	LLMBaseURL        string
	APIKey            string
	EmbeddingProvider string // "openai" or "ollama"
	EmbeddingModel    string
	OllamaBaseURL     string
}

// ChatConfig holds the conversation engine knobs
type ChatConfig struct {
	SessionTimeout    time.Duration
	MemoryWindow      int // exchanges remembered per session
	RateLimitRequests int
	RateLimitWindow   time.Duration
	SweepInterval     time.Duration
	NumQueries        int
	RRFRankConstant   int
	TopKDocuments     int
	MatchThreshold    float64
	DocumentRegistry  string
	ProviderTimeout   time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Environment: getEnv("GO_ENV", "development"),
			LogFilePath: getEnv("LOG_FILE_PATH", "app.log.csv"),
			NatsURL:     getEnv("NATS_URL", "nats://localhost:4222"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Ai: AIConfig{
			LLMProvider:       getEnv("LLM_PROVIDER", "openai"),
			LLMModel:          getEnv("LLM_MODEL", "gpt-4o"),
			LLMBaseURL:        getEnv("LLM_BASE_URL", ""),
			APIKey:            getEnv("OPENAI_API_KEY", ""),
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "openai"),
			EmbeddingModel:    getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
		},
		Chat: ChatConfig{
			SessionTimeout:    getEnvAsDuration("SESSION_TIMEOUT", 30*time.Minute),
			MemoryWindow:      getEnvAsInt("MEMORY_WINDOW", 10),
			RateLimitRequests: getEnvAsInt("RATE_LIMIT_REQUESTS", 5),
			RateLimitWindow:   getEnvAsDuration("RATE_LIMIT_WINDOW", 60*time.Second),
			SweepInterval:     getEnvAsDuration("SWEEP_INTERVAL", 5*time.Minute),
			NumQueries:        getEnvAsInt("NUM_QUERIES", 3),
			RRFRankConstant:   getEnvAsInt("RRF_RANK_CONSTANT", 3),
			TopKDocuments:     getEnvAsInt("TOP_K_DOCUMENTS", 5),
			MatchThreshold:    getEnvAsFloat("MATCH_THRESHOLD", 0.3),
			DocumentRegistry:  getEnv("DOCUMENT_REGISTRY_PATH", "static/documents.json"),
			ProviderTimeout:   getEnvAsDuration("PROVIDER_TIMEOUT", 120*time.Second),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
