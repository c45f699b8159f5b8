package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends accepted by STORE_BACKEND.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

type Config struct {
	// Server
	Port        string
	Env         string
	FrontendURL string

	// Logging
	LogLevel  string
	LogFormat string

	// Answer service
	AnswerServiceURL string
	AnswerTimeout    time.Duration
	AnswerWorkers    int
	ReplyDelayMin    time.Duration
	ReplyDelayMax    time.Duration
	FailureDelay     time.Duration

	// Session store
	StoreBackend string
	RedisURL     string
	DatabaseURL  string
	SQLitePath   string
	SessionTTL   time.Duration
	SessionIdle  time.Duration

	// Gemini AI (optional)
	GeminiAPIKey         string
	GeminiModel          string
	GeminiConcurrentReqs int

	// Rate limiting
	SubmitRatePerMinute int
}

// Load reads configuration from the environment, after loading .env if one
// exists. Connection strings the chosen store backend needs are required.
func Load() *Config {
	godotenv.Load()

	cfg := &Config{
		Port:                 getEnvOrDefault("PORT", "8080"),
		Env:                  getEnvOrDefault("ENV", "development"),
		FrontendURL:          getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		AnswerServiceURL:     getEnvOrDefault("ANSWER_SERVICE_URL", ""),
		AnswerTimeout:        time.Duration(getEnvAsIntOrDefault("ANSWER_TIMEOUT_SECONDS", 15)) * time.Second,
		AnswerWorkers:        getEnvAsIntOrDefault("ANSWER_WORKERS", 8),
		ReplyDelayMin:        time.Duration(getEnvAsIntOrDefault("REPLY_DELAY_MIN_MS", 1000)) * time.Millisecond,
		ReplyDelayMax:        time.Duration(getEnvAsIntOrDefault("REPLY_DELAY_MAX_MS", 2000)) * time.Millisecond,
		FailureDelay:         time.Duration(getEnvAsIntOrDefault("FAILURE_DELAY_MS", 1000)) * time.Millisecond,
		StoreBackend:         strings.ToLower(getEnvOrDefault("STORE_BACKEND", StoreMemory)),
		SQLitePath:           getEnvOrDefault("SQLITE_PATH", "./saathi-chat.db"),
		SessionTTL:           time.Duration(getEnvAsIntOrDefault("SESSION_TTL_MINUTES", 120)) * time.Minute,
		SessionIdle:          time.Duration(getEnvAsIntOrDefault("SESSION_IDLE_MINUTES", 30)) * time.Minute,
		GeminiAPIKey:         getEnvOrDefault("GEMINI_API_KEY", ""),
		GeminiModel:          getEnvOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiConcurrentReqs: getEnvAsIntOrDefault("GEMINI_CONCURRENT_REQUESTS", 5),
		SubmitRatePerMinute:  getEnvAsIntOrDefault("SUBMIT_RATE_PER_MINUTE", 30),
	}

	switch cfg.StoreBackend {
	case StoreRedis:
		cfg.RedisURL = mustGetEnv("REDIS_URL")
	case StorePostgres:
		cfg.DatabaseURL = mustGetEnv("DATABASE_URL")
		cfg.RedisURL = getEnvOrDefault("REDIS_URL", "")
	case StoreSQLite, StoreMemory:
		cfg.RedisURL = getEnvOrDefault("REDIS_URL", "")
	default:
		panic(fmt.Sprintf("unsupported STORE_BACKEND %q", cfg.StoreBackend))
	}

	if cfg.ReplyDelayMax < cfg.ReplyDelayMin {
		cfg.ReplyDelayMax = cfg.ReplyDelayMin
	}

	return cfg
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}
