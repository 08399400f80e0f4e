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
	Delivery DeliveryConfig
	Sweeper  SweeperConfig
	Ai       AIConfig
}

type AppConfig struct {
	Port                string
	Environment         string
	LogFilePath         string
	DeliveryLogFilePath string
	CorsAllowedOrigins  string
	JwtSecret           string
	IdempotencyTTL      time.Duration
}

type DatabaseConfig struct {
	Connection  string
	StoreDriver string // "postgres" or "memory"
}

type DeliveryConfig struct {
	Broker           string // "gochannel", "redis" or "nats"
	NatsURL          string
	RedisURL         string
	SubscriberBuffer int
	LifecycleEvents  bool // publish CHAT_SESSION_* to JetStream
}

type SweeperConfig struct {
	Enabled     bool
	IdleTimeout time.Duration
	Interval    time.Duration
	BatchSize   int
}

type AIConfig struct {
	LLMProvider  string // "ollama" or "huggingface"
	LLMModel     string
	BaseURL      string
	ApiKey       string
	DraftTimeout time.Duration
	HistoryLimit int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		App: AppConfig{
			Port:                getEnv("APP_PORT", "3000"),
			Environment:         getEnv("GO_ENV", "development"),
			LogFilePath:         getEnv("LOG_FILE_PATH", "logs/app.log"),
			DeliveryLogFilePath: getEnv("DELIVERY_LOG_FILE_PATH", "logs/delivery.log"),
			CorsAllowedOrigins:  getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			JwtSecret:           getEnv("JWT_SECRET", ""),
			IdempotencyTTL:      getEnvAsDuration("IDEMPOTENCY_TTL", 10*time.Minute),
		},
		Database: DatabaseConfig{
			Connection:  getEnv("DB_CONNECTION_STRING", ""),
			StoreDriver: getEnv("STORE_DRIVER", "postgres"),
		},
		Delivery: DeliveryConfig{
			Broker:           getEnv("BUS_BROKER", "gochannel"),
			NatsURL:          getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379"),
			SubscriberBuffer: getEnvAsInt("SUBSCRIBER_BUFFER", 16),
			LifecycleEvents:  getEnvAsBool("CHAT_LIFECYCLE_EVENTS", false),
		},
		Sweeper: SweeperConfig{
			Enabled:     getEnvAsBool("SWEEPER_ENABLED", true),
			IdleTimeout: getEnvAsDuration("SWEEPER_IDLE_TIMEOUT", 24*time.Hour),
			Interval:    getEnvAsDuration("SWEEPER_INTERVAL", 5*time.Minute),
			BatchSize:   getEnvAsInt("SWEEPER_BATCH_SIZE", 100),
		},
		Ai: AIConfig{
			LLMProvider:  getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:     getEnv("LLM_MODEL", "llama3"),
			BaseURL:      getEnv("LLM_BASE_URL", "http://localhost:11434"),
			ApiKey:       getEnv("LLM_API_KEY", ""),
			DraftTimeout: getEnvAsDuration("DRAFT_TIMEOUT", 30*time.Second),
			HistoryLimit: getEnvAsInt("DRAFT_HISTORY_LIMIT", 20),
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

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go duration strings such as "90s" or "24h".
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
