package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port         int
	StoreBackend string
	DatabaseURL  string
	SQLitePath   string
	NatsURL      string
	NatsToken    string
	OpenAIAPIKey string
	Model        string
	ModelTimeout int // seconds
	APIToken     string
	DefaultUser  string
	LogLevel     string
}

func Load() Config {
	// Optional .env file; missing is fine.
	_ = godotenv.Load()

	return Config{
		Port:         envInt("ATLAS_PORT", 8760),
		StoreBackend: envStr("ATLAS_STORE", "postgres"),
		DatabaseURL:  envStr("DATABASE_URL", ""),
		SQLitePath:   envStr("SQLITE_PATH", "atlas.db"),
		NatsURL:      envStr("NATS_URL", "nats://localhost:4222"),
		NatsToken:    envStr("NATS_TOKEN", ""),
		OpenAIAPIKey: envStr("OPENAI_API_KEY", ""),
		Model:        envStr("ATLAS_MODEL", "gpt-3.5-turbo"),
		ModelTimeout: envInt("ATLAS_MODEL_TIMEOUT", 120),
		APIToken:     envStr("ATLAS_API_TOKEN", ""),
		DefaultUser:  envStr("ATLAS_DEFAULT_USER", "atlas"),
		LogLevel:     envStr("LOG_LEVEL", "info"),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
