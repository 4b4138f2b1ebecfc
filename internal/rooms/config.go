package rooms

import (
	"os"

	"github.com/joho/godotenv"
)

// Config holds the room service configuration.
type Config struct {
	Port     string
	RedisURL string
}

// DefaultConfig returns a Config populated with default values.
func DefaultConfig() Config {
	return Config{
		Port:     ":8081",
		RedisURL: "redis://localhost:6379",
	}
}

// LoadConfig creates a Config from environment variables, falling back to
// defaults for anything unset. A local .env file is loaded when present.
func LoadConfig() Config {
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if port := os.Getenv("ROOMS_PORT"); port != "" {
		cfg.Port = port
	}
	if url := os.Getenv("REDIS_URL"); url != "" {
		cfg.RedisURL = url
	}
	return cfg
}
