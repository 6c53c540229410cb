// Package config loads runtime settings from the environment, with an
// optional .env file for local development.
package config

import (
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	// ListenAddr is the HTTP listen address for the API server.
	ListenAddr string
	// DBPath is the SQLite database file.
	DBPath string
	// RedisAddr enables the Redis report cache when set; the in-memory
	// cache is used otherwise.
	RedisAddr string
}

// Load reads configuration from the environment. A missing .env file is
// not an error.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ListenAddr: getenv("SHOPBOOKS_ADDR", ":8080"),
		DBPath:     getenv("SHOPBOOKS_DB", "shopbooks.db"),
		RedisAddr:  os.Getenv("SHOPBOOKS_REDIS_ADDR"),
	}
}

func getenv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
