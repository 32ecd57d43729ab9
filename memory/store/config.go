package store

import (
	"os"
	"strconv"
	"time"
)

// Environment-driven configuration for the thread stores. Each FromEnv
// helper applies documented defaults when a variable is unset so a local
// deployment needs no configuration at all.

// PostgresConfigFromEnv reads the POSTGRES_* variables.
func PostgresConfigFromEnv() *PostgresConfig {
	return &PostgresConfig{
		Host:     envString("POSTGRES_HOST", "localhost"),
		Port:     envInt("POSTGRES_PORT", 5432),
		User:     envString("POSTGRES_USER", "postgres"),
		Password: envString("POSTGRES_PASSWORD", ""),
		DBName:   envString("POSTGRES_DB", "datatalk"),
		SSLMode:  envString("POSTGRES_SSLMODE", "disable"),
	}
}

// RedisConfigFromEnv reads the REDIS_* variables.
func RedisConfigFromEnv() *RedisConfig {
	return &RedisConfig{
		Addr:     envString("REDIS_ADDR", "localhost:6379"),
		Password: envString("REDIS_PASSWORD", ""),
		DB:       envInt("REDIS_DB", 0),
		Prefix:   envString("REDIS_PREFIX", "datatalk:threads:"),
		TTL:      envDuration("REDIS_TTL", 0),
	}
}

// MongoConfigFromEnv reads the MONGODB_* variables.
func MongoConfigFromEnv() *MongoConfig {
	return &MongoConfig{
		URI:        envString("MONGODB_URI", "mongodb://localhost:27017"),
		Database:   envString("MONGODB_DB", "datatalk"),
		Collection: envString("MONGODB_COLLECTION", "threads"),
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
