package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPPort    string
	DatabaseDSN string
	JWTSecret   string
	CORSOrigins string

	// SaveTimeout bounds writes to the store; a save that takes longer
	// counts as failed and the in-memory state rolls back.
	SaveTimeout time.Duration
	// ProbeTimeout bounds the startup connectivity check.
	ProbeTimeout time.Duration
}

func Load() *Config {
	cfg := &Config{
		HTTPPort:     getEnv("HTTP_PORT", "8080"),
		DatabaseDSN:  getEnv("DATABASE_DSN", "host=localhost user=postgres password=postgres dbname=cafepos port=5432 sslmode=disable"),
		JWTSecret:    getEnv("JWT_SECRET", ""),
		CORSOrigins:  getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
		SaveTimeout:  time.Duration(getEnvInt("SAVE_TIMEOUT_SECONDS", 15)) * time.Second,
		ProbeTimeout: time.Duration(getEnvInt("PROBE_TIMEOUT_SECONDS", 5)) * time.Second,
	}

	if cfg.JWTSecret == "" {
		log.Fatal("[FATAL] JWT_SECRET environment variable is not set. It is required in production.")
	}
	if len(cfg.JWTSecret) < 32 {
		log.Fatal("[FATAL] JWT_SECRET must be at least 32 characters.")
	}
	if cfg.DatabaseDSN == "host=localhost user=postgres password=postgres dbname=cafepos port=5432 sslmode=disable" {
		log.Println("[WARN] DATABASE_DSN is using the default value, configure your own Postgres connection for production.")
	}
	if cfg.CORSOrigins == "http://localhost:5173" {
		log.Println("[WARN] CORS_ALLOWED_ORIGINS is using the default value, configure your own domain for production.")
	}

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
		log.Printf("[WARN] %s is not a positive integer, using default %d", key, def)
	}
	return def
}
