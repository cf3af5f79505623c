package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

var envOnce sync.Once

// LoadEnvOnce loads the .env file only once during the process lifetime so
// that multiple packages can call it without re-reading the file.
func LoadEnvOnce() {
	envOnce.Do(loadEnvironment)
}

func loadEnvironment() {
	// Try a few likely locations; the first readable .env wins.
	envPaths := []string{
		".env",
		"../.env",
		filepath.Join(os.Getenv("APP_ROOT"), ".env"),
	}

	for _, path := range envPaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				log.Printf("Environment loaded from: %s", path)
				return
			}
		}
	}
	// No .env is normal for container deployments; env vars apply directly.
}

// GetEnvWithFallback gets an environment variable with a fallback value.
func GetEnvWithFallback(key, fallback string) string {
	LoadEnvOnce()

	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// GetEnvInt gets an environment variable as an int with a fallback.
func GetEnvInt(key string, fallback int) int {
	value := GetEnvWithFallback(key, "")
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Invalid integer for %s=%q, using %d", key, value, fallback)
		return fallback
	}
	return n
}

// GetEnvBool gets an environment variable as a boolean with a fallback.
func GetEnvBool(key string, fallback bool) bool {
	value := GetEnvWithFallback(key, "")
	if value == "" {
		return fallback
	}
	return value == "true" || value == "1" || value == "yes" || value == "on"
}

// GetEnvDuration gets an environment variable as a time.Duration
// (e.g. "30s", "5m") with a fallback.
func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	value := GetEnvWithFallback(key, "")
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Invalid duration for %s=%q, using %v", key, value, fallback)
		return fallback
	}
	return d
}
