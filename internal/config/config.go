package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
)

// Config holds the application configuration
type Config struct {
	DatabaseURL    string
	RedisURL       string
	Port           string
	HMACSecret     string
	AdminJWTSecret string
	DevMode        bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port: "8080", // default port
	}

	// Load DATABASE_URL and log connection details (password masked)
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	cfg.DatabaseURL = databaseURL

	if u, err := url.Parse(databaseURL); err == nil {
		host := u.Hostname()
		if host == "" {
			host = "localhost"
		}
		port := u.Port()
		if port == "" {
			port = "5432"
		}
		dbName := strings.TrimPrefix(u.Path, "/")
		if idx := strings.Index(dbName, "?"); idx >= 0 {
			dbName = dbName[:idx]
		}
		user := u.User.Username()
		if user == "" {
			user = "(none)"
		}
		log.Printf("DB connect: host=%s port=%s db=%s user=%s", host, port, dbName, user)
	}

	// Load REDIS_URL (required; fast store backs the whole hot path)
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL environment variable is required")
	}
	cfg.RedisURL = redisURL

	// Load PORT (optional, defaults to 8080)
	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = port
	}

	// Load HMAC_SECRET (required; signs onboarding challenge hashes)
	hmacSecret := os.Getenv("HMAC_SECRET")
	if hmacSecret == "" {
		return nil, fmt.Errorf("HMAC_SECRET environment variable is required")
	}
	cfg.HMACSecret = hmacSecret

	// Load ADMIN_JWT_SECRET (required; verifies admin bearer tokens)
	adminSecret := os.Getenv("ADMIN_JWT_SECRET")
	if adminSecret == "" {
		return nil, fmt.Errorf("ADMIN_JWT_SECRET environment variable is required")
	}
	cfg.AdminJWTSecret = adminSecret

	// Load DEV_MODE (optional, defaults to false)
	devMode := os.Getenv("DEV_MODE")
	cfg.DevMode = devMode == "true"

	return cfg, nil
}
