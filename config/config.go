package config

import (
	"log/slog"
	"os"
)

type Config struct {
	// MongoDB configuration
	MongoURI     string
	DatabaseName string

	// Webhook configuration
	VerifyToken string

	// Server configuration
	Port         string
	AllowOrigins string

	// Optional shared key protecting the /api surface
	APIKey string
}

func LoadConfig() *Config {
	cfg := &Config{
		MongoURI:     getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DatabaseName: getEnv("MONGO_DB_NAME", "messenger_inbox"),
		VerifyToken:  getEnv("WEBHOOK_VERIFY_TOKEN", ""),
		Port:         getEnv("PORT", "3001"),
		AllowOrigins: getEnv("ALLOW_ORIGINS", "http://localhost:5173, http://localhost:3000"),
		APIKey:       getEnv("API_KEY", ""),
	}

	// Validate required configuration
	if cfg.VerifyToken == "" {
		slog.Error("WEBHOOK_VERIFY_TOKEN not set, webhook verification will always fail")
	}

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
