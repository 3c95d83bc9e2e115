package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr      string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string

	JWTSecret      string
	JWTIssuer      string
	AccessTokenTTL time.Duration

	AdminEmail string

	SubscribeRetryBase time.Duration
	SubscribeRetryMax  time.Duration
}

func Load() Config {
	// .env is optional; system environment wins when both are set.
	_ = godotenv.Load()

	return Config{
		HTTPAddr:           getenv("HTTP_ADDR", ":8080"),
		DatabaseURL:        getenv("DATABASE_URL", ""),
		RedisAddr:          getenv("REDIS_ADDR", ""),
		RedisPassword:      getenv("REDIS_PASSWORD", ""),
		JWTSecret:          getenv("JWT_SECRET", "dev-secret"),
		JWTIssuer:          getenv("JWT_ISSUER", "adweb-catalog"),
		AccessTokenTTL:     getenvDuration("ACCESS_TOKEN_TTL", 12*time.Hour),
		AdminEmail:         getenv("ADMIN_EMAIL", "admin@adweb.com"),
		SubscribeRetryBase: getenvDuration("SUBSCRIBE_RETRY_BASE", time.Second),
		SubscribeRetryMax:  getenvDuration("SUBSCRIBE_RETRY_MAX", 30*time.Second),
	}
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	if val := os.Getenv(key + "_SECONDS"); val != "" {
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}
