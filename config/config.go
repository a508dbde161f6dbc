// Package config loads deployment settings from the environment. A .env
// file is honored when present, for dev setups.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL          string
	RedisAddr            string
	RedisPassword        string
	RedisDB              int
	StoreID              string
	StockCacheTTLSeconds int
	NotifyWebhookURL     string
	NotifyQueueSize      int
}

// Load reads the configuration. Without DATABASE_URL the caller should fall
// back to the in-memory backend; without REDIS_ADDR the catalog runs
// uncached; without NOTIFY_WEBHOOK_URL notices go to a NoopSender.
func Load() Config {
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	ttl, err := strconv.Atoi(getEnv("STOCK_CACHE_TTL_SECONDS", "30"))
	if err != nil || ttl < 1 {
		ttl = 30
	}
	queueSize, err := strconv.Atoi(getEnv("NOTIFY_QUEUE_SIZE", "64"))
	if err != nil || queueSize < 1 {
		queueSize = 64
	}

	return Config{
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		RedisAddr:            os.Getenv("REDIS_ADDR"),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		RedisDB:              redisDB,
		StoreID:              getEnv("STORE_ID", "taller-principal"),
		StockCacheTTLSeconds: ttl,
		NotifyWebhookURL:     os.Getenv("NOTIFY_WEBHOOK_URL"),
		NotifyQueueSize:      queueSize,
	}
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
