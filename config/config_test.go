package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("STORE_ID", "")
	t.Setenv("STOCK_CACHE_TTL_SECONDS", "")
	t.Setenv("NOTIFY_QUEUE_SIZE", "")

	cfg := Load()
	if cfg.StoreID != "taller-principal" {
		t.Fatalf("StoreID = %q", cfg.StoreID)
	}
	if cfg.StockCacheTTLSeconds != 30 {
		t.Fatalf("StockCacheTTLSeconds = %d", cfg.StockCacheTTLSeconds)
	}
	if cfg.NotifyQueueSize != 64 {
		t.Fatalf("NotifyQueueSize = %d", cfg.NotifyQueueSize)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_ID", "taller-norte")
	t.Setenv("STOCK_CACHE_TTL_SECONDS", "120")
	t.Setenv("REDIS_DB", "3")

	cfg := Load()
	if cfg.StoreID != "taller-norte" {
		t.Fatalf("StoreID = %q", cfg.StoreID)
	}
	if cfg.StockCacheTTLSeconds != 120 {
		t.Fatalf("StockCacheTTLSeconds = %d", cfg.StockCacheTTLSeconds)
	}
	if cfg.RedisDB != 3 {
		t.Fatalf("RedisDB = %d", cfg.RedisDB)
	}
}

func TestLoadRejectsBadNumbers(t *testing.T) {
	t.Setenv("STOCK_CACHE_TTL_SECONDS", "-5")
	t.Setenv("NOTIFY_QUEUE_SIZE", "zero")

	cfg := Load()
	if cfg.StockCacheTTLSeconds != 30 {
		t.Fatalf("StockCacheTTLSeconds = %d, want fallback 30", cfg.StockCacheTTLSeconds)
	}
	if cfg.NotifyQueueSize != 64 {
		t.Fatalf("NotifyQueueSize = %d, want fallback 64", cfg.NotifyQueueSize)
	}
}
