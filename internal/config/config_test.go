package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("USE_MEMORY_STORE", "")
	t.Setenv("MAX_SLOT_RANGE_DAYS", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.UseMemoryStore {
		t.Fatal("expected memory store disabled by default")
	}
	if cfg.MaxSlotRangeDays != 90 {
		t.Fatalf("expected default slot range, got %d", cfg.MaxSlotRangeDays)
	}
	if cfg.ShutdownTimeout != 20*time.Second {
		t.Fatalf("expected default shutdown timeout, got %s", cfg.ShutdownTimeout)
	}
	if cfg.CORSAllowedOrigins != nil {
		t.Fatalf("expected no CORS origins by default, got %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("USE_MEMORY_STORE", "true")
	t.Setenv("STAFF_JWT_SECRET", "sekrit")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("MAX_SLOT_RANGE_DAYS", "30")
	t.Setenv("HTTP_SHUTDOWN_TIMEOUT", "45s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.Env != "production" {
		t.Fatalf("expected env override, got %s", cfg.Env)
	}
	if cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("expected db override, got %s", cfg.DatabaseURL)
	}
	if !cfg.UseMemoryStore {
		t.Fatal("expected memory store enabled")
	}
	if cfg.StaffJWTSecret != "sekrit" {
		t.Fatalf("expected jwt secret override, got %s", cfg.StaffJWTSecret)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Fatalf("expected redis override, got %s", cfg.RedisAddr)
	}
	if cfg.MaxSlotRangeDays != 30 {
		t.Fatalf("expected slot range override, got %d", cfg.MaxSlotRangeDays)
	}
	if cfg.ShutdownTimeout != 45*time.Second {
		t.Fatalf("expected shutdown timeout override, got %s", cfg.ShutdownTimeout)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[0] != "https://a.example" {
		t.Fatalf("expected two trimmed origins, got %v", cfg.CORSAllowedOrigins)
	}
}
