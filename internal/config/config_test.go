package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.API.Port != 8080 {
		t.Errorf("want default port 8080, got %d", cfg.API.Port)
	}
	if cfg.JWT.AccessTokenTTL != 15*time.Minute {
		t.Errorf("want default access ttl 15m, got %s", cfg.JWT.AccessTokenTTL)
	}
	if cfg.Upload.MaxFileSize != 5*1024*1024 {
		t.Errorf("want default max file size 5MiB, got %d", cfg.Upload.MaxFileSize)
	}
	if cfg.Auth.LoginLockThreshold != 5 {
		t.Errorf("want default lock threshold 5, got %d", cfg.Auth.LoginLockThreshold)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("API_PORT", "9090")
	t.Setenv("REDIS_HOST", "redis.internal")
	t.Setenv("LOGIN_LOCK_TTL", "30m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.API.Port != 9090 {
		t.Errorf("want port 9090, got %d", cfg.API.Port)
	}
	if cfg.Redis.Addr() != "redis.internal:6379" {
		t.Errorf("unexpected redis addr %q", cfg.Redis.Addr())
	}
	if cfg.Auth.LoginLockTTL != 30*time.Minute {
		t.Errorf("want lock ttl 30m, got %s", cfg.Auth.LoginLockTTL)
	}
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{
		Host:     "db.internal",
		Port:     5433,
		Name:     "fieldcv",
		User:     "svc",
		Password: "secret",
		SSLMode:  "require",
	}
	want := "host=db.internal port=5433 user=svc password=secret dbname=fieldcv sslmode=require"
	if got := d.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}
