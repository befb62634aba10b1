package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("LEDGER_AUTH_JWT_SECRET", "test-secret")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTP.Port != "8083" {
		t.Errorf("expected port 8083, got %s", cfg.HTTP.Port)
	}
	if cfg.Ledger.ServiceAccount != "ledger-service" {
		t.Errorf("expected default service account, got %s", cfg.Ledger.ServiceAccount)
	}
	if cfg.Ledger.MaxRetries != 5 {
		t.Errorf("expected 5 retries, got %d", cfg.Ledger.MaxRetries)
	}
	if cfg.Ledger.Numbering != "random" || cfg.Ledger.Lock != "local" {
		t.Errorf("unexpected ledger strategy: numbering=%s lock=%s", cfg.Ledger.Numbering, cfg.Ledger.Lock)
	}
	if cfg.Ledger.LockTTL != 10*time.Second {
		t.Errorf("expected 10s lock ttl, got %s", cfg.Ledger.LockTTL)
	}
	if cfg.Auth.JWTSecret != "test-secret" {
		t.Errorf("expected secret from env, got %q", cfg.Auth.JWTSecret)
	}
	if cfg.Redis.PoolSize != 10 || cfg.Redis.DialTimeout != 5*time.Second || cfg.Redis.ReadTimeout != 3*time.Second {
		t.Errorf("unexpected redis client defaults: %+v", cfg.Redis)
	}
}

func TestLoad_RedisClientOptionsFromEnv(t *testing.T) {
	t.Setenv("LEDGER_AUTH_JWT_SECRET", "test-secret")
	t.Setenv("LEDGER_REDIS_POOL_SIZE", "25")
	t.Setenv("LEDGER_REDIS_READ_TIMEOUT", "750ms")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Redis.PoolSize != 25 {
		t.Errorf("expected pool size 25, got %d", cfg.Redis.PoolSize)
	}
	if cfg.Redis.ReadTimeout != 750*time.Millisecond {
		t.Errorf("expected 750ms read timeout, got %s", cfg.Redis.ReadTimeout)
	}
}

func TestLoad_RequiresJWTSecret(t *testing.T) {
	t.Setenv("LEDGER_AUTH_JWT_SECRET", "")

	_, err := Load("")
	if err == nil {
		t.Fatal("expected error for missing jwt secret")
	}
	if !strings.Contains(err.Error(), "JWTSecret") {
		t.Errorf("expected error to name JWTSecret, got %v", err)
	}
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.yaml")
	content := `
http:
  port: "9090"
auth:
  jwt_secret: from-file
ledger:
  numbering: sequence
  lock: redis
  lock_ttl: 3s
  max_retries: 2
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("LEDGER_LEDGER_SERVICE_ACCOUNT", "svc-from-env")
	t.Setenv("LEDGER_HTTP_PORT", "9191")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTP.Port != "9191" {
		t.Errorf("expected env to override file port, got %s", cfg.HTTP.Port)
	}
	if cfg.Auth.JWTSecret != "from-file" {
		t.Errorf("expected secret from file, got %q", cfg.Auth.JWTSecret)
	}
	if cfg.Ledger.Numbering != "sequence" || cfg.Ledger.Lock != "redis" {
		t.Errorf("unexpected ledger strategy: numbering=%s lock=%s", cfg.Ledger.Numbering, cfg.Ledger.Lock)
	}
	if cfg.Ledger.LockTTL != 3*time.Second {
		t.Errorf("expected 3s lock ttl, got %s", cfg.Ledger.LockTTL)
	}
	if cfg.Ledger.MaxRetries != 2 {
		t.Errorf("expected 2 retries, got %d", cfg.Ledger.MaxRetries)
	}
	if cfg.Ledger.ServiceAccount != "svc-from-env" {
		t.Errorf("expected service account from env, got %s", cfg.Ledger.ServiceAccount)
	}
}

func TestLoad_RejectsUnknownStrategies(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"numbering", "LEDGER_LEDGER_NUMBERING", "uuid"},
		{"lock", "LEDGER_LEDGER_LOCK", "zookeeper"},
		{"log level", "LEDGER_LOG_LEVEL", "verbose"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("LEDGER_AUTH_JWT_SECRET", "test-secret")
			t.Setenv(tt.key, tt.val)

			if _, err := Load(""); err == nil {
				t.Errorf("expected error for %s=%s", tt.key, tt.val)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("LEDGER_AUTH_JWT_SECRET", "test-secret")

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
