package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadYAML(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ADMIN_KEY", "")
	t.Setenv("DATABASE_URL", "")

	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
server:
  port: "9090"
  adminKey: secret
  allowedOrigins: ["http://localhost:5173"]
redis:
  addr: localhost:6379
  ttl: 30m
nats:
  url: nats://localhost:4222
quiz:
  closeSkew: 100ms
  singleAttempt: true
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.Server.AdminKey != "secret" || cfg.Server.AllowedOrigins[0] != "http://localhost:5173" {
		t.Fatalf("unexpected server config %+v", cfg.Server)
	}
	if cfg.Redis.Addr != "localhost:6379" || TTLDuration(cfg.Redis.TTL, 0) != 30*time.Minute {
		t.Fatalf("unexpected redis config %+v", cfg.Redis)
	}
	if cfg.NATS.SubjectPrefix != DefaultSubjectPrefix {
		t.Fatalf("expected default subject prefix, got %q", cfg.NATS.SubjectPrefix)
	}
	if !cfg.Quiz.SingleAttempt || TTLDuration(cfg.Quiz.CloseSkew, 0) != 100*time.Millisecond {
		t.Fatalf("unexpected quiz config %+v", cfg.Quiz)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("unexpected log level %q", cfg.Log.Level)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ADMIN_KEY", "")
	t.Setenv("DATABASE_URL", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("expected missing file to be tolerated, got %v", err)
	}
	if cfg.Server.Port != DefaultPort || cfg.Server.AllowedOrigins[0] != "*" || cfg.Log.Level != "info" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "7000")
	t.Setenv("ADMIN_KEY", "from-env")
	t.Setenv("DATABASE_URL", "postgres://env")

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: \"9090\"\n  adminKey: file\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "7000" || cfg.Server.AdminKey != "from-env" || cfg.Postgres.URL != "postgres://env" {
		t.Fatalf("expected env overrides, got %+v %+v", cfg.Server, cfg.Postgres)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("LIVE_QUIZ_TEST_VAR=hello\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("LIVE_QUIZ_TEST_VAR", "")
	os.Unsetenv("LIVE_QUIZ_TEST_VAR")

	if err := LoadDotEnv(envFile, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("load dotenv: %v", err)
	}
	if got := os.Getenv("LIVE_QUIZ_TEST_VAR"); got != "hello" {
		t.Fatalf("expected variable from .env, got %q", got)
	}
}

func TestTTLDuration(t *testing.T) {
	if got := TTLDuration("", time.Second); got != time.Second {
		t.Fatalf("expected fallback, got %v", got)
	}
	if got := TTLDuration("bogus", time.Second); got != time.Second {
		t.Fatalf("expected fallback for invalid input, got %v", got)
	}
	if got := TTLDuration("15s", time.Second); got != 15*time.Second {
		t.Fatalf("expected parsed duration, got %v", got)
	}
}
