package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "cluster"
	cfg.Server.Port = 0
	cfg.Settlement.LockTTL = duration{0}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"unknown mode", "server: port", "lock_ttl"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q: %v", want, err)
		}
	}
}

func TestFaucetOnlyInDevMode(t *testing.T) {
	cfg := Defaults()
	cfg.Settlement.FaucetEnabled = true
	if err := cfg.Validate(); err == nil {
		t.Fatal("faucet in server mode should fail validation")
	}

	cfg.Mode = "dev"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("faucet in dev mode should validate: %v", err)
	}
}

func TestDevModeSkipsBackendChecks(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "dev"
	cfg.Postgres.Host = ""
	cfg.Redis.Addr = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("dev mode should not require postgres or redis: %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("POOLROOM_SERVER_PORT", "9100")
	t.Setenv("POOLROOM_POSTGRES_DSN", "postgres://app:secret@db:5432/pools")
	t.Setenv("POOLROOM_SETTLEMENT_LOCK_TTL", "30s")
	t.Setenv("POOLROOM_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("POOLROOM_MODE", "dev")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	if cfg.Server.Port != 9100 {
		t.Errorf("port = %d, want 9100", cfg.Server.Port)
	}
	if cfg.Postgres.DSN != "postgres://app:secret@db:5432/pools" {
		t.Errorf("dsn not overridden: %q", cfg.Postgres.DSN)
	}
	if cfg.Settlement.LockTTL.Duration != 30*time.Second {
		t.Errorf("lock_ttl = %v, want 30s", cfg.Settlement.LockTTL.Duration)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "https://b.example" {
		t.Errorf("cors origins = %v", cfg.Server.CORSOrigins)
	}
	if cfg.Mode != "dev" {
		t.Errorf("mode = %q, want dev", cfg.Mode)
	}
}

func TestEnvOverrideIgnoresMalformedValues(t *testing.T) {
	t.Setenv("POOLROOM_SERVER_PORT", "not-a-number")
	t.Setenv("POOLROOM_SETTLEMENT_LOCK_TTL", "forever")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	if cfg.Server.Port != 8000 {
		t.Errorf("malformed port should keep default, got %d", cfg.Server.Port)
	}
	if cfg.Settlement.LockTTL.Duration != 10*time.Second {
		t.Errorf("malformed lock_ttl should keep default, got %v", cfg.Settlement.LockTTL.Duration)
	}
}
