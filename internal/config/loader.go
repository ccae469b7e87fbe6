package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies POOLROOM_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known POOLROOM_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Server ──
	setInt(&cfg.Server.Port, "POOLROOM_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "POOLROOM_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "POOLROOM_SERVER_CORS_ORIGINS")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "POOLROOM_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "POOLROOM_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "POOLROOM_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "POOLROOM_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "POOLROOM_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "POOLROOM_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "POOLROOM_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "POOLROOM_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "POOLROOM_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "POOLROOM_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "POOLROOM_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "POOLROOM_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "POOLROOM_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "POOLROOM_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "POOLROOM_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "POOLROOM_REDIS_TLS_ENABLED")

	// ── Settlement ──
	setDuration(&cfg.Settlement.LockTTL, "POOLROOM_SETTLEMENT_LOCK_TTL")
	setBool(&cfg.Settlement.FaucetEnabled, "POOLROOM_SETTLEMENT_FAUCET_ENABLED")

	// ── Top-level ──
	setStr(&cfg.Mode, "POOLROOM_MODE")
	setStr(&cfg.LogLevel, "POOLROOM_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
