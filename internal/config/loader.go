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
// built-in defaults, applies BLUEDEER_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known BLUEDEER_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Supabase ──
	setStr(&cfg.Supabase.DSN, "BLUEDEER_SUPABASE_DSN")
	setStr(&cfg.Supabase.DSN, "BLUEDEER_SUPABASE_URL") // compatibility alias
	setStr(&cfg.Supabase.Host, "BLUEDEER_SUPABASE_HOST")
	setInt(&cfg.Supabase.Port, "BLUEDEER_SUPABASE_PORT")
	setStr(&cfg.Supabase.Database, "BLUEDEER_SUPABASE_DATABASE")
	setStr(&cfg.Supabase.User, "BLUEDEER_SUPABASE_USER")
	setStr(&cfg.Supabase.Password, "BLUEDEER_SUPABASE_PASSWORD")
	setStr(&cfg.Supabase.SSLMode, "BLUEDEER_SUPABASE_SSLMODE")
	setInt(&cfg.Supabase.PoolMaxConns, "BLUEDEER_SUPABASE_POOL_MAX_CONNS")
	setInt(&cfg.Supabase.PoolMinConns, "BLUEDEER_SUPABASE_POOL_MIN_CONNS")
	setBool(&cfg.Supabase.RunMigrations, "BLUEDEER_SUPABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "BLUEDEER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "BLUEDEER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "BLUEDEER_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "BLUEDEER_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "BLUEDEER_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "BLUEDEER_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "BLUEDEER_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "BLUEDEER_S3_REGION")
	setStr(&cfg.S3.Bucket, "BLUEDEER_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "BLUEDEER_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "BLUEDEER_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "BLUEDEER_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "BLUEDEER_S3_FORCE_PATH_STYLE")

	// ── Journal ──
	setBool(&cfg.Journal.SeedProfiles, "BLUEDEER_JOURNAL_SEED_PROFILES")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "BLUEDEER_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "BLUEDEER_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.Interval, "BLUEDEER_ARCHIVE_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "BLUEDEER_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "BLUEDEER_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "BLUEDEER_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "BLUEDEER_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "BLUEDEER_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateLimitWindow, "BLUEDEER_SERVER_RATE_LIMIT_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "BLUEDEER_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "BLUEDEER_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "BLUEDEER_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "BLUEDEER_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "BLUEDEER_MODE")
	setStr(&cfg.LogLevel, "BLUEDEER_LOG_LEVEL")
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
