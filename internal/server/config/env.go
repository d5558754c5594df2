package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const envPrefix = "ACCOUNTMAP_"

// dotenvFiles is a seam for tests.
var dotenvFiles = []string{".env"}

// parseEnv loads .env (if present, without overriding real environment
// variables) and then copies every set ACCOUNTMAP_* variable into config.
// Malformed numbers, booleans and durations are ignored.
func parseEnv(config *Config) {
	for _, f := range dotenvFiles {
		_ = godotenv.Load(f)
	}

	setString(&config.HTTPAddr, "HTTP_ADDR")
	setDuration(&config.ShutdownTimeout, "SHUTDOWN_TIMEOUT")
	setString(&config.DatabaseDSN, "DATABASE_DSN")
	setInt(&config.MaxOpenConns, "DB_MAX_OPEN_CONNS")
	setInt(&config.MaxIdleConns, "DB_MAX_IDLE_CONNS")
	setDuration(&config.ConnMaxLifetime, "DB_CONN_MAX_LIFETIME")
	setString(&config.SecretKey, "SECRET_KEY")
	setDuration(&config.TokenValidityDuration, "TOKEN_VALIDITY")
	setString(&config.DefaultUsername, "DEFAULT_USERNAME")
	setString(&config.DefaultEmail, "DEFAULT_EMAIL")
	setBool(&config.SeedDemoData, "SEED_DEMO_DATA")
	if v, ok := lookup("ALLOWED_ORIGINS"); ok {
		config.AllowedOrigins = splitList(v)
	}
	setString(&config.AIAPIKey, "AI_API_KEY")
	setString(&config.AIBaseURL, "AI_BASE_URL")
	setString(&config.AIModel, "AI_MODEL")
	setDuration(&config.AITimeout, "AI_TIMEOUT")
	setString(&config.RedisURL, "REDIS_URL")
	setInt(&config.AIRateLimit, "AI_RATE_LIMIT")
	setDuration(&config.AIRateWindow, "AI_RATE_WINDOW")
	setString(&config.LogBackend, "LOG_BACKEND")
	setString(&config.LogLevel, "LOG_LEVEL")
	setString(&config.LogFormat, "LOG_FORMAT")

	// Deployments of the original service only set GEMINI_API_KEY.
	if config.AIAPIKey == "" {
		config.AIAPIKey = os.Getenv("GEMINI_API_KEY")
	}
}

func lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + name)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func setString(dst *string, name string) {
	if v, ok := lookup(name); ok {
		*dst = v
	}
}

func setInt(dst *int, name string) {
	if v, ok := lookup(name); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, name string) {
	if v, ok := lookup(name); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, name string) {
	if v, ok := lookup(name); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
