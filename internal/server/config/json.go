package config

import (
	"encoding/json"
	"os"

	"github.com/andrii-malakhovtsev/accountmap/internal/flagx"
	"github.com/andrii-malakhovtsev/accountmap/internal/timex"
)

// JsonConfig mirrors Config for JSON files. Duration fields use
// timex.Duration so both "30s" and integer nanoseconds are accepted. Pointer
// fields distinguish "absent" from an explicit zero value.
type JsonConfig struct {
	HTTPAddr              string          `json:"http_addr"`
	ShutdownTimeout       *timex.Duration `json:"shutdown_timeout"`
	DatabaseDSN           string          `json:"database_dsn"`
	MaxOpenConns          *int            `json:"db_max_open_conns"`
	MaxIdleConns          *int            `json:"db_max_idle_conns"`
	ConnMaxLifetime       *timex.Duration `json:"db_conn_max_lifetime"`
	SecretKey             string          `json:"secret_key"`
	TokenValidityDuration *timex.Duration `json:"token_validity_duration"`
	DefaultUsername       string          `json:"default_username"`
	DefaultEmail          string          `json:"default_email"`
	SeedDemoData          *bool           `json:"seed_demo_data"`
	AllowedOrigins        []string        `json:"allowed_origins"`
	AIAPIKey              string          `json:"ai_api_key"`
	AIBaseURL             string          `json:"ai_base_url"`
	AIModel               string          `json:"ai_model"`
	AITimeout             *timex.Duration `json:"ai_timeout"`
	RedisURL              string          `json:"redis_url"`
	AIRateLimit           *int            `json:"ai_rate_limit"`
	AIRateWindow          *timex.Duration `json:"ai_rate_window"`
	LogBackend            string          `json:"log_backend"`
	LogLevel              string          `json:"log_level"`
	LogFormat             string          `json:"log_format"`
}

// parseJson overlays values from the JSON file named by -c / -config onto
// config. Only fields present in the file are applied. An unreadable file or
// invalid JSON panics, as a misconfigured server must not start.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	str := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	str(&config.HTTPAddr, c.HTTPAddr)
	str(&config.DatabaseDSN, c.DatabaseDSN)
	str(&config.SecretKey, c.SecretKey)
	str(&config.DefaultUsername, c.DefaultUsername)
	str(&config.DefaultEmail, c.DefaultEmail)
	str(&config.AIAPIKey, c.AIAPIKey)
	str(&config.AIBaseURL, c.AIBaseURL)
	str(&config.AIModel, c.AIModel)
	str(&config.RedisURL, c.RedisURL)
	str(&config.LogBackend, c.LogBackend)
	str(&config.LogLevel, c.LogLevel)
	str(&config.LogFormat, c.LogFormat)

	if c.ShutdownTimeout != nil {
		config.ShutdownTimeout = c.ShutdownTimeout.Duration
	}
	if c.ConnMaxLifetime != nil {
		config.ConnMaxLifetime = c.ConnMaxLifetime.Duration
	}
	if c.TokenValidityDuration != nil {
		config.TokenValidityDuration = c.TokenValidityDuration.Duration
	}
	if c.AITimeout != nil {
		config.AITimeout = c.AITimeout.Duration
	}
	if c.AIRateWindow != nil {
		config.AIRateWindow = c.AIRateWindow.Duration
	}
	if c.MaxOpenConns != nil {
		config.MaxOpenConns = *c.MaxOpenConns
	}
	if c.MaxIdleConns != nil {
		config.MaxIdleConns = *c.MaxIdleConns
	}
	if c.AIRateLimit != nil {
		config.AIRateLimit = *c.AIRateLimit
	}
	if c.SeedDemoData != nil {
		config.SeedDemoData = *c.SeedDemoData
	}
	if c.AllowedOrigins != nil {
		config.AllowedOrigins = c.AllowedOrigins
	}
}
