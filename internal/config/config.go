// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends selectable via STORE_BACKEND.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string

	StoreBackend  string
	DBPath        string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	SessionTTL     time.Duration
	OTPTTL         time.Duration
	ReaperInterval time.Duration

	SeedEmails []string

	SMTP SMTPConfig
	LLM  LLMConfig
}

// SMTPConfig configures the outbound mail relay. An empty Host disables
// SMTP delivery; OTP mail is then written to the log instead.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// LLMConfig configures the chat-completions client.
type LLMConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),

		StoreBackend:  strings.ToLower(getEnv("STORE_BACKEND", BackendSQLite)),
		DBPath:        getEnv("DB_PATH", "./data/namewise.db"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		SessionTTL:     getEnvDuration("SESSION_TTL", 30*time.Minute),
		OTPTTL:         getEnvDuration("OTP_TTL", 60*time.Second),
		ReaperInterval: getEnvDuration("REAPER_INTERVAL", 5*time.Minute),

		SeedEmails: splitList(getEnv("SEED_EMAILS", "")),

		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnv("SMTP_PORT", "587"),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", ""),
		},
		LLM: LLMConfig{
			APIKey:    getEnv("OPENAI_API_KEY", ""),
			BaseURL:   getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:     getEnv("OPENAI_MODEL", "gpt-3.5-turbo"),
			MaxTokens: getEnvInt("OPENAI_MAX_TOKENS", 150),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	switch c.StoreBackend {
	case BackendSQLite:
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH cannot be empty")
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR cannot be empty")
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendSQLite, BackendRedis, c.StoreBackend)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	if c.OTPTTL <= 0 {
		return fmt.Errorf("OTP_TTL must be > 0")
	}
	if c.ReaperInterval <= 0 {
		return fmt.Errorf("REAPER_INTERVAL must be > 0")
	}
	if c.LLM.BaseURL == "" {
		return fmt.Errorf("OPENAI_BASE_URL cannot be empty")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("OPENAI_MODEL cannot be empty")
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("OPENAI_MAX_TOKENS must be > 0")
	}
	if c.SMTP.Host != "" && c.SMTP.From == "" {
		return fmt.Errorf("SMTP_FROM cannot be empty when SMTP_HOST is set")
	}
	return nil
}

// SMTPEnabled returns true if an SMTP relay is configured.
func (c *Config) SMTPEnabled() bool {
	return c.SMTP.Host != ""
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
