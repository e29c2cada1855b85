// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultChatPort     = "8001"
	emulatorLoopback    = "10.0.2.2"
	localLoopback       = "localhost"
	defaultHistoryLimit = 10
)

// Config holds all application configuration.
type Config struct {
	Chat     ChatConfig
	Summary  SummaryConfig
	API      APIConfig
	User     UserConfig
	Server   ServerConfig
	LogFile  string
	LogLevel string
}

// ChatConfig controls the streaming chat connection.
type ChatConfig struct {
	Host           string
	ReconnectDelay time.Duration
	HistoryLimit   int
}

// SummaryConfig controls the end-of-session summarization pipeline.
type SummaryConfig struct {
	BaseURL     string
	MinTurns    int
	GracePeriod time.Duration
}

// APIConfig controls the persistence API client.
type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

// UserConfig carries the identity used by the terminal client.
type UserConfig struct {
	ID    string
	Token string
	Name  string
}

// ServerConfig holds the development backend settings.
type ServerConfig struct {
	Port          string
	DBPath        string
	Retention     time.Duration
	ChatRateLimit int
	FrontendURL   string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	host := ChatHost()

	cfg := &Config{
		Chat: ChatConfig{
			Host:           host,
			ReconnectDelay: getEnvDuration("RECONNECT_DELAY", 3*time.Second),
			HistoryLimit:   getEnvInt("HISTORY_LIMIT", defaultHistoryLimit),
		},
		Summary: SummaryConfig{
			BaseURL:     getEnv("SUMMARY_URL", "http://"+host),
			MinTurns:    getEnvInt("SUMMARY_MIN_TURNS", 2),
			GracePeriod: getEnvDuration("SUMMARY_GRACE_PERIOD", 2*time.Minute),
		},
		API: APIConfig{
			BaseURL: getEnv("API_BASE_URL", "http://"+host),
			Timeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),
		},
		User: UserConfig{
			ID:    getEnv("CHAT_USER_ID", ""),
			Token: getEnv("CHAT_TOKEN", ""),
			Name:  getEnv("CHAT_USER_NAME", ""),
		},
		Server: ServerConfig{
			Port:          getEnv("PORT", defaultChatPort),
			DBPath:        getEnv("DB_PATH", "./data/chatcore.db"),
			Retention:     getEnvDuration("RETENTION", 90*24*time.Hour),
			ChatRateLimit: getEnvInt("CHAT_RATE_LIMIT", 20),
			FrontendURL:   getEnv("FRONTEND_URL", ""),
		},
		LogFile:  getEnv("LOG_FILE", ""),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Chat.Host == "" {
		return fmt.Errorf("CHAT_HOST cannot be empty")
	}
	if c.Chat.ReconnectDelay <= 0 {
		return fmt.Errorf("RECONNECT_DELAY must be > 0")
	}
	if c.Chat.HistoryLimit < 0 {
		return fmt.Errorf("HISTORY_LIMIT must be >= 0")
	}
	if c.Summary.MinTurns < 1 {
		return fmt.Errorf("SUMMARY_MIN_TURNS must be >= 1")
	}
	if c.Summary.GracePeriod <= 0 {
		return fmt.Errorf("SUMMARY_GRACE_PERIOD must be > 0")
	}
	if c.Server.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.Server.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.Server.ChatRateLimit <= 0 {
		return fmt.Errorf("CHAT_RATE_LIMIT must be > 0")
	}
	return nil
}

// ChatHost returns host:port of the chat backend for the current runtime.
// The Android emulator reaches the host machine through 10.0.2.2 rather than
// its own loopback.
func ChatHost() string {
	if host := strings.TrimSpace(os.Getenv("CHAT_HOST")); host != "" {
		return host
	}
	if IsAndroidEmulator() {
		return emulatorLoopback + ":" + defaultChatPort
	}
	return localLoopback + ":" + defaultChatPort
}

// IsAndroidEmulator returns true if CHAT_EMULATOR=android.
func IsAndroidEmulator() bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv("CHAT_EMULATOR")), "android")
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.FrontendURL == "" ||
		strings.Contains(c.Server.FrontendURL, "localhost") ||
		strings.Contains(c.Server.FrontendURL, "127.0.0.1")
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
