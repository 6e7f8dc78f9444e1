package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Port      string
	Env       string
	AgentName string

	// PublicURL is the URL this agent advertises to peers (the reachability
	// provider); treated as an opaque string.
	PublicURL string

	DatabasePath string

	// Cooldown accounting for automatic replies
	MaxExchanges int
	Cooldown     time.Duration

	// Presence tracking
	HeartbeatInterval time.Duration
	OfflineAfter      time.Duration

	// Notification sink
	NotifyWebhookURL string

	// Automatic reply; empty disables the reply generator
	AutoReplyText string

	RateLimitWhitelist []string // IPs or CIDRs exempt from rate limiting
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnv("PORT", "8384"),
		Env:               getEnv("ENV", "development"),
		AgentName:         getEnv("AGENT_NAME", "agent"),
		PublicURL:         os.Getenv("PUBLIC_URL"),
		DatabasePath:      os.Getenv("DATABASE_PATH"),
		MaxExchanges:      getEnvInt("MAX_EXCHANGES", 5),
		Cooldown:          time.Duration(getEnvInt("COOLDOWN_MINUTES", 30)) * time.Minute,
		HeartbeatInterval: time.Duration(getEnvInt("HEARTBEAT_INTERVAL_SECONDS", 30)) * time.Second,
		NotifyWebhookURL:  os.Getenv("NOTIFY_WEBHOOK_URL"),
		AutoReplyText:     os.Getenv("AUTO_REPLY_TEXT"),
	}

	// Online means a heartbeat within 3 probe periods (tolerates one missed beat)
	cfg.OfflineAfter = 3 * cfg.HeartbeatInterval

	// Parse whitelist (comma-separated IPs or CIDRs)
	if whitelist := os.Getenv("RATE_LIMIT_WHITELIST"); whitelist != "" {
		for _, entry := range strings.Split(whitelist, ",") {
			entry = strings.TrimSpace(entry)
			if entry != "" {
				cfg.RateLimitWhitelist = append(cfg.RateLimitWhitelist, entry)
			}
		}
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return defaultValue
	}
	return n
}
