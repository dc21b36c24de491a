// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds the application configuration.
type Config struct {
	DiscordBotToken        string
	DatabasePath           string
	LogLevel               string
	RefreshIntervalHours   int
	MaxConcurrentRefreshes int
	AdminUsers             []string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	token := os.Getenv("DISCORD_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("DISCORD_BOT_TOKEN is required")
	}

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "./data/bot.db"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	interval := 6
	if raw := os.Getenv("REFRESH_INTERVAL_HOURS"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > 168 {
			return nil, fmt.Errorf("REFRESH_INTERVAL_HOURS must be between 1 and 168, got %q", raw)
		}
		interval = v
	}

	concurrent := 2
	if raw := os.Getenv("MAX_CONCURRENT_REFRESHES"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > 16 {
			return nil, fmt.Errorf("MAX_CONCURRENT_REFRESHES must be between 1 and 16, got %q", raw)
		}
		concurrent = v
	}

	var admins []string
	if raw := os.Getenv("ADMIN_USERS"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			if _, err := strconv.ParseUint(s, 10, 64); err != nil {
				return nil, fmt.Errorf("invalid user ID %q in ADMIN_USERS: %w", s, err)
			}
			admins = append(admins, s)
		}
	}

	return &Config{
		DiscordBotToken:        token,
		DatabasePath:           dbPath,
		LogLevel:               logLevel,
		RefreshIntervalHours:   interval,
		MaxConcurrentRefreshes: concurrent,
		AdminUsers:             admins,
	}, nil
}

// IsUserAllowed checks whether a user ID is in the admin allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID string) bool {
	if len(c.AdminUsers) == 0 {
		return true
	}
	for _, id := range c.AdminUsers {
		if id == userID {
			return true
		}
	}
	return false
}
