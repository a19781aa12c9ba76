// Package config provides configuration for the voiceboard client.
// Flag parsing is done in cmd/voiceboard/main.go; this struct is data only.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Default configuration values.
const (
	DefaultListenAddr = ":8090"
	DefaultRoom       = "default"
	DefaultIdentity   = "voiceboard"
	DefaultLogLevel   = "info"
)

// Config holds all configuration for the voiceboard client.
type Config struct {
	// ServerURL is the base URL of the token/dispatch endpoint.
	ServerURL string

	// Room is the room name to join.
	Room string

	// Identity is the participant identity for this client.
	Identity string

	// ListenAddr is the dashboard listen address.
	ListenAddr string

	// LogLevel controls logging verbosity.
	LogLevel string

	// APIKey is a static bearer key for the token endpoint.
	APIKey string

	// OAuth client-credentials mode (used when all three are set).
	OAuthClientID     string
	OAuthClientSecret string
	OAuthTokenURL     string

	// NoMedia disables the WebRTC media peer (side-channel only).
	NoMedia bool
}

// Default returns sensible defaults for voiceboard configuration.
func Default() Config {
	return Config{
		Room:       DefaultRoom,
		Identity:   DefaultIdentity,
		ListenAddr: DefaultListenAddr,
		LogLevel:   DefaultLogLevel,
	}
}

// LoadEnv loads configuration values from environment variables.
// A .env file in the working directory is loaded first if present.
// Call this after flag parsing to apply environment overrides.
func (c *Config) LoadEnv() {
	_ = godotenv.Load()

	if v := os.Getenv("VOICEBOARD_SERVER_URL"); v != "" {
		c.ServerURL = v
	}
	if v := os.Getenv("VOICEBOARD_ROOM"); v != "" {
		c.Room = v
	}
	if v := os.Getenv("VOICEBOARD_IDENTITY"); v != "" {
		c.Identity = v
	}
	if v := os.Getenv("VOICEBOARD_LISTEN"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("VOICEBOARD_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	c.APIKey = os.Getenv("VOICEBOARD_API_KEY")
	c.OAuthClientID = os.Getenv("VOICEBOARD_OAUTH_CLIENT_ID")
	c.OAuthClientSecret = os.Getenv("VOICEBOARD_OAUTH_CLIENT_SECRET")
	c.OAuthTokenURL = os.Getenv("VOICEBOARD_OAUTH_TOKEN_URL")

	if v := os.Getenv("VOICEBOARD_NO_MEDIA"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.NoMedia = b
		}
	}
}

// UseOAuth reports whether client-credentials token fetching is configured.
func (c *Config) UseOAuth() bool {
	return c.OAuthClientID != "" && c.OAuthClientSecret != "" && c.OAuthTokenURL != ""
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return &ConfigError{Field: "ServerURL", Message: "VOICEBOARD_SERVER_URL environment variable or -server flag is required"}
	}
	if c.Room == "" {
		return &ConfigError{Field: "Room", Message: "room name is required"}
	}
	if c.Identity == "" {
		return &ConfigError{Field: "Identity", Message: "participant identity is required"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}
