package config

import (
	"errors"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.ListenAddr != DefaultListenAddr || cfg.Room != DefaultRoom || cfg.Identity != DefaultIdentity {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.LogLevel != DefaultLogLevel {
		t.Errorf("log level default: %q", cfg.LogLevel)
	}
}

func TestValidate(t *testing.T) {
	t.Run("missing server URL", func(t *testing.T) {
		cfg := Default()
		err := cfg.Validate()
		var cfgErr *ConfigError
		if !errors.As(err, &cfgErr) || cfgErr.Field != "ServerURL" {
			t.Errorf("expected ServerURL config error, got %v", err)
		}
	})

	t.Run("complete config passes", func(t *testing.T) {
		cfg := Default()
		cfg.ServerURL = "https://api.example.com"
		if err := cfg.Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("missing room", func(t *testing.T) {
		cfg := Default()
		cfg.ServerURL = "https://api.example.com"
		cfg.Room = ""
		if err := cfg.Validate(); err == nil {
			t.Error("expected error for empty room")
		}
	})
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("VOICEBOARD_SERVER_URL", "https://env.example.com")
	t.Setenv("VOICEBOARD_ROOM", "envroom")
	t.Setenv("VOICEBOARD_API_KEY", "envkey")
	t.Setenv("VOICEBOARD_NO_MEDIA", "true")

	cfg := Default()
	cfg.LoadEnv()

	if cfg.ServerURL != "https://env.example.com" || cfg.Room != "envroom" {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
	if cfg.APIKey != "envkey" {
		t.Errorf("api key: %q", cfg.APIKey)
	}
	if !cfg.NoMedia {
		t.Error("no-media flag not parsed")
	}
}

func TestUseOAuth(t *testing.T) {
	cfg := Default()
	if cfg.UseOAuth() {
		t.Error("empty credentials should not enable oauth")
	}
	cfg.OAuthClientID = "id"
	cfg.OAuthClientSecret = "secret"
	if cfg.UseOAuth() {
		t.Error("token URL is required for oauth")
	}
	cfg.OAuthTokenURL = "https://auth.example.com/token"
	if !cfg.UseOAuth() {
		t.Error("all three values should enable oauth")
	}
}
