package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimalConfig = `{
  "spotify": {
    "client_id": "test-client-id",
    "client_secret": "test-client-secret",
    "redirect_uri": "http://127.0.0.1:8080/callback"
  },
  "discord": {
    "token": "test-bot-token",
    "user_id": "316238373641519105"
  }
}`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad_MinimalConfig_ReturnsConfig(t *testing.T) {
	path := writeConfig(t, "config.json", minimalConfig)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.SpotifyClientID != "test-client-id" {
		t.Errorf("SpotifyClientID = %q, want %q", cfg.SpotifyClientID, "test-client-id")
	}
	if cfg.SpotifyClientSecret != "test-client-secret" {
		t.Errorf("SpotifyClientSecret = %q, want %q", cfg.SpotifyClientSecret, "test-client-secret")
	}
	if cfg.SpotifyRedirectURI != "http://127.0.0.1:8080/callback" {
		t.Errorf("SpotifyRedirectURI = %q", cfg.SpotifyRedirectURI)
	}
	if cfg.DiscordToken != "test-bot-token" {
		t.Errorf("DiscordToken = %q, want %q", cfg.DiscordToken, "test-bot-token")
	}
	if cfg.DiscordUserID != "316238373641519105" {
		t.Errorf("DiscordUserID = %q", cfg.DiscordUserID)
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	path := writeConfig(t, "config.json", minimalConfig)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.DiscordPollInterval != 30*time.Second {
		t.Errorf("DiscordPollInterval = %v, want %v", cfg.DiscordPollInterval, 30*time.Second)
	}
	if cfg.DiscordReadyTimeout != 30*time.Second {
		t.Errorf("DiscordReadyTimeout = %v, want %v", cfg.DiscordReadyTimeout, 30*time.Second)
	}
	if cfg.UpstreamTimeout != 10*time.Second {
		t.Errorf("UpstreamTimeout = %v, want %v", cfg.UpstreamTimeout, 10*time.Second)
	}
	if cfg.SessionMaxAge != 86400 {
		t.Errorf("SessionMaxAge = %d, want %d", cfg.SessionMaxAge, 86400)
	}
	if cfg.RateLimitGeneral != 120 {
		t.Errorf("RateLimitGeneral = %d, want %d", cfg.RateLimitGeneral, 120)
	}
	if cfg.RateLimitLogin != 10 {
		t.Errorf("RateLimitLogin = %d, want %d", cfg.RateLimitLogin, 10)
	}
	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %q, want %q", cfg.ServerPort, "8080")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if cfg.PublishTarget != "http://127.0.0.1:8080" {
		t.Errorf("PublishTarget = %q", cfg.PublishTarget)
	}
	if cfg.PublishRetryMax != 0 {
		t.Errorf("PublishRetryMax = %d, want %d", cfg.PublishRetryMax, 0)
	}
	if cfg.CookieSecure {
		t.Error("CookieSecure should be false for http base URL")
	}
}

func TestLoad_MissingFile_ReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoad_UnparseableFile_ReturnsError(t *testing.T) {
	path := writeConfig(t, "config.json", `{"spotify": {`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for malformed config file")
	}
}

func TestLoad_MissingRequiredKeys_ListsThem(t *testing.T) {
	path := writeConfig(t, "config.json", `{"spotify": {"client_id": "x"}}`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for missing required keys")
	}
	for _, key := range []string{"spotify.client_secret", "spotify.redirect_uri", "discord.token", "discord.user_id"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error should mention %q, got %v", key, err)
		}
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "config.json", minimalConfig)
	t.Setenv("HARMONY_DISCORD_TOKEN", "env-token")
	t.Setenv("HARMONY_DISCORD_POLL_INTERVAL", "45s")
	t.Setenv("HARMONY_SERVER_BASE_URL", "https://dash.example.com")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.DiscordToken != "env-token" {
		t.Errorf("DiscordToken = %q, want %q", cfg.DiscordToken, "env-token")
	}
	if cfg.DiscordPollInterval != 45*time.Second {
		t.Errorf("DiscordPollInterval = %v, want %v", cfg.DiscordPollInterval, 45*time.Second)
	}
	if !cfg.CookieSecure {
		t.Error("CookieSecure should be true for https base URL")
	}
}

func TestLoad_TOMLFile(t *testing.T) {
	path := writeConfig(t, "config.toml", `
[spotify]
client_id = "toml-id"
client_secret = "toml-secret"
redirect_uri = "http://127.0.0.1:8080/callback"

[discord]
token = "toml-token"
user_id = "42"
display_name = "Fractal"
tag = "Frac."
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.SpotifyClientID != "toml-id" {
		t.Errorf("SpotifyClientID = %q, want %q", cfg.SpotifyClientID, "toml-id")
	}
	if cfg.DiscordDisplayName != "Fractal" || cfg.DiscordTag != "Frac." {
		t.Errorf("display name/tag = %q/%q", cfg.DiscordDisplayName, cfg.DiscordTag)
	}
}

func TestLoad_InvalidPollInterval_ReturnsError(t *testing.T) {
	path := writeConfig(t, "config.json", minimalConfig)
	t.Setenv("HARMONY_DISCORD_POLL_INTERVAL", "0s")

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for non-positive poll interval")
	}
}
