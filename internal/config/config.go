// Package config は設定ファイルと環境変数からアプリケーション設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultConfigFile は--config未指定時に読み込む設定ファイル名。
const DefaultConfigFile = "config.json"

// envPrefix は環境変数による上書きのプレフィックス。
// 例: HARMONY_SPOTIFY_CLIENT_ID
const envPrefix = "HARMONY"

// Config はアプリケーション全体の設定を保持する。
// 起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Spotify
	SpotifyClientID     string
	SpotifyClientSecret string
	SpotifyRedirectURI  string

	// Discord
	DiscordToken        string
	DiscordUserID       string
	DiscordDisplayName  string
	DiscordTag          string
	DiscordPollInterval time.Duration
	DiscordReadyTimeout time.Duration

	// Upstream
	UpstreamTimeout time.Duration

	// Session
	SessionMaxAge int

	// Rate Limit（req/min）
	RateLimitGeneral int
	RateLimitLogin   int

	// Logging
	LogLevel string
	LogFile  string

	// Publish（workerモード）
	PublishTarget   string
	PublishRetryMax int

	// Server
	ServerPort        string
	BaseURL           string
	CORSAllowedOrigin string
	StaticDir         string

	// Cookie
	CookieSecure bool
}

// requiredKeys は設定ファイルまたは環境変数で必ず指定されるべきキー。
var requiredKeys = []string{
	"spotify.client_id",
	"spotify.client_secret",
	"spotify.redirect_uri",
	"discord.token",
	"discord.user_id",
}

// Load は指定パスの設定ファイルを読み込み、環境変数で上書きしたConfigを返す。
// pathが空の場合はDefaultConfigFileを使用する。
// ファイルが読めない・パースできない・必須キーが欠けている場合はエラーを返す。
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFile
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.base_url", "http://127.0.0.1:8080")
	v.SetDefault("server.cors_allowed_origin", "*")
	v.SetDefault("server.static_dir", "")
	v.SetDefault("session.max_age", 86400)
	v.SetDefault("discord.display_name", "")
	v.SetDefault("discord.tag", "")
	v.SetDefault("discord.poll_interval", "30s")
	v.SetDefault("discord.ready_timeout", "30s")
	v.SetDefault("upstream.timeout", "10s")
	v.SetDefault("ratelimit.general_per_minute", 120)
	v.SetDefault("ratelimit.login_per_minute", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("publish.target", "http://127.0.0.1:8080")
	v.SetDefault("publish.retry_max", 0)
}

func fromViper(v *viper.Viper) (*Config, error) {
	var missing []string
	for _, key := range requiredKeys {
		if strings.TrimSpace(v.GetString(key)) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("required config keys are not set: %v", missing)
	}

	cfg := &Config{
		SpotifyClientID:     v.GetString("spotify.client_id"),
		SpotifyClientSecret: v.GetString("spotify.client_secret"),
		SpotifyRedirectURI:  v.GetString("spotify.redirect_uri"),

		DiscordToken:        v.GetString("discord.token"),
		DiscordUserID:       v.GetString("discord.user_id"),
		DiscordDisplayName:  v.GetString("discord.display_name"),
		DiscordTag:          v.GetString("discord.tag"),
		DiscordPollInterval: v.GetDuration("discord.poll_interval"),
		DiscordReadyTimeout: v.GetDuration("discord.ready_timeout"),

		UpstreamTimeout: v.GetDuration("upstream.timeout"),
		SessionMaxAge:   v.GetInt("session.max_age"),

		RateLimitGeneral: v.GetInt("ratelimit.general_per_minute"),
		RateLimitLogin:   v.GetInt("ratelimit.login_per_minute"),

		LogLevel: v.GetString("log.level"),
		LogFile:  v.GetString("log.file"),

		PublishTarget:   strings.TrimRight(v.GetString("publish.target"), "/"),
		PublishRetryMax: v.GetInt("publish.retry_max"),

		ServerPort:        v.GetString("server.port"),
		BaseURL:           v.GetString("server.base_url"),
		CORSAllowedOrigin: v.GetString("server.cors_allowed_origin"),
		StaticDir:         v.GetString("server.static_dir"),
	}
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate は値の範囲を検証する。
func (c *Config) validate() error {
	var errs []error
	if c.DiscordPollInterval <= 0 {
		errs = append(errs, fmt.Errorf("discord.poll_interval must be positive, got %s", c.DiscordPollInterval))
	}
	if c.DiscordReadyTimeout <= 0 {
		errs = append(errs, fmt.Errorf("discord.ready_timeout must be positive, got %s", c.DiscordReadyTimeout))
	}
	if c.UpstreamTimeout <= 0 {
		errs = append(errs, fmt.Errorf("upstream.timeout must be positive, got %s", c.UpstreamTimeout))
	}
	if c.SessionMaxAge <= 0 {
		errs = append(errs, fmt.Errorf("session.max_age must be positive, got %d", c.SessionMaxAge))
	}
	if c.RateLimitGeneral <= 0 || c.RateLimitLogin <= 0 {
		errs = append(errs, fmt.Errorf("ratelimit values must be positive"))
	}
	if c.PublishRetryMax < 0 {
		errs = append(errs, fmt.Errorf("publish.retry_max must not be negative, got %d", c.PublishRetryMax))
	}
	return errors.Join(errs...)
}
