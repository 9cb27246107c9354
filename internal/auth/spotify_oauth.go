package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

const (
	defaultSpotifyAuthURL  = "https://accounts.spotify.com/authorize"
	defaultSpotifyTokenURL = "https://accounts.spotify.com/api/token"
)

// SpotifyScopes はダッシュボードが要求するスコープ。再生状態の読み取りのみ。
var SpotifyScopes = []string{
	"user-read-currently-playing",
	"user-read-playback-state",
}

// SpotifyOAuthConfig はSpotify OAuthプロバイダーの設定。
type SpotifyOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// テスト用にオーバーライド可能なURL
	AuthURL  string
	TokenURL string

	// HTTPClient はトークンエンドポイントへのリクエストに使う。nilの場合は10秒タイムアウト。
	HTTPClient *http.Client
}

// Grant はトークンエンドポイントから得た資格情報。
type Grant struct {
	AccessToken  string
	RefreshToken string
	// ExpiresIn はアクセストークンの有効期間（秒）。
	ExpiresIn int64
}

// SpotifyOAuthProvider はSpotifyの認可コードフローとトークンリフレッシュを提供する。
type SpotifyOAuthProvider struct {
	conf       *oauth2.Config
	httpClient *http.Client
	now        func() time.Time
}

// NewSpotifyOAuthProvider はSpotifyOAuthProviderを生成する。
func NewSpotifyOAuthProvider(config SpotifyOAuthConfig) *SpotifyOAuthProvider {
	if config.AuthURL == "" {
		config.AuthURL = defaultSpotifyAuthURL
	}
	if config.TokenURL == "" {
		config.TokenURL = defaultSpotifyTokenURL
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &SpotifyOAuthProvider{
		conf: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURL,
			Scopes:       SpotifyScopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   config.AuthURL,
				TokenURL:  config.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		httpClient: config.HTTPClient,
		now:        time.Now,
	}
}

// GetLoginURL はSpotifyの認可ページURLを生成する。
func (p *SpotifyOAuthProvider) GetLoginURL(state string) string {
	return p.conf.AuthCodeURL(state)
}

// ExchangeCode は認可コードをアクセストークンとリフレッシュトークンに交換する。
func (p *SpotifyOAuthProvider) ExchangeCode(ctx context.Context, code string) (*Grant, error) {
	tok, err := p.conf.Exchange(p.clientContext(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("empty access token in response")
	}
	return p.grantFromToken(tok), nil
}

// Refresh はリフレッシュトークンで新しいアクセストークンを取得する。
// レスポンスにリフレッシュトークンが含まれない場合は元のトークンが引き継がれる。
func (p *SpotifyOAuthProvider) Refresh(ctx context.Context, refreshToken string) (*Grant, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("refresh token is empty")
	}
	src := p.conf.TokenSource(p.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("token refresh failed: %w", err)
	}
	return p.grantFromToken(tok), nil
}

func (p *SpotifyOAuthProvider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

// grantFromToken はexpires_inを優先し、なければExpiryから有効期間を逆算する。
func (p *SpotifyOAuthProvider) grantFromToken(tok *oauth2.Token) *Grant {
	lifetime := tok.ExpiresIn
	if lifetime <= 0 && !tok.Expiry.IsZero() {
		lifetime = int64(tok.Expiry.Sub(p.now()).Round(time.Second) / time.Second)
	}
	if lifetime < 0 {
		lifetime = 0
	}
	return &Grant{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresIn:    lifetime,
	}
}

// compile-time interface check
var _ OAuthProvider = (*SpotifyOAuthProvider)(nil)
