// Package auth はSpotifyのOAuth認証フロー、トークンストア、セッション管理を提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"
)

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換する。
	ExchangeCode(ctx context.Context, code string) (*Grant, error)
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	oauth    OAuthProvider
	sessions *SessionManager
}

// NewService はServiceを生成する。
func NewService(oauth OAuthProvider, sessions *SessionManager) *Service {
	return &Service{
		oauth:    oauth,
		sessions: sessions,
	}
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) string {
	return s.oauth.GetLoginURL(state)
}

// HandleCallback は認可コードを資格情報に交換し、セッションのトークンストアに保存する。
// 失敗時はトークンストアを変更しない。
func (s *Service) HandleCallback(ctx context.Context, session *Session, code string) error {
	if session == nil {
		return fmt.Errorf("session is required")
	}
	if code == "" {
		return fmt.Errorf("authorization code is required")
	}

	grant, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	session.Tokens.Store(grant.AccessToken, grant.RefreshToken, grant.ExpiresIn)

	slog.Info("spotify credentials stored",
		slog.String("session_id", session.ID),
		slog.Int64("expires_in", grant.ExpiresIn),
	)
	return nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	s.sessions.Delete(sessionID)

	slog.Info("session discarded", slog.String("session_id", sessionID))
	return nil
}
