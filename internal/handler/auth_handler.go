// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"

	"github.com/hitoshi/harmony/internal/auth"
	"github.com/hitoshi/harmony/internal/middleware"
)

const (
	oauthStateCookie = "oauth_state"
	// LoginPath はダッシュボードが再認証に使うログイン入口。
	LoginPath = "/login"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	GetLoginURL(state string) string
	HandleCallback(ctx context.Context, session *auth.Session, code string) error
	Logout(sessionID string) error
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieSecure bool
	// RedirectPath は認証完了・ログアウト後の遷移先。空の場合は "/"。
	RedirectPath string
}

// AuthHandler はSpotify OAuth関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	if config.RedirectPath == "" {
		config.RedirectPath = "/"
	}
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

// Login はSpotify OAuthフローを開始する。
// GET /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10分
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.service.GetLoginURL(state), http.StatusTemporaryRedirect)
}

// Callback はOAuthコールバックを処理する。
// GET /callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	// 1. stateの検証（CSRF対策）
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || stateCookie.Value != state {
		slog.Warn("oauth state mismatch",
			slog.String("query_state", state),
		)
		http.Error(w, "invalid state parameter", http.StatusBadRequest)
		return
	}

	// stateクッキーを削除
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	// 2. 認可コードの取得
	code := r.URL.Query().Get("code")
	if code == "" {
		slog.Warn("oauth callback without code",
			slog.String("error", r.URL.Query().Get("error")),
		)
		http.Error(w, "missing authorization code", http.StatusBadRequest)
		return
	}

	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteInternalServerError(w)
		return
	}

	// 3. 認可コードを資格情報に交換してセッションに保存
	if err := h.service.HandleCallback(r.Context(), session, code); err != nil {
		slog.Error("oauth callback failed", slog.String("error", err.Error()))
		http.Error(w, "Authentication error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	// 4. ダッシュボードにリダイレクト
	http.Redirect(w, r, h.config.RedirectPath, http.StatusFound)
}

// Logout はセッションを破棄する。資格情報もセッションと一緒に失われる。
// POST /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if session, err := middleware.SessionFromContext(r.Context()); err == nil {
		if logoutErr := h.service.Logout(session.ID); logoutErr != nil {
			slog.Error("failed to logout", slog.String("error", logoutErr.Error()))
			// ログアウト失敗してもCookieはクリアする
		}
	}

	middleware.ClearSessionCookie(w, h.config.CookieSecure)

	http.Redirect(w, r, h.config.RedirectPath, http.StatusSeeOther)
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
