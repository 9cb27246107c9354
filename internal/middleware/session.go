// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/harmony/internal/auth"
)

// SessionCookieName はブラウザセッションIDを保持するCookie名。
const SessionCookieName = "harmony_session"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// sessionContextKey はリクエストコンテキストにセッションを格納するためのキー。
var sessionContextKey = contextKey("session")

// SessionStore はセッションの検索と発行に必要なインターフェース。
// *auth.SessionManager が実装する。
type SessionStore interface {
	Get(id string) (*auth.Session, bool)
	Create() *auth.Session
}

// SessionCookieConfig はセッションCookieの属性。
type SessionCookieConfig struct {
	MaxAge int  // 秒
	Secure bool // HTTPS配信時のみtrue
}

// NewSessionMiddleware はHTTP Only Cookieからセッションを読み取るミドルウェアを返す。
// 有効なセッションがない場合は新しいセッションを発行してCookieを設定する。
// セッションを必要とするOAuthフローのルートにのみ適用する。
func NewSessionMiddleware(store SessionStore, cfg SessionCookieConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := lookupSession(store, r)
			if session == nil {
				session = store.Create()
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookieName,
					Value:    session.ID,
					Path:     "/",
					MaxAge:   cfg.MaxAge,
					HttpOnly: true,
					Secure:   cfg.Secure,
					SameSite: http.SameSiteLaxMode,
				})
				slog.Debug("session created", slog.String("session_id", session.ID))
			}

			next.ServeHTTP(w, r.WithContext(withSession(r.Context(), session)))
		})
	}
}

// NewSessionLookupMiddleware は既存のセッションだけをコンテキストに注入する。
// Cookieがないか失効している場合はセッションなしで次のハンドラーを呼ぶ。
// ポーリングされる読み取りルートでセッションが溜まらないようにするため、発行はしない。
func NewSessionLookupMiddleware(store SessionStore) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if session := lookupSession(store, r); session != nil {
				r = r.WithContext(withSession(r.Context(), session))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func lookupSession(store SessionStore, r *http.Request) *auth.Session {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	session, ok := store.Get(cookie.Value)
	if !ok {
		return nil
	}
	return session
}

func withSession(ctx context.Context, session *auth.Session) context.Context {
	recordSessionID(ctx, session.ID)
	return context.WithValue(ctx, sessionContextKey, session)
}

// SessionFromContext はリクエストコンテキストからセッションを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func SessionFromContext(ctx context.Context) (*auth.Session, error) {
	session, ok := ctx.Value(sessionContextKey).(*auth.Session)
	if !ok || session == nil {
		return nil, fmt.Errorf("session not found in context")
	}
	return session, nil
}

// ContextWithSession はコンテキストにセッションを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithSession(ctx context.Context, session *auth.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}

// ClearSessionCookie はセッションCookieを削除する。
func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
