package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/harmony/internal/metrics"
	"github.com/hitoshi/harmony/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector
	Sessions          middleware.SessionStore
	SessionCookie     middleware.SessionCookieConfig
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ステータス
	PlaybackService PlaybackServiceInterface
	PresenceStore   PresenceStore

	// 運用
	HealthChecker  HealthChecker
	MetricsHandler http.Handler
	StaticDir      string
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → Metrics → SecurityHeaders → CORS → (RateLimit) → (Session)
//
// プレゼンス系のルートはセッションを持たない。セッションは/loginと/callbackでのみ発行する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	statusHandler := NewStatusHandler(deps.PlaybackService, deps.PresenceStore)
	healthHandler := NewHealthHandler(deps.HealthChecker)

	// --- 運用エンドポイント ---
	r.Get("/health", healthHandler.Health)
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// --- 内部更新ルート ---
	// 認証なし。workerモードのウォッチャーからのみ呼ばれる前提の信頼境界。
	r.Post("/api/update-discord", statusHandler.UpdateDiscord)

	// --- プレゼンスの読み取りルート ---
	// ストアのポインタを読むだけで副作用がないため、ポーリング中のクライアントに
	// 429を返さないようレート制限とセッションの対象外とする。
	r.Get("/api/discord-status", statusHandler.DiscordStatus)

	// --- 既存セッションだけを参照するルート ---
	// ミドルウェアスタック: RateLimit(General) → SessionLookup
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewSessionLookupMiddleware(deps.Sessions))

		r.Get("/api/status", statusHandler.Status)
		r.Get("/api/spotify-current", statusHandler.SpotifyCurrent)
		r.Post("/logout", authHandler.Logout)
	})

	// --- OAuthフロー ---
	// ミドルウェアスタック: RateLimit(General) → RateLimit(Login) → Session
	// セッションはここでのみ発行される。
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(deps.RateLimiter.LoginMiddleware())
		r.Use(middleware.NewSessionMiddleware(deps.Sessions, deps.SessionCookie))

		r.Get(LoginPath, authHandler.Login)
		r.Get("/callback", authHandler.Callback)
	})

	// --- 静的ダッシュボード ---
	if deps.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(deps.StaticDir)))
	}

	return r
}
