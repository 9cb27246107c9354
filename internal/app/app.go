// Package app は設定の読み込み、依存関係のワイヤリング、各起動モードの実行を提供する。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/hitoshi/harmony/internal/auth"
	"github.com/hitoshi/harmony/internal/config"
	"github.com/hitoshi/harmony/internal/discord"
	"github.com/hitoshi/harmony/internal/handler"
	"github.com/hitoshi/harmony/internal/logger"
	"github.com/hitoshi/harmony/internal/metrics"
	"github.com/hitoshi/harmony/internal/middleware"
	"github.com/hitoshi/harmony/internal/model"
	"github.com/hitoshi/harmony/internal/presence"
	"github.com/hitoshi/harmony/internal/publish"
	"github.com/hitoshi/harmony/internal/security"
	"github.com/hitoshi/harmony/internal/spotify"
	"github.com/hitoshi/harmony/internal/worker/cleanup"
	"github.com/hitoshi/harmony/internal/worker/poll"
)

// shutdownTimeout はグレースフルシャットダウンの待ち時間。
const shutdownTimeout = 30 * time.Second

// Init はアプリケーションの初期化を行う。
// 設定ファイルを読み込み、設定に従ってJSON構造化ログをセットアップする。
// 戻り値のio.Closerはログファイルを閉じるために使う。
func Init(w io.Writer, configPath string) (*config.Config, io.Closer, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 設定ファイルと環境変数から設定を読み込む
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定値でロガーを再構成する
	closer := logger.Configure(w, cfg.LogLevel, cfg.LogFile)

	return cfg, closer, nil
}

// Run はアプリケーションのメインエントリーポイント。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	root := NewRootCommand(w)
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}

// runWithConfig は設定を読み込み、SIGINT/SIGTERMでキャンセルされるコンテキストで各モードを実行する。
func runWithConfig(cmd *cobra.Command, w io.Writer, configPath string, mode Command) error {
	cfg, closer, err := Init(w, configPath)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	defer closer.Close()

	slog.Info("starting application",
		slog.String("command", string(mode)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch mode {
	case CommandWorker:
		return runWorker(ctx, cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// newMetrics はプロセス用のレジストリとコレクターを生成する。
func newMetrics() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewCollector(reg)
}

// startWatcher はDiscordゲートウェイに接続し、プレゼンスウォッチャーを生成する。
// 接続またはReady待ちに失敗した場合はエラーを返す。縮退運転はしない。
func startWatcher(ctx context.Context, cfg *config.Config, publisher poll.Publisher, mc metrics.MetricsCollector) (*discord.Gateway, *poll.Watcher, error) {
	discord.RouteLogs(slog.Default())

	gateway, err := discord.NewGateway(cfg.DiscordToken, slog.Default())
	if err != nil {
		return nil, nil, err
	}
	if err := gateway.Open(ctx, cfg.DiscordReadyTimeout); err != nil {
		return nil, nil, fmt.Errorf("failed to establish discord session: %w", err)
	}

	normalizer := presence.NewNormalizer(
		presence.Identity{DisplayName: cfg.DiscordDisplayName, Tag: cfg.DiscordTag},
		security.NewTextSanitizer(),
		time.Now,
		slog.Default(),
	)
	watcher := poll.NewWatcher(gateway, normalizer, publisher, mc, slog.Default(), cfg.DiscordUserID)
	return gateway, watcher, nil
}

// runServe はAPIサーバーモードで起動する。
// 全依存関係をワイヤリングし、プレゼンスウォッチャーとHTTPサーバーを起動する。
// コンテキストがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	// 1. メトリクス
	reg, mc := newMetrics()

	// 2. 認証とセッション
	sessions := auth.NewSessionManager(time.Duration(cfg.SessionMaxAge)*time.Second, nil)
	oauthProvider := auth.NewSpotifyOAuthProvider(auth.SpotifyOAuthConfig{
		ClientID:     cfg.SpotifyClientID,
		ClientSecret: cfg.SpotifyClientSecret,
		RedirectURL:  cfg.SpotifyRedirectURI,
		HTTPClient:   &http.Client{Timeout: cfg.UpstreamTimeout},
	})
	authService := auth.NewService(oauthProvider, sessions)

	// 3. 再生状態
	spotifyClient := spotify.NewClient(&http.Client{Timeout: cfg.UpstreamTimeout}, slog.Default())
	playbackService := spotify.NewService(oauthProvider, spotifyClient, mc, slog.Default())

	// 4. プレゼンス（初期値は設定上の名前でオフライン）
	store := presence.NewStore(model.OfflineSnapshot(cfg.DiscordDisplayName, cfg.DiscordTag))
	gateway, watcher, err := startWatcher(ctx, cfg, store, mc)
	if err != nil {
		return err
	}
	defer gateway.Close()

	// 5. バックグラウンドジョブ
	cleanupJob := cleanup.NewCleanupJob(sessions, slog.Default())
	go cleanupJob.Start(ctx, cleanup.DefaultInterval)
	go watcher.Start(ctx, cfg.DiscordPollInterval)

	// 6. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral, cfg.RateLimitLogin),
	)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:   slog.Default(),
		Metrics:  mc,
		Sessions: sessions,
		SessionCookie: middleware.SessionCookieConfig{
			MaxAge: cfg.SessionMaxAge,
			Secure: cfg.CookieSecure,
		},
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,

		AuthService: authService,
		AuthConfig:  handler.AuthHandlerConfig{CookieSecure: cfg.CookieSecure},

		PlaybackService: playbackService,
		PresenceStore:   store,

		HealthChecker:  gateway,
		MetricsHandler: metrics.Handler(reg),
		StaticDir:      cfg.StaticDir,
	})

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	}

	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// プレゼンスウォッチャーのみを実行し、スナップショットをserveインスタンスへHTTPで送る。
// コンテキストがキャンセルされるとシャットダウンする。
func runWorker(ctx context.Context, cfg *config.Config) error {
	_, mc := newMetrics()

	publisher := publish.NewHTTPPublisher(cfg.PublishTarget, cfg.PublishRetryMax, cfg.UpstreamTimeout, slog.Default())

	gateway, watcher, err := startWatcher(ctx, cfg, publisher, mc)
	if err != nil {
		return err
	}
	defer gateway.Close()

	slog.Info("worker starting",
		slog.Duration("poll_interval", cfg.DiscordPollInterval),
		slog.String("publish_target", cfg.PublishTarget),
	)

	// ウォッチャーをメインgoroutineで実行（ブロッキング）
	watcher.Start(ctx, cfg.DiscordPollInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(url string) error {
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
