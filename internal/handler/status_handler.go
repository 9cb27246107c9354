package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/harmony/internal/auth"
	"github.com/hitoshi/harmony/internal/middleware"
	"github.com/hitoshi/harmony/internal/model"
	"github.com/hitoshi/harmony/internal/spotify"
)

// MaxUpdateBodyBytes はプレゼンス更新リクエストのボディ上限。
const MaxUpdateBodyBytes = 64 << 10

// PlaybackServiceInterface は再生状態ハンドラーが必要とするサービスインターフェース。
type PlaybackServiceInterface interface {
	GetCurrentPlayback(ctx context.Context, tokens *auth.TokenStore) (*model.PlaybackSnapshot, error)
}

// PresenceStore はプレゼンスハンドラーが必要とする集約ステートストア。
// *presence.Store が実装する。
type PresenceStore interface {
	Load() *model.PresenceSnapshot
	Publish(ctx context.Context, snap *model.PresenceSnapshot) error
	Observed() bool
}

// StatusHandler はダッシュボードがポーリングするステータスAPIのハンドラー。
type StatusHandler struct {
	playback PlaybackServiceInterface
	presence PresenceStore
}

// NewStatusHandler はStatusHandlerを生成する。
func NewStatusHandler(playback PlaybackServiceInterface, presence PresenceStore) *StatusHandler {
	return &StatusHandler{
		playback: playback,
		presence: presence,
	}
}

// statusResponse は統合ステータスのレスポンス。
type statusResponse struct {
	SpotifyAuthenticated bool   `json:"spotifyAuthenticated"`
	DiscordAuthenticated bool   `json:"discordAuthenticated"`
	LoginURL             string `json:"loginUrl"`
}

// playbackErrorResponse は再生状態を返せない場合のレスポンス。
type playbackErrorResponse struct {
	IsPlaying bool   `json:"isPlaying"`
	Error     string `json:"error"`
	AuthURL   string `json:"authUrl,omitempty"`
	Details   string `json:"details,omitempty"`
}

// Status は資格情報の有無とプレゼンス観測の有無を返す。常に200。
// GET /api/status
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	spotifyAuthenticated := false
	if session, err := middleware.SessionFromContext(r.Context()); err == nil {
		spotifyAuthenticated = session.Tokens.HasCredentials()
	}

	writeJSON(w, http.StatusOK, statusResponse{
		SpotifyAuthenticated: spotifyAuthenticated,
		DiscordAuthenticated: h.presence.Observed(),
		LoginURL:             LoginPath,
	})
}

// SpotifyCurrent は現在の再生状態を返す。
// GET /api/spotify-current
func (h *StatusHandler) SpotifyCurrent(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, playbackErrorResponse{
			Error:   "Not authenticated with Spotify",
			AuthURL: LoginPath,
		})
		return
	}

	snap, err := h.playback.GetCurrentPlayback(r.Context(), session.Tokens)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, snap)
	case errors.Is(err, spotify.ErrUnauthenticated):
		writeJSON(w, http.StatusUnauthorized, playbackErrorResponse{
			Error:   "Not authenticated with Spotify",
			AuthURL: LoginPath,
		})
	case errors.Is(err, spotify.ErrRefreshFailed):
		writeJSON(w, http.StatusUnauthorized, playbackErrorResponse{
			Error:   "Failed to refresh token",
			AuthURL: LoginPath,
		})
	default:
		slog.Error("failed to fetch spotify playback",
			slog.String("session_id", session.ID),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusInternalServerError, playbackErrorResponse{
			Error:   "Failed to fetch Spotify data",
			Details: err.Error(),
		})
	}
}

// DiscordStatus は集約ステートストアの内容をそのまま返す。副作用はない。
// GET /api/discord-status
func (h *StatusHandler) DiscordStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.presence.Load())
}

// UpdateDiscord はプレゼンススナップショットを受け取り、集約ステートストアを置き換える。
// POST /api/update-discord
//
// 認証は行わない。呼び出し元はworkerモードのプレゼンスウォッチャーのみを想定しており、
// このルートへの到達はループバックへのバインドやリバースプロキシで制限すること。
func (h *StatusHandler) UpdateDiscord(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUpdateBodyBytes)

	var snap model.PresenceSnapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			middleware.WriteAPIError(w, model.NewBodyTooLargeError(MaxUpdateBodyBytes))
			return
		}
		middleware.WriteAPIError(w, model.NewInvalidPresenceError("malformed JSON body"))
		return
	}

	if err := snap.Validate(); err != nil {
		middleware.WriteAPIError(w, model.NewInvalidPresenceError(err.Error()))
		return
	}

	if err := h.presence.Publish(r.Context(), &snap); err != nil {
		slog.Error("failed to publish presence snapshot", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	slog.Debug("presence snapshot updated",
		slog.String("status", string(snap.Status)),
		slog.Bool("has_activity", snap.Activity != nil),
	)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}
