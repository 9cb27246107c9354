package spotify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/harmony/internal/auth"
	"github.com/hitoshi/harmony/internal/metrics"
	"github.com/hitoshi/harmony/internal/model"
)

// GetCurrentPlaybackが返す失敗の種別。
var (
	// ErrUnauthenticated は資格情報が保存されていないことを示す。
	ErrUnauthenticated = errors.New("not authenticated with spotify")
	// ErrRefreshFailed はトークンリフレッシュが上流で拒否されたことを示す。
	ErrRefreshFailed = errors.New("failed to refresh spotify token")
	// ErrUpstream は再生状態取得時の通信またはパースの失敗を示す。
	ErrUpstream = errors.New("spotify upstream error")
)

// TokenRefresher はリフレッシュトークンから新しい資格情報を得る。
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*auth.Grant, error)
}

// PlaybackFetcher は上流から再生状態を取得する。
type PlaybackFetcher interface {
	CurrentPlayback(ctx context.Context, accessToken string) (*PlayerState, error)
}

// Service は資格情報の期限管理と再生状態の取得・変換を行う。
// 内部でリトライはしない。リトライはクライアントのポーリング間隔に任せる。
type Service struct {
	refresher TokenRefresher
	fetcher   PlaybackFetcher
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
}

// NewService はServiceを生成する。mcがnilの場合はメトリクスを記録しない。
func NewService(refresher TokenRefresher, fetcher PlaybackFetcher, mc metrics.MetricsCollector, logger *slog.Logger) *Service {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Service{
		refresher: refresher,
		fetcher:   fetcher,
		metrics:   mc,
		logger:    logger,
	}
}

// GetCurrentPlayback はセッションのトークンストアを使って現在の再生状態を返す。
// 期限切れの場合は先にリフレッシュする。同時リクエストが重複してリフレッシュすることは許容する。
func (s *Service) GetCurrentPlayback(ctx context.Context, tokens *auth.TokenStore) (*model.PlaybackSnapshot, error) {
	creds, ok := tokens.Current()
	if !ok {
		s.metrics.RecordPlaybackFetch(metrics.PlaybackUnauthenticated)
		return nil, ErrUnauthenticated
	}

	if tokens.IsExpired() {
		grant, err := s.refresher.Refresh(ctx, creds.RefreshToken)
		if err != nil {
			// 一時的な上流障害の可能性があるため、リフレッシュトークンは破棄しない
			s.metrics.RecordTokenRefresh(false)
			s.metrics.RecordPlaybackFetch(metrics.PlaybackRefreshFailed)
			s.logger.Warn("トークンのリフレッシュに失敗しました",
				slog.String("error", err.Error()),
			)
			return nil, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
		}
		s.metrics.RecordTokenRefresh(true)
		tokens.Refreshed(grant.AccessToken, grant.RefreshToken, grant.ExpiresIn)
		creds.AccessToken = grant.AccessToken

		s.logger.Info("トークンをリフレッシュしました",
			slog.Int64("expires_in", grant.ExpiresIn),
		)
	}

	start := time.Now()
	state, err := s.fetcher.CurrentPlayback(ctx, creds.AccessToken)
	s.metrics.RecordUpstreamLatency(metrics.UpstreamSpotify, time.Since(start))
	if err != nil {
		s.metrics.RecordPlaybackFetch(metrics.PlaybackUpstreamError)
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	snap := ToSnapshot(state)
	if snap.IsPlaying {
		s.metrics.RecordPlaybackFetch(metrics.PlaybackPlaying)
	} else {
		s.metrics.RecordPlaybackFetch(metrics.PlaybackIdle)
	}
	return snap, nil
}

// ToSnapshot は上流の再生状態をPlaybackSnapshotに変換する。
// 再生中でない場合はIsPlaying=falseのみを持つスナップショットを返す。
func ToSnapshot(state *PlayerState) *model.PlaybackSnapshot {
	if state == nil || !state.IsPlaying || state.Item == nil {
		return &model.PlaybackSnapshot{IsPlaying: false}
	}

	item := state.Item
	artists := make([]string, 0, len(item.Artists))
	for _, a := range item.Artists {
		artists = append(artists, a.Name)
	}

	var albumArt *string
	if len(item.Album.Images) > 0 {
		u := item.Album.Images[0].URL
		albumArt = &u
	}

	duration := msToSeconds(item.DurationMs)
	progress := msToSeconds(state.ProgressMs)
	if progress > duration {
		progress = duration
	}

	return &model.PlaybackSnapshot{
		IsPlaying: true,
		TrackName: item.Name,
		Artists:   artists,
		AlbumName: item.Album.Name,
		AlbumArt:  albumArt,
		Duration:  duration,
		Progress:  progress,
	}
}

// msToSeconds はミリ秒を秒に切り捨てる。負値は0。
func msToSeconds(ms int64) int {
	if ms <= 0 {
		return 0
	}
	return int(ms / 1000)
}
