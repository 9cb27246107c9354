// Package spotify はSpotify Web APIから現在の再生状態を取得し、
// ダッシュボード向けのPlaybackSnapshotに変換する。
package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// defaultEndpoint は現在の再生状態を返すエンドポイント。
const defaultEndpoint = "https://api.spotify.com/v1/me/player"

// maxResponseBytes はレスポンスボディの読み取り上限。
const maxResponseBytes = 1 << 20

// PlayerState は /v1/me/player のレスポンスのうち利用するフィールド。
type PlayerState struct {
	IsPlaying  bool   `json:"is_playing"`
	ProgressMs int64  `json:"progress_ms"`
	Item       *Track `json:"item"`
}

// Track は再生中のトラック。
type Track struct {
	Name       string   `json:"name"`
	DurationMs int64    `json:"duration_ms"`
	Artists    []Artist `json:"artists"`
	Album      Album    `json:"album"`
}

// Artist はトラックのアーティスト。
type Artist struct {
	Name string `json:"name"`
}

// Album はトラックの収録アルバム。Imagesは上流の並び順を保持する。
type Album struct {
	Name   string  `json:"name"`
	Images []Image `json:"images"`
}

// Image はアルバムアートの1サイズ。
type Image struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Client はSpotify Web APIのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string // テスト用にエンドポイントを差し替え可能
}

// NewClient はClientの新しいインスタンスを生成する。
// タイムアウトはhttpClient側で設定する。
func NewClient(httpClient *http.Client, logger *slog.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		endpoint:   defaultEndpoint,
	}
}

// CurrentPlayback は現在の再生状態を取得する。
// 再生デバイスが無い場合（204 No Content）はnil, nilを返す。
func (c *Client) CurrentPlayback(ctx context.Context, accessToken string) (*PlayerState, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Spotify APIの呼び出しに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Spotify APIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, fmt.Errorf("Spotify APIがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}
	if len(body) == 0 {
		return nil, nil
	}

	var state PlayerState
	if err := json.Unmarshal(body, &state); err != nil {
		c.logger.Error("Spotify APIのレスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	return &state, nil
}
