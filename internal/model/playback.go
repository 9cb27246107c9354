package model

import (
	"encoding/json"
	"strings"
)

// PlaybackSnapshot は音楽サービスの現在の再生状態を表す。
// リクエストごとに計算し、キャッシュしない。
// 再生中でない場合はIsPlaying以外のフィールドを持たない。
type PlaybackSnapshot struct {
	IsPlaying bool
	TrackName string
	Artists   []string
	AlbumName string
	AlbumArt  *string
	// Duration と Progress は秒単位（切り捨て）。Progress <= Duration を保証する。
	Duration int
	Progress int
}

// ArtistName はアーティスト名をカンマ区切りで連結して返す。
func (p *PlaybackSnapshot) ArtistName() string {
	return strings.Join(p.Artists, ", ")
}

// playbackJSON はダッシュボードが読むJSON表現。
type playbackJSON struct {
	IsPlaying  bool     `json:"isPlaying"`
	TrackName  string   `json:"trackName"`
	ArtistName string   `json:"artistName"`
	Artists    []string `json:"artists"`
	AlbumName  string   `json:"albumName"`
	AlbumArt   *string  `json:"albumArt"`
	Duration   int      `json:"duration"`
	Progress   int      `json:"progress"`
}

// MarshalJSON は再生中でない場合に {"isPlaying":false} のみを出力する。
func (p PlaybackSnapshot) MarshalJSON() ([]byte, error) {
	if !p.IsPlaying {
		return []byte(`{"isPlaying":false}`), nil
	}
	artists := p.Artists
	if artists == nil {
		artists = []string{}
	}
	return json.Marshal(playbackJSON{
		IsPlaying:  true,
		TrackName:  p.TrackName,
		ArtistName: p.ArtistName(),
		Artists:    artists,
		AlbumName:  p.AlbumName,
		AlbumArt:   p.AlbumArt,
		Duration:   p.Duration,
		Progress:   p.Progress,
	})
}
