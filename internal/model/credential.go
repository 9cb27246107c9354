// Package model はドメインモデルを定義する。
package model

import "time"

// CredentialSet は音楽サービス（Spotify）のOAuth資格情報を表す。
// ExpiresAtは常に発行時刻 + 有効期間（秒）から導出する。
// プロセスのセッション中のみ保持し、永続化しない。
type CredentialSet struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Session はブラウザセッションを表す。
// 1セッションにつき1つのトークンストアを保持する。
type Session struct {
	ID         string
	CreatedAt  time.Time
	LastAccess time.Time
}
