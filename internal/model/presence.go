package model

import (
	"errors"
	"fmt"
)

// PresenceStatus はチャットサービス上のオンライン状態を表す。
type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "online"
	PresenceIdle    PresenceStatus = "idle"
	PresenceDND     PresenceStatus = "dnd"
	PresenceOffline PresenceStatus = "offline"
)

// CanonicalPresenceStatus は上流の状態文字列を4つの正規値のいずれかに変換する。
// 未知の値（invisible等）はofflineとして扱う。
func CanonicalPresenceStatus(s string) PresenceStatus {
	switch PresenceStatus(s) {
	case PresenceOnline, PresenceIdle, PresenceDND, PresenceOffline:
		return PresenceStatus(s)
	default:
		return PresenceOffline
	}
}

// PresenceSnapshot は追跡対象ユーザーの正規化済みプレゼンスを表す。
// ポーリングサイクルごとに丸ごと置き換えられる。
type PresenceSnapshot struct {
	Username  string         `json:"username"`
	Tag       string         `json:"id"`
	Status    PresenceStatus `json:"status"`
	AvatarURL string         `json:"avatarURL,omitempty"`
	// Activity は0件または1件。複数の上流アクティビティがあっても1件に絞られる。
	Activity *Activity `json:"activity"`
}

// Activity は主アクティビティを表す。
type Activity struct {
	Name string `json:"name"`
	Type int    `json:"type"`
	// ElapsedTime は "N minutes" または "Active now"。ポーリング時点で1回だけ計算する。
	ElapsedTime string  `json:"elapsedTime"`
	Details     *string `json:"details"`
	State       *string `json:"state"`
	Icon        string  `json:"icon,omitempty"`
}

// OfflineSnapshot は「オフライン・アクティビティなし」のスナップショットを返す。
func OfflineSnapshot(username, tag string) *PresenceSnapshot {
	return &PresenceSnapshot{
		Username: username,
		Tag:      tag,
		Status:   PresenceOffline,
		Activity: nil,
	}
}

// Validate は外部から受け取ったスナップショットの形式を検証する。
func (s *PresenceSnapshot) Validate() error {
	if s == nil {
		return errors.New("snapshot is empty")
	}
	if CanonicalPresenceStatus(string(s.Status)) != s.Status {
		return fmt.Errorf("status must be one of online, idle, dnd, offline: %q", s.Status)
	}
	if s.Activity != nil && s.Activity.Name == "" {
		return errors.New("activity name is required when activity is present")
	}
	return nil
}
