// Package presence はチャットサービスのプレゼンスを正規化し、
// 最新のスナップショットを保持する。
package presence

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/harmony/internal/model"
	"github.com/hitoshi/harmony/internal/security"
)

// 主アクティビティの候補から除外する名前。
// どちらも再生状態ウィジェットと重複する情報のため表示しない。
const (
	SentinelCustomStatus = "Custom Status"
	SentinelSpotify      = "Spotify"
)

// ElapsedActiveNow は開始時刻がないアクティビティの経過時間表示。
const ElapsedActiveNow = "Active now"

// Identity はスナップショットに載せる表示名とタグ。
// 空の場合は上流の値を使う。
type Identity struct {
	DisplayName string
	Tag         string
}

// Normalizer は生のプレゼンスをPresenceSnapshotに変換する。
type Normalizer struct {
	now       func() time.Time
	sanitizer security.Sanitizer
	identity  Identity
	logger    *slog.Logger
}

// NewNormalizer はNormalizerを生成する。nowがnilの場合はtime.Nowを使う。
func NewNormalizer(identity Identity, sanitizer security.Sanitizer, now func() time.Time, logger *slog.Logger) *Normalizer {
	if now == nil {
		now = time.Now
	}
	return &Normalizer{
		now:       now,
		sanitizer: sanitizer,
		identity:  identity,
		logger:    logger,
	}
}

// Identity はrawに対して使う表示名とタグを返す。
func (n *Normalizer) Identity(raw *RawPresence) (string, string) {
	name := n.identity.DisplayName
	tag := n.identity.Tag
	if raw == nil {
		return name, tag
	}
	if name == "" {
		name = raw.GlobalName
	}
	if name == "" {
		name = raw.Username
	}
	if tag == "" {
		tag = raw.Username
	}
	return name, tag
}

// Normalize はrawを1件のスナップショットに変換する。
// アクティビティは最大1件に絞られ、アイコン解決の失敗は無視される。
func (n *Normalizer) Normalize(raw *RawPresence) *model.PresenceSnapshot {
	name, tag := n.Identity(raw)
	snap := &model.PresenceSnapshot{
		Username:  n.sanitizer.Sanitize(name),
		Tag:       n.sanitizer.Sanitize(tag),
		Status:    model.CanonicalPresenceStatus(raw.Status),
		AvatarURL: n.sanitizer.SanitizeURL(raw.AvatarURL),
	}

	primary, ok := SelectPrimary(raw.Activities)
	if !ok {
		return snap
	}

	snap.Activity = &model.Activity{
		Name:        n.sanitizer.Sanitize(primary.Name),
		Type:        primary.Type,
		ElapsedTime: ElapsedTime(primary.Start, n.now()),
		Details:     n.optional(primary.Details),
		State:       n.optional(primary.State),
		Icon:        n.sanitizer.SanitizeURL(n.resolveIcon(primary)),
	}
	return snap
}

// SelectPrimary は予約名と空名を除外した最初のアクティビティを返す。
func SelectPrimary(activities []RawActivity) (RawActivity, bool) {
	for _, a := range activities {
		if a.Name == "" || a.Name == SentinelCustomStatus || a.Name == SentinelSpotify {
			continue
		}
		return a, true
	}
	return RawActivity{}, false
}

// ElapsedTime は開始時刻からの経過分数を "N minutes" 形式で返す。
// startがゼロ値の場合は "Active now"。開始時刻が未来の場合は0分とする。
func ElapsedTime(start, now time.Time) string {
	if start.IsZero() {
		return ElapsedActiveNow
	}
	minutes := int64(now.Sub(start) / time.Minute)
	if minutes < 0 {
		minutes = 0
	}
	return fmt.Sprintf("%d minutes", minutes)
}

// resolveIcon はlarge解決手段、largeキーのCDN、small解決手段、smallキーのCDNの順に試し、
// 最初に成功したURLを返す。全て失敗した場合は空文字列。
func (n *Normalizer) resolveIcon(a RawActivity) string {
	steps := []struct {
		source  string
		resolve func() (string, error)
	}{
		{"large_asset", a.Large.URL.Resolve},
		{"large_key", func() (string, error) { return CDNAssetURL(a.ApplicationID, a.Large.Key) }},
		{"small_asset", a.Small.URL.Resolve},
		{"small_key", func() (string, error) { return CDNAssetURL(a.ApplicationID, a.Small.Key) }},
	}

	for _, step := range steps {
		u, err := safeResolve(step.resolve)
		if err == nil && u != "" {
			return u
		}
		if err != nil && n.logger != nil {
			n.logger.Debug("アイコンURLの解決に失敗しました",
				slog.String("activity", a.Name),
				slog.String("source", step.source),
				slog.String("error", err.Error()),
			)
		}
	}
	return ""
}

// safeResolve はresolverのpanicをエラーに変換する。
func safeResolve(resolve func() (string, error)) (u string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("asset resolver panicked: %v", r)
		}
	}()
	return resolve()
}

func (n *Normalizer) optional(s string) *string {
	v := n.sanitizer.Sanitize(s)
	if v == "" {
		return nil
	}
	return &v
}
