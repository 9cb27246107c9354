package discord

import (
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/hitoshi/harmony/internal/presence"
)

// avatarSize はアバター画像の要求サイズ。
const avatarSize = "128"

// toRawPresence はメンバーとプレゼンスをRawPresenceに変換する。
// pがnilの場合はオフライン・アクティビティなしとする。
func toRawPresence(member *discordgo.Member, p *discordgo.Presence) *presence.RawPresence {
	raw := &presence.RawPresence{Status: string(discordgo.StatusOffline)}

	user := member.User
	if user == nil && p != nil {
		user = p.User
	}
	if user != nil {
		raw.UserID = user.ID
		raw.Username = user.Username
		raw.GlobalName = user.GlobalName
		raw.AvatarURL = user.AvatarURL(avatarSize)
	}

	if p == nil {
		return raw
	}
	raw.Status = string(p.Status)
	for _, a := range p.Activities {
		if a == nil {
			continue
		}
		raw.Activities = append(raw.Activities, toRawActivity(a))
	}
	return raw
}

func toRawActivity(a *discordgo.Activity) presence.RawActivity {
	raw := presence.RawActivity{
		Name:          a.Name,
		Type:          int(a.Type),
		Details:       a.Details,
		State:         a.State,
		ApplicationID: a.ApplicationID,
		Large:         imageAsset(a.ApplicationID, a.Assets.LargeImageID),
		Small:         imageAsset(a.ApplicationID, a.Assets.SmallImageID),
	}
	if a.Timestamps.StartTimestamp > 0 {
		raw.Start = time.UnixMilli(a.Timestamps.StartTimestamp)
	}
	return raw
}

// imageAsset はアセットキーから遅延解決のImageAssetを作る。
func imageAsset(applicationID, key string) presence.ImageAsset {
	if key == "" {
		return presence.ImageAsset{}
	}
	return presence.ImageAsset{
		URL: presence.Deferred(func() (string, error) {
			return resolveAssetURL(applicationID, key)
		}),
		Key: key,
	}
}

// resolveAssetURL はDiscordのアセットキー規約に従って画像URLを返す。
// プレフィックスのないキーはアプリケーションアセットとして扱う。
func resolveAssetURL(applicationID, key string) (string, error) {
	switch {
	case strings.HasPrefix(key, "mp:"):
		return "https://media.discordapp.net/" + strings.TrimPrefix(key, "mp:"), nil
	case strings.HasPrefix(key, "spotify:"):
		return "https://i.scdn.co/image/" + strings.TrimPrefix(key, "spotify:"), nil
	case strings.HasPrefix(key, "twitch:"):
		return "https://static-cdn.jtvnw.net/previews-ttv/live_user_" + strings.TrimPrefix(key, "twitch:") + "-1920x1080.png", nil
	case strings.HasPrefix(key, "youtube:"):
		return "https://i.ytimg.com/vi/" + strings.TrimPrefix(key, "youtube:") + "/hqdefault_live.jpg", nil
	default:
		return presence.CDNAssetURL(applicationID, key)
	}
}
