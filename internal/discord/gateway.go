// Package discord はDiscordゲートウェイへの接続と、追跡対象ユーザーの
// メンバー情報・プレゼンスの取得を提供する。
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/hitoshi/harmony/internal/presence"
	"github.com/hitoshi/harmony/internal/worker/poll"
)

// ErrNotReady はゲートウェイのセッションが利用可能でないことを示す。
var ErrNotReady = errors.New("discord session is not ready")

// Intents はプレゼンス追跡に必要なゲートウェイインテント。
// GuildMembersとGuildPresencesは特権インテントのため、Developer Portalで有効化が必要。
const Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers | discordgo.IntentsGuildPresences

// Gateway はdiscordgoのセッションをラップし、poll.Sourceを実装する。
type Gateway struct {
	session *discordgo.Session
	logger  *slog.Logger

	// fetchMember はステートにないメンバーをRESTで取得する。テスト用に差し替え可能。
	fetchMember func(ctx context.Context, guildID, userID string) (*discordgo.Member, error)
}

// NewGateway はBotトークンでセッションを生成する。接続はOpenで行う。
func NewGateway(token string, logger *slog.Logger) (*Gateway, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	s.Identify.Intents = Intents
	s.StateEnabled = true
	return newGateway(s, logger), nil
}

func newGateway(s *discordgo.Session, logger *slog.Logger) *Gateway {
	g := &Gateway{
		session: s,
		logger:  logger,
	}
	g.fetchMember = func(ctx context.Context, guildID, userID string) (*discordgo.Member, error) {
		return g.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	}
	return g
}

// Open はゲートウェイに接続し、Readyイベントを受信するまで待つ。
// readyTimeout以内にReadyを受信できない場合は接続を閉じてエラーを返す。
func (g *Gateway) Open(ctx context.Context, readyTimeout time.Duration) error {
	ready := make(chan *discordgo.Ready, 1)
	remove := g.session.AddHandlerOnce(func(_ *discordgo.Session, r *discordgo.Ready) {
		ready <- r
	})

	if err := g.session.Open(); err != nil {
		remove()
		return fmt.Errorf("failed to open discord gateway: %w", err)
	}

	timer := time.NewTimer(readyTimeout)
	defer timer.Stop()

	select {
	case r := <-ready:
		user := ""
		if r.User != nil {
			user = r.User.Username
		}
		g.logger.Info("Discordゲートウェイに接続しました",
			slog.String("bot_user", user),
			slog.Int("guild_count", len(r.Guilds)),
		)
		return nil
	case <-timer.C:
		g.session.Close()
		return fmt.Errorf("discord ready event not received within %s", readyTimeout)
	case <-ctx.Done():
		g.session.Close()
		return ctx.Err()
	}
}

// Close はゲートウェイ接続を閉じる。
func (g *Gateway) Close() error {
	return g.session.Close()
}

// Ping はセッションがReady済みで利用可能かを返す。ヘルスチェック用。
func (g *Gateway) Ping() error {
	if g.session.State == nil || !g.session.DataReady {
		return ErrNotReady
	}
	return nil
}

// Guilds はステートに保持されている全ギルドを返す。
func (g *Gateway) Guilds(ctx context.Context) ([]poll.Guild, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := g.Ping(); err != nil {
		return nil, err
	}

	g.session.State.RLock()
	defer g.session.State.RUnlock()

	guilds := make([]poll.Guild, 0, len(g.session.State.Guilds))
	for _, guild := range g.session.State.Guilds {
		guilds = append(guilds, poll.Guild{ID: guild.ID, Name: guild.Name})
	}
	return guilds, nil
}

// FindMember はギルド内のユーザーのメンバー情報とプレゼンスを取得する。
// メンバーはステートを優先し、なければRESTで取得する。
// プレゼンスがステートにない場合はオフラインとして扱う。
func (g *Gateway) FindMember(ctx context.Context, guildID, userID string) (*presence.RawPresence, error) {
	member, err := g.session.State.Member(guildID, userID)
	if err != nil {
		member, err = g.fetchMember(ctx, guildID, userID)
		if err != nil {
			if isUnknownMember(err) {
				return nil, presence.ErrMemberNotFound
			}
			return nil, fmt.Errorf("failed to fetch guild member: %w", err)
		}
	}

	p, err := g.session.State.Presence(guildID, userID)
	if err != nil {
		p = nil
	}
	return toRawPresence(member, p), nil
}

// isUnknownMember はRESTエラーが「メンバーが存在しない」ことを示すかを判定する。
func isUnknownMember(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	if restErr.Message != nil && restErr.Message.Code == discordgo.ErrCodeUnknownMember {
		return true
	}
	return restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound
}

// RouteLogs はdiscordgoのログ出力をslogに流す。プロセス全体に作用する。
func RouteLogs(logger *slog.Logger) {
	discordgo.Logger = func(msgL, caller int, format string, a ...interface{}) {
		level := slog.LevelInfo
		switch msgL {
		case discordgo.LogError:
			level = slog.LevelError
		case discordgo.LogWarning:
			level = slog.LevelWarn
		case discordgo.LogDebug:
			level = slog.LevelDebug
		}
		logger.Log(context.Background(), level, fmt.Sprintf(format, a...),
			slog.String("component", "discordgo"),
		)
	}
}

// compile-time interface check
var _ poll.Source = (*Gateway)(nil)
