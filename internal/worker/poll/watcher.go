// Package poll はチャットサービス上の追跡対象ユーザーのプレゼンスを
// 一定間隔で検索し、正規化したスナップショットを公開するワーカーを提供する。
package poll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/harmony/internal/metrics"
	"github.com/hitoshi/harmony/internal/model"
	"github.com/hitoshi/harmony/internal/presence"
)

// DefaultInterval はポーリング間隔のデフォルト値。
const DefaultInterval = 30 * time.Second

// Guild はサービスアカウントが所属するコミュニティ。
type Guild struct {
	ID   string
	Name string
}

// Source はチャットサービスへの問い合わせを抽象化するインターフェース。
type Source interface {
	// Guilds はサービスアカウントが所属する全コミュニティを返す。
	Guilds(ctx context.Context) ([]Guild, error)
	// FindMember はコミュニティ内のユーザーのプレゼンスを返す。
	// メンバーでない場合はpresence.ErrMemberNotFoundを返す。
	FindMember(ctx context.Context, guildID, userID string) (*presence.RawPresence, error)
}

// Normalizer は生のプレゼンスをスナップショットに変換する。
type Normalizer interface {
	Normalize(raw *presence.RawPresence) *model.PresenceSnapshot
	Identity(raw *presence.RawPresence) (string, string)
}

// Publisher はスナップショットの公開先。
// serveモードではpresence.Store、workerモードではHTTP publisherが実装する。
type Publisher interface {
	Publish(ctx context.Context, snap *model.PresenceSnapshot) error
}

// Watcher は追跡対象ユーザーを全コミュニティから検索し、結果を公開する。
type Watcher struct {
	source     Source
	normalizer Normalizer
	publisher  Publisher
	metrics    metrics.MetricsCollector
	logger     *slog.Logger
	userID     string

	// mu はRunOnceを直列化し、last*を保護する。
	mu       sync.Mutex
	lastName string
	lastTag  string
}

// NewWatcher はWatcherの新しいインスタンスを生成する。
// mcがnilの場合はメトリクスを記録しない。
func NewWatcher(
	source Source,
	normalizer Normalizer,
	publisher Publisher,
	mc metrics.MetricsCollector,
	logger *slog.Logger,
	userID string,
) *Watcher {
	if mc == nil {
		mc = metrics.Nop{}
	}
	name, tag := normalizer.Identity(nil)
	return &Watcher{
		source:     source,
		normalizer: normalizer,
		publisher:  publisher,
		metrics:    mc,
		logger:     logger,
		userID:     userID,
		lastName:   name,
		lastTag:    tag,
	}
}

// Start は指定間隔のティッカーでポーリングを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (w *Watcher) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.logger.Info("プレゼンスウォッチャーを開始しました",
		slog.Duration("interval", interval),
		slog.String("user_id", w.userID),
	)

	// 接続完了直後に1回実行
	if err := w.RunOnce(ctx); err != nil {
		w.logger.Error("ポーリングサイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("プレゼンスウォッチャーを停止しました")
			return
		case <-ticker.C:
			if err := w.RunOnce(ctx); err != nil {
				w.logger.Error("ポーリングサイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は1回のポーリングサイクルを実行する。
// 最初に見つかったコミュニティのプレゼンスを公開し、どこにも居なければ
// オフラインのスナップショットを公開する。コミュニティ一覧の取得に失敗した場合や
// 全コミュニティの検索がエラーになった場合は何も公開せずエラーを返す。
func (w *Watcher) RunOnce(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	start := time.Now()
	defer func() {
		w.metrics.RecordUpstreamLatency(metrics.UpstreamDiscord, time.Since(start))
	}()

	guilds, err := w.source.Guilds(ctx)
	if err != nil {
		w.metrics.RecordPollCycle(metrics.PollError)
		return fmt.Errorf("コミュニティ一覧の取得に失敗しました: %w", err)
	}

	raw, failures := w.search(ctx, guilds)
	if err := ctx.Err(); err != nil {
		w.metrics.RecordPollCycle(metrics.PollError)
		return err
	}

	var snap *model.PresenceSnapshot
	outcome := metrics.PollFound
	switch {
	case raw != nil:
		snap = w.normalizer.Normalize(raw)
	case len(guilds) > 0 && failures == len(guilds):
		w.metrics.RecordPollCycle(metrics.PollError)
		return fmt.Errorf("全てのコミュニティでメンバー検索に失敗しました: %d件", failures)
	default:
		outcome = metrics.PollNotFound
		snap = model.OfflineSnapshot(w.lastName, w.lastTag)
		w.logger.Info("追跡対象ユーザーがどのコミュニティにも見つかりません",
			slog.String("user_id", w.userID),
			slog.Int("guild_count", len(guilds)),
		)
	}

	if err := w.publisher.Publish(ctx, snap); err != nil {
		w.metrics.RecordPublishFailure()
		w.metrics.RecordPollCycle(metrics.PollError)
		return fmt.Errorf("スナップショットの公開に失敗しました: %w", err)
	}
	w.metrics.RecordPollCycle(outcome)
	w.lastName, w.lastTag = snap.Username, snap.Tag

	w.logger.Debug("ポーリングサイクルが完了しました",
		slog.String("status", string(snap.Status)),
		slog.Bool("has_activity", snap.Activity != nil),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// search はコミュニティを順に検索し、最初に見つかったプレゼンスを返す。
// コミュニティ単位の失敗はログに記録してスキップし、失敗件数を返す。
func (w *Watcher) search(ctx context.Context, guilds []Guild) (*presence.RawPresence, int) {
	failures := 0
	for _, g := range guilds {
		if ctx.Err() != nil {
			return nil, failures
		}
		raw, err := w.source.FindMember(ctx, g.ID, w.userID)
		if errors.Is(err, presence.ErrMemberNotFound) {
			continue
		}
		if err != nil {
			failures++
			w.metrics.RecordGuildLookupFailure(g.ID)
			w.logger.Warn("コミュニティでのメンバー検索に失敗しました",
				slog.String("guild_id", g.ID),
				slog.String("guild_name", g.Name),
				slog.String("error", err.Error()),
			)
			continue
		}
		if raw != nil {
			w.logger.Debug("追跡対象ユーザーを見つけました",
				slog.String("guild_id", g.ID),
				slog.String("guild_name", g.Name),
			)
			return raw, failures
		}
	}
	return nil, failures
}
