// Package cleanup は失効したブラウザセッションの定期削除ジョブを提供する。
// セッションは最終アクセスから一定時間で失効するが、再訪されないセッションは
// メモリに残り続けるため、このジョブで一括して削除する。
package cleanup

import (
	"context"
	"log/slog"
	"time"
)

// DefaultInterval は削除ジョブの実行間隔のデフォルト値。
const DefaultInterval = time.Hour

// Sweeper は失効セッションを削除し、削除件数を返すインターフェース。
// *auth.SessionManager が実装する。
type Sweeper interface {
	Sweep() int
	Count() int
}

// CleanupJob は失効セッションの削除ジョブ。
// 冪等であり、削除対象がない場合でも何もしない。
type CleanupJob struct {
	sessions Sweeper
	logger   *slog.Logger
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(sessions Sweeper, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		sessions: sessions,
		logger:   logger,
	}
}

// Run は失効セッションを1回削除する。
func (j *CleanupJob) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()

	deletedCount := j.sessions.Sweep()

	duration := time.Since(start)
	j.logger.Info("セッションクリーンアップジョブが完了しました",
		slog.Int("deleted_count", deletedCount),
		slog.Int("remaining_count", j.sessions.Count()),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)
	return nil
}

// Start は指定間隔でRunを実行する。コンテキストがキャンセルされるまで継続する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("セッションクリーンアップジョブの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
