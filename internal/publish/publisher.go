// Package publish はworkerモードで正規化済みのプレゼンスを
// APIサーバーの更新エンドポイントへ送信する。
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/hitoshi/harmony/internal/model"
)

// UpdatePath はAPIサーバー側のプレゼンス更新ルート。
const UpdatePath = "/api/update-discord"

// HTTPPublisher はプレゼンススナップショットをHTTPで公開する。
// retryMaxが0の場合は再試行せず、次のポーリングサイクルを再試行とみなす。
// 1以上の場合は接続エラーと5xxを指数バックオフで再試行する。
type HTTPPublisher struct {
	client   *retryablehttp.Client
	endpoint string
	logger   *slog.Logger
}

// NewHTTPPublisher はHTTPPublisherを生成する。
// targetはAPIサーバーのベースURL（末尾スラッシュなし）。
func NewHTTPPublisher(target string, retryMax int, timeout time.Duration, logger *slog.Logger) *HTTPPublisher {
	c := retryablehttp.NewClient()
	c.RetryMax = retryMax
	c.RetryWaitMin = 500 * time.Millisecond
	c.RetryWaitMax = 5 * time.Second
	c.HTTPClient.Timeout = timeout
	c.Logger = nil // 再試行の結果は呼び出し側でslogに記録する

	return &HTTPPublisher{
		client:   c,
		endpoint: target + UpdatePath,
		logger:   logger,
	}
}

// Publish はスナップショットをJSONでPOSTする。
// 再試行を使い切っても成功しない場合はエラーを返す。
func (p *HTTPPublisher) Publish(ctx context.Context, snap *model.PresenceSnapshot) error {
	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("スナップショットのエンコードに失敗しました: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, body)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Error("プレゼンスの送信に失敗しました",
			slog.String("endpoint", p.endpoint),
			slog.String("error", err.Error()),
		)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		p.logger.Error("プレゼンス更新エンドポイントがエラーステータスを返しました",
			slog.String("endpoint", p.endpoint),
			slog.Int("http_status", resp.StatusCode),
		)
		return fmt.Errorf("更新エンドポイントがステータス %d を返しました: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return nil
}
