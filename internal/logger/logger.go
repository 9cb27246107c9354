// Package logger はJSON構造化ログの初期化を提供する。
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// ログファイルのローテーション設定
const (
	fileMaxSizeMB  = 10
	fileMaxBackups = 3
	fileMaxAgeDays = 28
)

// Setup はINFOレベルのJSON構造化ログ出力のslog.Loggerを生成して返す。
// writerが指定された場合はそのwriterに出力する。
func Setup(w io.Writer) *slog.Logger {
	return New(w, slog.LevelInfo)
}

// New は指定レベル以上を出力するJSON構造化ロガーを生成する。
func New(w io.Writer, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(handler)
}

// SetupDefault はJSON構造化ログ出力をグローバルロガーとして設定する。
// writerが指定された場合はそのwriterに出力する。
// 本番ではos.Stdoutを渡すことを想定している。
func SetupDefault(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	logger := Setup(w)
	slog.SetDefault(logger)
}

// Configure は設定値に従ってグローバルロガーを再構成する。
// filePathが空でない場合はlumberjackでローテーションするファイルにも同じJSONを書き込む。
// 戻り値のio.Closerはプロセス終了時に閉じること（ファイル未指定時はno-op）。
func Configure(w io.Writer, level string, filePath string) io.Closer {
	if w == nil {
		w = os.Stdout
	}

	var closer io.Closer = nopCloser{}
	if filePath != "" {
		lj := &lumberjack.Logger{
			Filename:   filePath,
			MaxSize:    fileMaxSizeMB,
			MaxBackups: fileMaxBackups,
			MaxAge:     fileMaxAgeDays,
		}
		w = io.MultiWriter(w, lj)
		closer = lj
	}

	slog.SetDefault(New(w, ParseLevel(level)))
	return closer
}

// ParseLevel はレベル文字列をslog.Levelに変換する。
// 大文字小文字は区別しない。未知の文字列はINFOとして扱う。
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
