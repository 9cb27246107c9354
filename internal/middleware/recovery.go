package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
)

// NewRecoveryMiddleware はハンドラーのpanicを500に変換するミドルウェアを生成する。
// 上流のパースやアセット解決でpanicしても、ウォッチャーと他のリクエストは継続する。
// http.ErrAbortHandlerはnet/httpの中断シグナルなので再送出する。
func NewRecoveryMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.LogAttrs(r.Context(), slog.LevelError, "handler panic recovered",
					slog.Any("panic", rec),
					slog.String("method", r.Method),
					slog.String("route", r.URL.Path),
					slog.String("client", ClientKey(r)),
					slog.String("stack", string(debug.Stack())),
				)
				WriteInternalServerError(w)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
