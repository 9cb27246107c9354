package middleware

import (
	"net/http"
	"strings"
)

// noStorePrefixes はセッションごとの状態やOAuthのリダイレクトを返すパス。
// 共有キャッシュに残ると他のクライアントに再生状態やstateが漏れる。
var noStorePrefixes = []string{"/api/", "/login", "/callback", "/logout"}

// NewSecurityHeadersMiddleware はセキュリティ関連のHTTPレスポンスヘッダーを付与するミドルウェアを返す。
// ダッシュボードはアルバムアートやアイコンを外部CDNから読み込むため、CSPは付与しない。
// APIとOAuthフローのレスポンスにはCache-Control: no-storeを付与し、静的アセットには付与しない。
func NewSecurityHeadersMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			if isNoStorePath(r.URL.Path) {
				h.Set("Cache-Control", "no-store")
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isNoStorePath(path string) bool {
	for _, p := range noStorePrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
