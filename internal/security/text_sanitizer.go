// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer は上流サービス（チャットサービスのアクティビティ等）から得た
// 文字列をダッシュボードに渡す前に無害化する。bluemondayのStrictPolicyで
// 全てのタグを除去し、エスケープされた実体参照は元の文字に戻す。
// JSONはプレーンテキストを運び、表示時のエスケープはフロントエンドが行う。
package security

import (
	"html"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer は表示用文字列のサニタイズ機能のインターフェースを定義する。
type Sanitizer interface {
	// Sanitize は全てのHTMLタグを除去したプレーンテキストを返す。
	// & や ' などの文字はそのまま残る。
	// script, styleタグは中身ごと除去される。
	// 空文字列の入力には空文字列を返す。
	Sanitize(s string) string
	// SanitizeURL はhttp(s)の絶対URLのみを通過させる。それ以外は空文字列を返す。
	SanitizeURL(raw string) string
}

// TextSanitizer はSanitizerの実装。
// bluemondayのポリシーはスレッドセーフであり、複数のgoroutineから共有できる。
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は文字列からHTMLを取り除く。
func (s *TextSanitizer) Sanitize(text string) string {
	if text == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(text)))
}

// SanitizeURL はアイコンやアバターに使うURLを検証する。
// javascript:やdata:などのスキーム、ホストのない相対URLは拒否する。
func (s *TextSanitizer) SanitizeURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	if u.Host == "" {
		return ""
	}
	return u.String()
}

// compile-time interface check
var _ Sanitizer = (*TextSanitizer)(nil)
