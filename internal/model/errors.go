package model

import (
	"fmt"
	"net/http"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, rate_limit, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidPresence = "INVALID_PRESENCE"
	ErrCodeBodyTooLarge    = "BODY_TOO_LARGE"
	ErrCodeRateLimited     = "RATE_LIMITED"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

// HTTPStatus はエラーコードに対応するHTTPステータスを返す。
// 未知のコードは500。
func (e *APIError) HTTPStatus() int {
	switch e.Code {
	case ErrCodeInvalidPresence:
		return http.StatusBadRequest
	case ErrCodeBodyTooLarge:
		return http.StatusRequestEntityTooLarge
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// NewInvalidPresenceError はプレゼンス更新ボディが不正な場合のエラーを生成する。
func NewInvalidPresenceError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPresence,
		Message:  fmt.Sprintf("invalid presence snapshot: %s", reason),
		Category: "validation",
		Action:   "Send a JSON presence snapshot with username, id and status fields.",
	}
}

// NewBodyTooLargeError はリクエストボディが上限を超えた場合のエラーを生成する。
func NewBodyTooLargeError(limit int64) *APIError {
	return &APIError{
		Code:     ErrCodeBodyTooLarge,
		Message:  fmt.Sprintf("request body exceeds %d bytes", limit),
		Category: "validation",
		Action:   "Reduce the size of the request body.",
	}
}

// NewRateLimitedError はクライアントのリクエスト数が上限を超えた場合のエラーを生成する。
// ダッシュボードのポーリング間隔を延ばすよう案内する。
func NewRateLimitedError(retryAfterSec int) *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "too many requests",
		Category: "rate_limit",
		Action:   fmt.Sprintf("Retry after %d seconds or lower the dashboard polling rate.", retryAfterSec),
	}
}

// NewInternalError は内部エラーの汎用レスポンスを生成する。
// 詳細はログのみに記録し、レスポンスには含めない。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "an internal error occurred",
		Category: "system",
		Action:   "Please wait and try again.",
	}
}
