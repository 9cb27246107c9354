package auth

import (
	"sync/atomic"
	"time"

	"github.com/hitoshi/harmony/internal/model"
)

// TokenStore は1セッション分のSpotify資格情報を保持する。
// 書き込みはポインタの原子的な置き換えで行い、読み取り側が
// 更新途中のフィールドを観測することはない。
type TokenStore struct {
	creds atomic.Pointer[model.CredentialSet]
	now   func() time.Time
}

// NewTokenStore はTokenStoreを生成する。nowがnilの場合はtime.Nowを使う。
func NewTokenStore(now func() time.Time) *TokenStore {
	if now == nil {
		now = time.Now
	}
	return &TokenStore{now: now}
}

// Store は資格情報を記録し、有効期限を現在時刻 + lifetimeSeconds として計算する。
func (s *TokenStore) Store(accessToken, refreshToken string, lifetimeSeconds int64) {
	s.creds.Store(&model.CredentialSet{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    s.now().Add(time.Duration(lifetimeSeconds) * time.Second),
	})
}

// Refreshed はリフレッシュ結果で資格情報を置き換える。
// refreshTokenが空の場合は既存のリフレッシュトークンを引き継ぐ。
// 未保存の場合はfalseを返し、何もしない。
func (s *TokenStore) Refreshed(accessToken, refreshToken string, lifetimeSeconds int64) bool {
	for {
		old := s.creds.Load()
		if old == nil {
			return false
		}
		next := &model.CredentialSet{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			ExpiresAt:    s.now().Add(time.Duration(lifetimeSeconds) * time.Second),
		}
		if next.RefreshToken == "" {
			next.RefreshToken = old.RefreshToken
		}
		if s.creds.CompareAndSwap(old, next) {
			return true
		}
	}
}

// Current は保存済みの資格情報のコピーを返す。未保存の場合はfalseを返す。
func (s *TokenStore) Current() (model.CredentialSet, bool) {
	c := s.creds.Load()
	if c == nil {
		return model.CredentialSet{}, false
	}
	return *c, true
}

// HasCredentials はアクセストークンが保存されているかを返す。
func (s *TokenStore) HasCredentials() bool {
	c := s.creds.Load()
	return c != nil && c.AccessToken != ""
}

// IsExpired は現在時刻が有効期限を過ぎているかを返す。
// 未保存の場合はfalse（期限切れではなく未認証）。
func (s *TokenStore) IsExpired() bool {
	c := s.creds.Load()
	if c == nil {
		return false
	}
	return s.now().After(c.ExpiresAt)
}

// Clear は資格情報を破棄する。
func (s *TokenStore) Clear() {
	s.creds.Store(nil)
}
