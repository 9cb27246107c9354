package auth

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/harmony/internal/model"
)

// Session はブラウザセッションとそれに紐づくトークンストア。
type Session struct {
	model.Session
	Tokens *TokenStore
}

// SessionManager はインメモリのセッションを管理する。
// プロセス再起動でセッションは全て失われる（単一ユーザー前提で許容）。
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	maxAge   time.Duration
	now      func() time.Time
}

// NewSessionManager はSessionManagerを生成する。
// maxAgeは最終アクセスからセッションが失効するまでの時間。
func NewSessionManager(maxAge time.Duration, now func() time.Time) *SessionManager {
	if now == nil {
		now = time.Now
	}
	return &SessionManager{
		sessions: make(map[string]*Session),
		maxAge:   maxAge,
		now:      now,
	}
}

// Create は新しいセッションを発行する。
func (m *SessionManager) Create() *Session {
	now := m.now()
	s := &Session{
		Session: model.Session{
			ID:         uuid.NewString(),
			CreatedAt:  now,
			LastAccess: now,
		},
		Tokens: NewTokenStore(m.now),
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

// Get はセッションIDに対応する有効なセッションを返し、最終アクセス時刻を更新する。
// 存在しないか失効している場合はfalseを返す。
func (m *SessionManager) Get(id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	now := m.now()
	if now.Sub(s.LastAccess) > m.maxAge {
		delete(m.sessions, id)
		return nil, false
	}
	s.LastAccess = now
	return s, true
}

// Delete はセッションを破棄する。存在しないIDは無視する。
func (m *SessionManager) Delete(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Sweep は失効したセッションを削除し、削除件数を返す。
func (m *SessionManager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for id, s := range m.sessions {
		if now.Sub(s.LastAccess) > m.maxAge {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// Count は現在保持しているセッション数を返す。
func (m *SessionManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
