package presence

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/hitoshi/harmony/internal/model"
)

// Store は最新のPresenceSnapshotを保持する単一スロット。
// 書き込みはポインタの原子的な置き換えで行い、読み取り側は常に
// 旧スナップショットか新スナップショットのどちらか一方を丸ごと観測する。
type Store struct {
	snap     atomic.Pointer[model.PresenceSnapshot]
	observed atomic.Bool
}

// NewStore は初期スナップショットを持つStoreを生成する。
// initialがnilの場合は名前なしのオフラインスナップショットを使う。
func NewStore(initial *model.PresenceSnapshot) *Store {
	if initial == nil {
		initial = model.OfflineSnapshot("", "")
	}
	s := &Store{}
	s.snap.Store(initial)
	return s
}

// Load は現在のスナップショットを返す。戻り値を変更してはならない。
func (s *Store) Load() *model.PresenceSnapshot {
	return s.snap.Load()
}

// Publish はスナップショットを置き換える。
func (s *Store) Publish(_ context.Context, snap *model.PresenceSnapshot) error {
	if snap == nil {
		return errors.New("presence snapshot is nil")
	}
	s.snap.Store(snap)
	s.observed.Store(true)
	return nil
}

// Observed は一度でもスナップショットが公開されたかを返す。
func (s *Store) Observed() bool {
	return s.observed.Load()
}
