package cleanup

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hitoshi/harmony/internal/auth"
)

// mockSweeper はSweeperのテスト用モック。
type mockSweeper struct {
	sweepCalls atomic.Int32
	removed    int
	remaining  int
}

func (m *mockSweeper) Sweep() int {
	m.sweepCalls.Add(1)
	return m.removed
}

func (m *mockSweeper) Count() int { return m.remaining }

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func TestNewCleanupJob_ReturnsNonNil(t *testing.T) {
	var buf bytes.Buffer
	job := NewCleanupJob(&mockSweeper{}, newTestLogger(&buf))

	if job == nil {
		t.Fatal("NewCleanupJob は nil を返してはならない")
	}
}

func TestCleanupJob_Run_SweepsSessions(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockSweeper{removed: 3, remaining: 1}
	job := NewCleanupJob(mock, newTestLogger(&buf))

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() がエラーを返した: %v", err)
	}
	if mock.sweepCalls.Load() != 1 {
		t.Errorf("Sweep 呼び出し回数 = %d, want 1", mock.sweepCalls.Load())
	}
}

func TestCleanupJob_Run_LogsDeletedCount(t *testing.T) {
	var buf bytes.Buffer
	job := NewCleanupJob(&mockSweeper{removed: 42}, newTestLogger(&buf))

	_ = job.Run(context.Background())

	var entry map[string]interface{}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	found := false
	for _, line := range lines {
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if count, ok := entry["deleted_count"]; ok && count == float64(42) {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("ログに deleted_count=42 が記録されていない。ログ出力: %s", buf.String())
	}
}

func TestCleanupJob_Run_CancelledContext(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockSweeper{}
	job := NewCleanupJob(mock, newTestLogger(&buf))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := job.Run(ctx); err == nil {
		t.Error("キャンセル済みコンテキストではエラーを返すべき")
	}
	if mock.sweepCalls.Load() != 0 {
		t.Error("キャンセル済みコンテキストでSweepを呼んではならない")
	}
}

func TestCleanupJob_Run_WithSessionManager(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	sessions := auth.NewSessionManager(time.Hour, clock)
	sessions.Create()
	sessions.Create()
	now = now.Add(2 * time.Hour)
	sessions.Create()

	var buf bytes.Buffer
	job := NewCleanupJob(sessions, newTestLogger(&buf))

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() がエラーを返した: %v", err)
	}
	if sessions.Count() != 1 {
		t.Errorf("残存セッション数 = %d, want 1", sessions.Count())
	}
}

func TestCleanupJob_Start_RunsOnTickAndStops(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockSweeper{}
	job := NewCleanupJob(mock, newTestLogger(&buf))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx, 5*time.Millisecond)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for mock.sweepCalls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("Sweep 呼び出し回数 = %d, want >= 2", mock.sweepCalls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("キャンセル後にStartが終了するべき")
	}
}
