package presence

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/hitoshi/harmony/internal/model"
)

func TestStore_InitialIsOffline(t *testing.T) {
	s := NewStore(model.OfflineSnapshot("Fractal", "frac"))

	snap := s.Load()
	if snap.Status != model.PresenceOffline || snap.Activity != nil {
		t.Errorf("initial snapshot = %+v, want offline without activity", snap)
	}
	if s.Observed() {
		t.Error("Observed should be false before first publish")
	}
}

func TestStore_NewStore_NilInitial(t *testing.T) {
	s := NewStore(nil)
	if s.Load() == nil {
		t.Fatal("Load should never return nil")
	}
}

func TestStore_Publish_ReplacesWholesale(t *testing.T) {
	s := NewStore(nil)
	next := &model.PresenceSnapshot{
		Username: "Fractal",
		Tag:      "frac",
		Status:   model.PresenceOnline,
		Activity: &model.Activity{Name: "Game", ElapsedTime: "Active now"},
	}

	if err := s.Publish(context.Background(), next); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if s.Load() != next {
		t.Error("Load should return the published snapshot")
	}
	if !s.Observed() {
		t.Error("Observed should be true after publish")
	}
}

func TestStore_Publish_Nil(t *testing.T) {
	s := NewStore(nil)
	if err := s.Publish(context.Background(), nil); err == nil {
		t.Error("expected error for nil snapshot")
	}
	if s.Observed() {
		t.Error("rejected publish should not mark the store observed")
	}
}

func TestStore_Load_IdempotentJSON(t *testing.T) {
	s := NewStore(nil)
	s.Publish(context.Background(), &model.PresenceSnapshot{Username: "a", Tag: "b", Status: model.PresenceIdle})

	first, _ := json.Marshal(s.Load())
	second, _ := json.Marshal(s.Load())
	if !bytes.Equal(first, second) {
		t.Errorf("consecutive reads differ: %s vs %s", first, second)
	}
}

func TestStore_ConcurrentPublishAndLoad(t *testing.T) {
	s := NewStore(nil)
	snaps := []*model.PresenceSnapshot{
		{Username: "a", Tag: "a", Status: model.PresenceOnline},
		{Username: "b", Tag: "b", Status: model.PresenceIdle},
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			s.Publish(context.Background(), snaps[i%2])
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := s.Load()
			if snap.Username != snap.Tag {
				t.Errorf("torn snapshot: %+v", snap)
				return
			}
		}
	}()
	wg.Wait()
}
