package sessions

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/aura-live/backend/internal/models"
	"github.com/aura-live/backend/pkg/apperror"
)

func TestMemoryStoreConcurrentStartsLeaveOneActive(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx := context.Background()

	const n = 50
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		started []models.LiveSession
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, _, err := store.Start(ctx, "creator-a")
			if err != nil {
				t.Errorf("Start() error = %v", err)
				return
			}
			mu.Lock()
			started = append(started, *s)
			mu.Unlock()
		}()
	}
	wg.Wait()

	active, err := store.ListActive(ctx)
	if err != nil {
		t.Fatalf("ListActive() error = %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("active sessions = %d, want 1", len(active))
	}
	var latest models.LiveSession
	for _, s := range started {
		if s.StartedAt.After(latest.StartedAt) {
			latest = s
		}
	}
	if active[0].ID != latest.ID {
		t.Fatalf("active session = %s, want latest started %s", active[0].ID, latest.ID)
	}

	history, err := store.ListByCreator(ctx, "creator-a", 0)
	if err != nil {
		t.Fatalf("ListByCreator() error = %v", err)
	}
	if len(history) != n {
		t.Fatalf("history = %d rows, want %d", len(history), n)
	}
	for _, s := range history[1:] {
		if s.IsActive || s.EndedAt == nil || s.EndReason != models.EndReasonReplaced {
			t.Fatalf("replaced session %s = %+v", s.ID, s)
		}
	}
}

func TestMemoryStoreEndTwiceKeepsEndedAt(t *testing.T) {
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore(func() time.Time { return clock })
	ctx := context.Background()

	s, _, err := store.Start(ctx, "creator-a")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	clock = clock.Add(time.Minute)
	first, changed, err := store.End(ctx, s.ID)
	if err != nil || !changed {
		t.Fatalf("End() = changed %v, error %v", changed, err)
	}
	clock = clock.Add(time.Hour)
	second, changed, err := store.End(ctx, s.ID)
	if err != nil {
		t.Fatalf("End() second error = %v", err)
	}
	if changed {
		t.Fatalf("End() second changed = true, want false")
	}
	if !second.EndedAt.Equal(*first.EndedAt) {
		t.Fatalf("EndedAt rewritten: %v -> %v", first.EndedAt, second.EndedAt)
	}
}

func TestMemoryStoreEndUnknown(t *testing.T) {
	store := NewMemoryStore(nil)
	if _, _, err := store.End(context.Background(), uuid.New()); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("End() error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreStopAllAndPeak(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx := context.Background()
	a, _, _ := store.Start(ctx, "a")
	if _, _, err := store.Start(ctx, "b"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := store.UpdatePeakViewers(ctx, a.ID, 7); err != nil {
		t.Fatalf("UpdatePeakViewers() error = %v", err)
	}
	if err := store.UpdatePeakViewers(ctx, a.ID, 3); err != nil {
		t.Fatalf("UpdatePeakViewers() error = %v", err)
	}

	stopped, err := store.StopAll(ctx)
	if err != nil {
		t.Fatalf("StopAll() error = %v", err)
	}
	if len(stopped) != 2 {
		t.Fatalf("StopAll() = %d sessions, want 2", len(stopped))
	}
	latest, err := store.LatestActive(ctx)
	if err != nil || latest != nil {
		t.Fatalf("LatestActive() = %v, %v, want nil", latest, err)
	}
	got, _ := store.Get(ctx, a.ID)
	if got.PeakViewers != 7 || got.EndReason != models.EndReasonStoppedAll {
		t.Fatalf("session a = %+v", got)
	}
}
