package sessionlog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aura-live/backend/internal/models"
)

// MemoryStore keeps participant rows in process memory.
type MemoryStore struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*models.RoomParticipant
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[uuid.UUID]*models.RoomParticipant)}
}

func (m *MemoryStore) LogJoin(_ context.Context, p models.RoomParticipant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[p.ID]; !ok {
		row := p
		m.rows[p.ID] = &row
	}
	return nil
}

func (m *MemoryStore) LogLeave(_ context.Context, id uuid.UUID, leftAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok || row.LeftAt != nil {
		return nil
	}
	t := leftAt
	row.LeftAt = &t
	if secs := int64(leftAt.Sub(row.JoinedAt).Seconds()); secs > 0 {
		row.WatchSeconds = secs
	}
	return nil
}

func (m *MemoryStore) ListBySession(_ context.Context, sessionID uuid.UUID) ([]models.RoomParticipant, error) {
	m.mu.Lock()
	list := []models.RoomParticipant{}
	for _, row := range m.rows {
		if row.SessionID == sessionID {
			list = append(list, *row)
		}
	}
	m.mu.Unlock()
	sort.Slice(list, func(i, j int) bool { return list[i].JoinedAt.After(list[j].JoinedAt) })
	return list, nil
}

func (m *MemoryStore) Summary(ctx context.Context, sessionID uuid.UUID) (*Summary, error) {
	list, _ := m.ListBySession(ctx, sessionID)
	seen := make(map[string]struct{})
	s := &Summary{Joins: len(list)}
	for _, p := range list {
		seen[p.Identity] = struct{}{}
		s.TotalWatchSeconds += p.WatchSeconds
	}
	s.DistinctIdentity = len(seen)
	return s, nil
}
