package sessions

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aura-live/backend/internal/models"
	"github.com/aura-live/backend/pkg/apperror"
)

// MemoryStore is a process-local Store for single instance deployments and tests.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*models.LiveSession
	active   map[string]uuid.UUID // creator -> active session
	now      func() time.Time
	last     time.Time
}

// NewMemoryStore creates an empty store. A nil clock uses time.Now.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		sessions: make(map[uuid.UUID]*models.LiveSession),
		active:   make(map[string]uuid.UUID),
		now:      now,
	}
}

// tick reads the clock under s.mu. Returned times are strictly increasing so
// start order and StartedAt order always agree.
func (s *MemoryStore) tick() time.Time {
	t := s.now().UTC()
	if !t.After(s.last) {
		t = s.last.Add(time.Nanosecond)
	}
	s.last = t
	return t
}

func (s *MemoryStore) Start(ctx context.Context, creatorID string) (*models.LiveSession, []models.LiveSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.tick()
	var replaced []models.LiveSession
	if id, ok := s.active[creatorID]; ok {
		replaced = append(replaced, s.deactivate(id, now, models.EndReasonReplaced))
	}
	sess := &models.LiveSession{
		ID:        uuid.New(),
		CreatorID: creatorID,
		IsActive:  true,
		StartedAt: now,
		UpdatedAt: now,
	}
	s.sessions[sess.ID] = sess
	s.active[creatorID] = sess.ID
	out := *sess
	return &out, replaced, nil
}

func (s *MemoryStore) StopCreator(ctx context.Context, creatorID string) ([]models.LiveSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.active[creatorID]
	if !ok {
		return nil, nil
	}
	return []models.LiveSession{s.deactivate(id, s.tick(), models.EndReasonStopped)}, nil
}

func (s *MemoryStore) StopAll(ctx context.Context) ([]models.LiveSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.active) == 0 {
		return nil, nil
	}
	now := s.tick()
	ids := make([]uuid.UUID, 0, len(s.active))
	for _, id := range s.active {
		ids = append(ids, id)
	}
	out := make([]models.LiveSession, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.deactivate(id, now, models.EndReasonStoppedAll))
	}
	return out, nil
}

func (s *MemoryStore) End(ctx context.Context, id uuid.UUID) (*models.LiveSession, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, false, apperror.ErrNotFound
	}
	if !sess.IsActive {
		out := clone(sess)
		return &out, false, nil
	}
	out := s.deactivate(id, s.tick(), models.EndReasonEnded)
	return &out, true, nil
}

// deactivate must be called with s.mu held and id active.
func (s *MemoryStore) deactivate(id uuid.UUID, now time.Time, reason models.EndReason) models.LiveSession {
	sess := s.sessions[id]
	ended := now
	sess.IsActive = false
	sess.EndedAt = &ended
	sess.EndReason = reason
	sess.UpdatedAt = now
	delete(s.active, sess.CreatorID)
	return clone(sess)
}

func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*models.LiveSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, apperror.ErrNotFound
	}
	out := clone(sess)
	return &out, nil
}

func (s *MemoryStore) LatestActive(ctx context.Context) (*models.LiveSession, error) {
	list, err := s.ListActive(ctx)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

// ListActive returns active sessions, most recently started first.
func (s *MemoryStore) ListActive(ctx context.Context) ([]models.LiveSession, error) {
	s.mu.Lock()
	out := make([]models.LiveSession, 0, len(s.active))
	for _, id := range s.active {
		out = append(out, clone(s.sessions[id]))
	}
	s.mu.Unlock()
	sortNewestFirst(out)
	return out, nil
}

func (s *MemoryStore) ListByCreator(ctx context.Context, creatorID string, limit int) ([]models.LiveSession, error) {
	s.mu.Lock()
	var out []models.LiveSession
	for _, sess := range s.sessions {
		if sess.CreatorID == creatorID {
			out = append(out, clone(sess))
		}
	}
	s.mu.Unlock()
	sortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) UpdatePeakViewers(ctx context.Context, id uuid.UUID, peak int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return apperror.ErrNotFound
	}
	if peak > sess.PeakViewers {
		sess.PeakViewers = peak
		sess.UpdatedAt = s.tick()
	}
	return nil
}

func clone(s *models.LiveSession) models.LiveSession {
	out := *s
	if s.EndedAt != nil {
		t := *s.EndedAt
		out.EndedAt = &t
	}
	return out
}

func sortNewestFirst(list []models.LiveSession) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].StartedAt.Equal(list[j].StartedAt) {
			return list[i].ID.String() > list[j].ID.String()
		}
		return list[i].StartedAt.After(list[j].StartedAt)
	})
}
