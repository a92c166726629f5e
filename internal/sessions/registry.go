// Package sessions is the authoritative record of which creators are broadcasting.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-live/backend/internal/models"
	"github.com/aura-live/backend/internal/observability"
	"github.com/aura-live/backend/pkg/apperror"
	"github.com/aura-live/backend/pkg/queue"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
	enqueueTimeout      = 3 * time.Second
)

// ArchiveQueue receives sessions that just went inactive.
type ArchiveQueue interface {
	EnqueueSessionArchive(ctx context.Context, payload queue.SessionArchivePayload) error
}

// Registry drives the session state machine on top of a Store.
type Registry struct {
	store   Store
	archive ArchiveQueue
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewRegistry creates a session registry.
func NewRegistry(store Store, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{store: store, logger: logger}
}

// SetArchiveQueue enables archive jobs for deactivated sessions.
func (r *Registry) SetArchiveQueue(q ArchiveQueue) { r.archive = q }

// SetMetrics enables transition counters.
func (r *Registry) SetMetrics(m *observability.Metrics) { r.metrics = m }

// Start begins a new broadcast for creatorID, replacing any session the creator still has active.
func (r *Registry) Start(ctx context.Context, creatorID string) (*models.LiveSession, error) {
	creatorID = strings.TrimSpace(creatorID)
	if creatorID == "" {
		return nil, apperror.Validation("creator_id", "required")
	}
	s, replaced, err := r.store.Start(ctx, creatorID)
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	r.metrics.SessionTransition("started", 1)
	r.deactivated(ctx, replaced)
	r.logger.Info("session started",
		zap.String("session_id", s.ID.String()),
		zap.String("creator_id", creatorID),
		zap.Int("replaced", len(replaced)),
	)
	return s, nil
}

// Stop ends the creator's active session. It returns 0 when nothing was live.
func (r *Registry) Stop(ctx context.Context, creatorID string) (int, error) {
	creatorID = strings.TrimSpace(creatorID)
	if creatorID == "" {
		return 0, apperror.Validation("creator_id", "required")
	}
	stopped, err := r.store.StopCreator(ctx, creatorID)
	if err != nil {
		return 0, fmt.Errorf("stop session: %w", err)
	}
	r.deactivated(ctx, stopped)
	if len(stopped) > 0 {
		r.logger.Info("session stopped", zap.String("creator_id", creatorID))
	}
	return len(stopped), nil
}

// StopAll is the platform kill switch. Only admins may call it.
func (r *Registry) StopAll(ctx context.Context, actor models.Actor) (int, error) {
	if !actor.IsAdmin() {
		return 0, fmt.Errorf("stop all sessions: %w", apperror.ErrForbidden)
	}
	stopped, err := r.store.StopAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("stop all sessions: %w", err)
	}
	r.deactivated(ctx, stopped)
	r.logger.Warn("all sessions stopped", zap.String("actor", actor.UserID), zap.Int("count", len(stopped)))
	return len(stopped), nil
}

// End marks one session inactive. Ending an inactive session succeeds without touching it.
func (r *Registry) End(ctx context.Context, id uuid.UUID) (*models.LiveSession, error) {
	s, changed, err := r.store.End(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("end session %s: %w", id, err)
	}
	if changed {
		r.deactivated(ctx, []models.LiveSession{*s})
		r.logger.Info("session ended", zap.String("session_id", id.String()), zap.String("creator_id", s.CreatorID))
	}
	return s, nil
}

// Get returns one session.
func (r *Registry) Get(ctx context.Context, id uuid.UUID) (*models.LiveSession, error) {
	return r.store.Get(ctx, id)
}

// History lists a creator's sessions newest first. limit <= 0 uses the default page size.
func (r *Registry) History(ctx context.Context, creatorID string, limit int) ([]models.LiveSession, error) {
	creatorID = strings.TrimSpace(creatorID)
	if creatorID == "" {
		return nil, apperror.Validation("creator_id", "required")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return r.store.ListByCreator(ctx, creatorID, limit)
}

// IsActive reports whether roomID names an active session. Malformed or unknown ids are not active.
func (r *Registry) IsActive(ctx context.Context, roomID string) (bool, error) {
	id, err := uuid.Parse(roomID)
	if err != nil {
		return false, nil
	}
	s, err := r.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return s.IsActive, nil
}

// RecordAudience raises the session's peak viewer count.
func (r *Registry) RecordAudience(ctx context.Context, roomID string, count int) {
	id, err := uuid.Parse(roomID)
	if err != nil {
		return
	}
	if err := r.store.UpdatePeakViewers(ctx, id, count); err != nil && !errors.Is(err, apperror.ErrNotFound) {
		r.logger.Warn("update peak viewers failed", zap.String("session_id", roomID), zap.Error(err))
	}
}

func (r *Registry) deactivated(ctx context.Context, list []models.LiveSession) {
	for _, s := range list {
		r.metrics.SessionTransition(string(s.EndReason), 1)
		if r.archive == nil {
			continue
		}
		enqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), enqueueTimeout)
		err := r.archive.EnqueueSessionArchive(enqCtx, queue.SessionArchivePayload{
			SessionID: s.ID,
			CreatorID: s.CreatorID,
			EndReason: string(s.EndReason),
		})
		cancel()
		if err != nil {
			r.logger.Error("enqueue session archive failed", zap.String("session_id", s.ID.String()), zap.Error(err))
		}
	}
}
