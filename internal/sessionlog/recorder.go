package sessionlog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-live/backend/internal/models"
	"github.com/aura-live/backend/internal/realtime"
)

const writeTimeout = 5 * time.Second

// Recorder turns hub join/leave callbacks into participant rows.
type Recorder struct {
	store  Store
	logger *zap.Logger
}

func NewRecorder(store Store, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{store: store, logger: logger}
}

// Attach registers the recorder on hub.
func (r *Recorder) Attach(hub *realtime.Hub) {
	hub.SetSessionLogger(r.OnJoin, r.OnLeave)
}

func (r *Recorder) OnJoin(sub *realtime.Subscription) {
	sessionID, id, ok := ids(sub)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	err := r.store.LogJoin(ctx, models.RoomParticipant{
		ID:        id,
		SessionID: sessionID,
		Identity:  sub.Identity,
		JoinedAt:  sub.JoinedAt,
	})
	if err != nil {
		r.logger.Warn("log join failed", zap.String("room_id", sub.RoomID), zap.Error(err))
	}
}

func (r *Recorder) OnLeave(sub *realtime.Subscription, leftAt time.Time) {
	_, id, ok := ids(sub)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := r.store.LogLeave(ctx, id, leftAt); err != nil {
		r.logger.Warn("log leave failed", zap.String("room_id", sub.RoomID), zap.Error(err))
	}
}

func ids(sub *realtime.Subscription) (sessionID, id uuid.UUID, ok bool) {
	sessionID, err := uuid.Parse(sub.RoomID)
	if err != nil {
		return uuid.Nil, uuid.Nil, false
	}
	id, err = uuid.Parse(sub.ID)
	if err != nil {
		return uuid.Nil, uuid.Nil, false
	}
	return sessionID, id, true
}
