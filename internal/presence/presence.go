// Package presence answers "is anyone live right now, and who".
package presence

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aura-live/backend/internal/models"
	"github.com/aura-live/backend/pkg/response"
)

// Source is the read side of the session store.
type Source interface {
	LatestActive(ctx context.Context) (*models.LiveSession, error)
	ListActive(ctx context.Context) ([]models.LiveSession, error)
}

// Status is the poll-friendly projection of the latest active session.
type Status struct {
	IsLive    bool       `json:"is_live"`
	SessionID *uuid.UUID `json:"session_id,omitempty"`
	CreatorID string     `json:"creator_id,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
}

// Service is a read-only view over the registry's store.
type Service struct {
	src Source
}

func NewService(src Source) *Service {
	return &Service{src: src}
}

// GetActive reports the most recently started active session, if any.
func (s *Service) GetActive(ctx context.Context) (Status, error) {
	latest, err := s.src.LatestActive(ctx)
	if err != nil {
		return Status{}, err
	}
	if latest == nil {
		return Status{IsLive: false}, nil
	}
	id := latest.ID
	started := latest.StartedAt
	return Status{
		IsLive:    true,
		SessionID: &id,
		CreatorID: latest.CreatorID,
		StartedAt: &started,
	}, nil
}

// ListLive returns every active session, newest first.
func (s *Service) ListLive(ctx context.Context) ([]models.LiveSession, error) {
	list, err := s.src.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.LiveSession{}
	}
	return list, nil
}

// Active handles GET /live/active.
func (s *Service) Active(c *gin.Context) {
	st, err := s.GetActive(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	response.OK(c, st)
}

// Sessions handles GET /live/sessions.
func (s *Service) Sessions(c *gin.Context) {
	list, err := s.ListLive(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	response.OK(c, list)
}
