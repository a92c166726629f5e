package sessionlog

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aura-live/backend/internal/middleware"
	"github.com/aura-live/backend/internal/models"
	"github.com/aura-live/backend/pkg/apperror"
	"github.com/aura-live/backend/pkg/response"
)

// SessionLookup resolves a session's owner.
type SessionLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*models.LiveSession, error)
}

// Handler handles GET /sessions/:id/participants.
type Handler struct {
	store    Store
	sessions SessionLookup
}

// NewHandler creates a participant log handler.
func NewHandler(store Store, sessions SessionLookup) *Handler {
	return &Handler{store: store, sessions: sessions}
}

// GetParticipants lists joins for a session (session owner or admin).
func (h *Handler) GetParticipants(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	s, err := h.sessions.Get(c.Request.Context(), sessionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	actor, _ := middleware.ActorFromContext(c)
	if s.CreatorID != actor.UserID && !actor.IsAdmin() {
		response.Error(c, apperror.ErrForbidden)
		return
	}
	list, err := h.store.ListBySession(c.Request.Context(), sessionID)
	if err != nil {
		response.Internal(c, "failed to list participants")
		return
	}
	summary, err := h.store.Summary(c.Request.Context(), sessionID)
	if err != nil {
		response.Internal(c, "failed to summarize participants")
		return
	}
	response.OK(c, gin.H{"participants": list, "summary": summary})
}
