package realtime

import (
	"github.com/gin-gonic/gin"

	"github.com/aura-live/backend/internal/middleware"
	"github.com/aura-live/backend/pkg/apperror"
	"github.com/aura-live/backend/pkg/response"
)

// PublishRequest is the body for POST /sessions/:id/events.
type PublishRequest struct {
	Type         string  `json:"type" binding:"required"`
	Body         string  `json:"body"`
	Kind         string  `json:"kind"`
	OriginOffset float64 `json:"origin_offset"`
}

// Handler exposes the channel over plain HTTP for clients without a socket.
type Handler struct {
	hub *Hub
}

func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

// Publish handles POST /sessions/:id/events. Chat requires an authenticated caller;
// reactions may be anonymous.
func (h *Handler) Publish(c *gin.Context) {
	var req PublishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	actor, authed := middleware.ActorFromContext(c)

	var ev Event
	switch req.Type {
	case EventChatMessage:
		if !authed {
			response.Unauthorized(c, "chat requires sign in")
			return
		}
		ev = ChatMessage{Body: req.Body}
	case EventReaction:
		ev = ReactionBurst{Kind: req.Kind, OriginOffset: req.OriginOffset}
	default:
		response.Error(c, apperror.Validation("type", "must be chat_message or reaction"))
		return
	}

	if err := h.hub.PublishAs(c.Request.Context(), c.Param("id"), actor.UserID, ev); err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, gin.H{"type": req.Type})
}

// Audience handles GET /sessions/:id/audience (subscribers on this instance).
func (h *Handler) Audience(c *gin.Context) {
	response.OK(c, gin.H{"count": h.hub.AudienceCount(c.Param("id"))})
}
