package sessions

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-live/backend/internal/middleware"
	"github.com/aura-live/backend/pkg/apperror"
	"github.com/aura-live/backend/pkg/response"
)

// StartRequest is the optional body for POST /sessions/start and /sessions/stop.
// Admins may act on behalf of another creator; everyone else acts on themselves.
type StartRequest struct {
	CreatorID string `json:"creator_id"`
}

// Handler handles session lifecycle HTTP endpoints.
type Handler struct {
	registry *Registry
	logger   *zap.Logger
}

// NewHandler creates a session handler.
func NewHandler(registry *Registry, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{registry: registry, logger: logger}
}

// Start handles POST /sessions/start (creator or admin).
func (h *Handler) Start(c *gin.Context) {
	creatorID, ok := h.targetCreator(c)
	if !ok {
		return
	}
	s, err := h.registry.Start(c.Request.Context(), creatorID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, s)
}

// Stop handles POST /sessions/stop.
func (h *Handler) Stop(c *gin.Context) {
	creatorID, ok := h.targetCreator(c)
	if !ok {
		return
	}
	n, err := h.registry.Stop(c.Request.Context(), creatorID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, gin.H{"stopped": n})
}

// StopAll handles POST /sessions/stop-all (admin).
func (h *Handler) StopAll(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)
	n, err := h.registry.StopAll(c.Request.Context(), actor)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, gin.H{"stopped": n})
}

// End handles POST /sessions/:id/end (session owner or admin).
func (h *Handler) End(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	actor, _ := middleware.ActorFromContext(c)
	s, err := h.registry.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	if s.CreatorID != actor.UserID && !actor.IsAdmin() {
		response.Error(c, apperror.ErrForbidden)
		return
	}
	s, err = h.registry.End(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, s)
}

// Get handles GET /sessions/:id.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	s, err := h.registry.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, s)
}

// History handles GET /creators/:id/sessions?limit=.
func (h *Handler) History(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	list, err := h.registry.History(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, list)
}

func (h *Handler) targetCreator(c *gin.Context) (string, bool) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return "", false
	}
	var req StartRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "invalid request: "+err.Error())
			return "", false
		}
	}
	if req.CreatorID == "" || req.CreatorID == actor.UserID {
		return actor.UserID, true
	}
	if !actor.IsAdmin() {
		response.Error(c, apperror.ErrForbidden)
		return "", false
	}
	return req.CreatorID, true
}

func (h *Handler) fail(c *gin.Context, err error) {
	if response.Status(err) >= 500 {
		h.logger.Error("session request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	response.Error(c, err)
}
