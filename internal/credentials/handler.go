package credentials

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	webrtc "github.com/pion/webrtc/v3"
	"go.uber.org/zap"

	"github.com/aura-live/backend/internal/middleware"
	"github.com/aura-live/backend/internal/models"
	"github.com/aura-live/backend/pkg/apperror"
	"github.com/aura-live/backend/pkg/response"
)

// SessionLookup resolves the session a credential is requested for.
type SessionLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*models.LiveSession, error)
}

// IssueRequest is the body for POST /sessions/:id/credentials.
type IssueRequest struct {
	Role string `json:"role"`
}

// IssueResponse carries the credential plus what the client needs to reach the media backend.
type IssueResponse struct {
	Credential *models.JoinCredential `json:"credential"`
	ICEServers []webrtc.ICEServer     `json:"ice_servers"`
	AppID      uint32                 `json:"app_id,omitempty"`
}

// Handler handles credential HTTP endpoints.
type Handler struct {
	issuer     *Issuer
	sessions   SessionLookup
	iceServers []webrtc.ICEServer
	appID      uint32
	logger     *zap.Logger
}

// NewHandler creates a credential handler.
func NewHandler(issuer *Issuer, sessions SessionLookup, iceServers []webrtc.ICEServer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{issuer: issuer, sessions: sessions, iceServers: iceServers, logger: logger}
	if z, ok := issuer.signer.(interface{ AppID() uint32 }); ok {
		h.appID = z.AppID()
	}
	return h
}

// Issue handles POST /sessions/:id/credentials. Auth is optional; role defaults to viewer.
// The session must be live, and only its creator or an admin may join as host.
func (h *Handler) Issue(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	var req IssueRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "invalid request: "+err.Error())
			return
		}
	}
	if req.Role == "" {
		req.Role = string(models.CredentialRoleViewer)
	}

	s, err := h.sessions.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !s.IsActive {
		response.Error(c, apperror.ErrRoomInactive)
		return
	}

	role := models.CredentialRole(req.Role)
	actor, authed := middleware.ActorFromContext(c)
	if role == models.CredentialRoleHost && authed && actor.UserID != s.CreatorID && !actor.IsAdmin() {
		response.Error(c, apperror.ErrForbidden)
		return
	}

	cred, err := h.issuer.Issue(Request{
		RoomName:      s.RoomName(),
		Identity:      actor.UserID,
		Authenticated: authed,
		Role:          role,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	h.logger.Debug("credential issued",
		zap.String("session_id", s.ID.String()),
		zap.String("identity", cred.Identity),
		zap.String("role", string(cred.Role)),
	)
	response.OK(c, IssueResponse{Credential: cred, ICEServers: h.iceServers, AppID: h.appID})
}

func (h *Handler) fail(c *gin.Context, err error) {
	if response.Status(err) >= 500 {
		h.logger.Error("credential issuance failed", zap.String("session_id", c.Param("id")), zap.Error(err))
	}
	response.Error(c, err)
}
