package worker

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aura-live/backend/pkg/response"
	"github.com/aura-live/backend/pkg/storage"
)

// Presigner hands out time-limited download URLs for archive objects.
type Presigner interface {
	PresignDownload(ctx context.Context, key string) (string, error)
}

// ArchiveHandler handles GET /sessions/:id/archive-url.
type ArchiveHandler struct {
	sessions  SessionSource
	presigner Presigner
}

func NewArchiveHandler(sessions SessionSource, presigner Presigner) *ArchiveHandler {
	return &ArchiveHandler{sessions: sessions, presigner: presigner}
}

// DownloadURL returns a pre-signed URL for an ended session's archive.
func (h *ArchiveHandler) DownloadURL(c *gin.Context) {
	if h.presigner == nil {
		response.ServiceUnavailable(c, "archive storage not configured")
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	s, err := h.sessions.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	if s.IsActive {
		response.Conflict(c, "session is still live")
		return
	}
	url, err := h.presigner.PresignDownload(c.Request.Context(), storage.ArchiveKey(s.CreatorID, s.ID.String()))
	if err != nil {
		response.Internal(c, "failed to generate download URL")
		return
	}
	response.OK(c, gin.H{"url": url})
}
