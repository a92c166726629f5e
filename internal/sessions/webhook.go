package sessions

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-live/backend/pkg/apperror"
	"github.com/aura-live/backend/pkg/response"
)

// SignatureHeader carries "sha256=<hex hmac of body>".
const SignatureHeader = "X-Live-Signature"

const maxWebhookBody = 64 << 10

// RoomEndedEvent is the media backend's notification that a room terminated.
type RoomEndedEvent struct {
	RoomName string `json:"room_name"`
}

// WebhookHandler receives room lifecycle callbacks from the media backend.
type WebhookHandler struct {
	registry *Registry
	secret   []byte
	logger   *zap.Logger
}

// NewWebhookHandler creates a webhook handler. An empty secret rejects every callback.
func NewWebhookHandler(registry *Registry, secret string, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{registry: registry, secret: []byte(secret), logger: logger}
}

// Sign returns the signature header value for body.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func (h *WebhookHandler) verify(body []byte, header string) bool {
	got, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	sig, err := hex.DecodeString(got)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	return hmac.Equal(sig, mac.Sum(nil))
}

// RoomEnded handles POST /webhooks/room-ended.
func (h *WebhookHandler) RoomEnded(c *gin.Context) {
	if len(h.secret) == 0 {
		response.Error(c, apperror.Configuration("webhook secret not set"))
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		response.BadRequest(c, "unreadable body")
		return
	}
	if !h.verify(body, c.GetHeader(SignatureHeader)) {
		h.logger.Warn("webhook signature mismatch", zap.String("client_ip", c.ClientIP()))
		response.Unauthorized(c, "invalid signature")
		return
	}
	var ev RoomEndedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		response.BadRequest(c, "invalid payload")
		return
	}
	id, err := uuid.Parse(ev.RoomName)
	if err != nil {
		response.Error(c, apperror.Validation("room_name", "must be a session id"))
		return
	}
	s, err := h.registry.End(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, s)
}
