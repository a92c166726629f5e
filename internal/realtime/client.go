package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aura-live/backend/internal/credentials"
	"github.com/aura-live/backend/pkg/apperror"
	"github.com/aura-live/backend/pkg/response"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 16 << 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS for the API is enforced by middleware; sockets carry their own token
	},
}

// IdentityFunc validates an identity token and returns the caller's identity.
type IdentityFunc func(token string) (identity string, err error)

// chatFrame and reactionFrame are the inbound payloads.
type chatFrame struct {
	Body string `json:"body"`
}

type reactionFrame struct {
	Kind         string  `json:"kind"`
	OriginOffset float64 `json:"origin_offset"`
}

// Client is one websocket connection bound to a subscription.
type Client struct {
	hub    *Hub
	sub    *Subscription
	conn   *websocket.Conn
	logger *zap.Logger
}

// ServeWs handles GET /ws?session_id=&token=. The token is optional; without it the
// caller joins under a generated viewer identity. Connect errors are answered as JSON
// before the upgrade.
func ServeWs(hub *Hub, identify IdentityFunc, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		roomID := strings.TrimSpace(c.Query("session_id"))
		if roomID == "" {
			response.BadRequest(c, "session_id required")
			return
		}
		identity := credentials.AnonymousIdentity()
		if token := c.Query("token"); token != "" {
			id, err := identify(token)
			if err != nil {
				response.Unauthorized(c, "invalid token")
				return
			}
			identity = id
		}

		sub, err := hub.Connect(c.Request.Context(), roomID, identity)
		if err != nil {
			if response.Status(err) >= 500 {
				logger.Error("websocket connect failed", zap.String("room_id", roomID), zap.Error(err))
			}
			response.Error(c, err)
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.Disconnect(sub)
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{hub: hub, sub: sub, conn: conn, logger: logger}
		go client.writePump()
		client.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Disconnect(c.sub)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait))
		return nil
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read error", zap.String("subscription_id", c.sub.ID), zap.Error(err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait))

		var ev Event
		switch msg.Event {
		case EventChatMessage:
			var f chatFrame
			if err := json.Unmarshal(msg.Data, &f); err != nil {
				c.reject(apperror.Validation("data", "invalid chat payload"))
				continue
			}
			ev = ChatMessage{Body: f.Body}
		case EventReaction:
			var f reactionFrame
			if err := json.Unmarshal(msg.Data, &f); err != nil {
				c.reject(apperror.Validation("data", "invalid reaction payload"))
				continue
			}
			ev = ReactionBurst{Kind: f.Kind, OriginOffset: f.OriginOffset}
		default:
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		err := c.hub.PublishFrom(ctx, c.sub, ev)
		cancel()
		if err != nil {
			c.reject(err)
		}
	}
}

// reject tells this client why its frame was not delivered.
func (c *Client) reject(err error) {
	f := ErrorFrame{Message: "publish failed"}
	var v *apperror.ValidationError
	switch {
	case errors.As(err, &v):
		f.Message, f.Field = v.Message, v.Field
	case response.Status(err) == http.StatusConflict:
		f.Message = "session is not live"
	default:
		c.logger.Warn("publish from websocket failed", zap.String("room_id", c.sub.RoomID), zap.Error(err))
	}
	msg, encErr := encode(EventError, f)
	if encErr != nil {
		return
	}
	c.hub.notify(c.sub, msg)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.sub.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
