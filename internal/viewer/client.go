package viewer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aura-live/backend/internal/realtime"
)

// DefaultPollInterval is how often the client asks whether its session is still live.
const DefaultPollInterval = 10 * time.Second

// ErrSessionEnded is returned by Run when the client left because the session is no longer live.
var ErrSessionEnded = errors.New("session ended")

// ClientOptions configures a viewer client.
type ClientOptions struct {
	BaseURL      string // http(s) address of the API
	SessionID    string
	Token        string // optional identity token
	PollInterval time.Duration

	OnChat     func(realtime.ChatMessage)
	OnReaction func(realtime.ReactionBurst)
	OnError    func(realtime.ErrorFrame)
}

// Client joins one session's engagement channel and watches presence for its end.
type Client struct {
	opts   ClientOptions
	base   *url.URL
	dialer websocket.Dialer
	http   *http.Client
	logger *zap.Logger

	writeMu sync.Mutex
	conn    *websocket.Conn
}

// NewClient validates options. Nothing is dialed until Run.
func NewClient(opts ClientOptions, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(opts.SessionID) == "" {
		return nil, errors.New("session id required")
	}
	base, err := url.Parse(strings.TrimSpace(opts.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("unsupported base url scheme %q", base.Scheme)
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	return &Client{
		opts: opts,
		base: base,
		dialer: websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 5 * time.Second,
		},
		http:   &http.Client{Timeout: 5 * time.Second},
		logger: logger,
	}, nil
}

func (c *Client) socketURL() string {
	u := *c.base
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	q := url.Values{"session_id": {c.opts.SessionID}}
	if c.opts.Token != "" {
		q.Set("token", c.opts.Token)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Run dials the channel and dispatches frames until ctx is done, the socket closes,
// or the session stops being live. A session end returns ErrSessionEnded.
func (c *Client) Run(ctx context.Context) error {
	conn, resp, err := c.dialer.DialContext(ctx, c.socketURL(), nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial channel: status %d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("dial channel: %w", err)
	}
	c.writeMu.Lock()
	c.conn = conn
	c.writeMu.Unlock()
	defer conn.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	ended := make(chan struct{})
	go c.poll(ctx, ended)
	go func() {
		select {
		case <-ctx.Done():
		case <-ended:
		}
		c.leave()
	}()

	err = c.readLoop()
	select {
	case <-ended:
		return ErrSessionEnded
	default:
	}
	if errors.Is(err, ErrSessionEnded) {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (c *Client) readLoop() error {
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		var msg realtime.WSMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.logger.Debug("bad frame", zap.Error(err))
			continue
		}
		switch msg.Event {
		case realtime.EventChatMessage:
			var m realtime.ChatMessage
			if json.Unmarshal(msg.Data, &m) == nil && c.opts.OnChat != nil {
				c.opts.OnChat(m)
			}
		case realtime.EventReaction:
			var r realtime.ReactionBurst
			if json.Unmarshal(msg.Data, &r) == nil && c.opts.OnReaction != nil {
				c.opts.OnReaction(r)
			}
		case realtime.EventError:
			var e realtime.ErrorFrame
			if json.Unmarshal(msg.Data, &e) == nil && c.opts.OnError != nil {
				c.opts.OnError(e)
			}
		case realtime.EventSessionEnded:
			return ErrSessionEnded
		}
	}
}

// SendChat sends a chat message to the room.
func (c *Client) SendChat(body string) error {
	return c.send(realtime.EventChatMessage, map[string]string{"body": body})
}

// SendReaction sends a heart starting at originOffset.
func (c *Client) SendReaction(originOffset float64) error {
	return c.send(realtime.EventReaction, map[string]interface{}{"kind": realtime.ReactionHeart, "origin_offset": originOffset})
}

func (c *Client) send(event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return errors.New("not connected")
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteJSON(realtime.WSMessage{Event: event, Data: data})
}

func (c *Client) leave() {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "leaving"),
		time.Now().Add(time.Second))
	_ = c.conn.Close()
}

func (c *Client) poll(ctx context.Context, ended chan struct{}) {
	t := time.NewTicker(c.opts.PollInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		live, err := c.StillLive(ctx)
		if err != nil {
			c.logger.Debug("presence poll failed", zap.Error(err))
			continue
		}
		if !live {
			close(ended)
			return
		}
	}
}

type liveSessionsBody struct {
	Success bool `json:"success"`
	Data    []struct {
		SessionID string `json:"session_id"`
	} `json:"data"`
}

// StillLive asks GET /live/sessions whether this client's session is among the active ones.
func (c *Client) StillLive(ctx context.Context) (bool, error) {
	u := *c.base
	u.Path = strings.TrimSuffix(u.Path, "/") + "/live/sessions"
	u.RawQuery = ""
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return false, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("presence status %d", resp.StatusCode)
	}
	var body liveSessionsBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("decode presence: %w", err)
	}
	for _, s := range body.Data {
		if s.SessionID == c.opts.SessionID {
			return true, nil
		}
	}
	return false, nil
}
