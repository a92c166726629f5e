package realtime

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-live/backend/internal/observability"
	"github.com/aura-live/backend/pkg/apperror"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30 * time.Second
	PongWait     = 60 * time.Second

	DefaultSubscriberBuffer = 64
	DefaultLivenessTimeout  = 2 * time.Minute
)

// RoomChecker reports whether a room's session is active.
type RoomChecker interface {
	IsActive(ctx context.Context, roomID string) (bool, error)
}

// AudienceChangeHandler is called when the subscriber count of a room changes.
type AudienceChangeHandler func(roomID string, count int)

// JoinHandler and LeaveHandler observe subscriptions for the participant log.
type (
	JoinHandler  func(sub *Subscription)
	LeaveHandler func(sub *Subscription, leftAt time.Time)
)

// RedisPublisher publishes room events for cross-instance fanout.
type RedisPublisher interface {
	PublishRoomEvent(ctx context.Context, roomID string, env Envelope) error
}

// RedisSubscriber subscribes to a room channel and invokes handler for each envelope.
type RedisSubscriber interface {
	SubscribeRoom(roomID string, handler func(env Envelope)) (cancel func(), err error)
}

// Options tunes the hub.
type Options struct {
	SubscriberBuffer int
	MaxChatLength    int
	LivenessTimeout  time.Duration
}

// Subscription is one participant's attachment to a room.
type Subscription struct {
	ID       string
	RoomID   string
	Identity string
	JoinedAt time.Time
	send     chan WSMessage
}

// Events yields frames for this subscription. It is closed on Disconnect or room teardown.
func (s *Subscription) Events() <-chan WSMessage { return s.send }

type room struct {
	subs          map[string]*Subscription
	cancelRedis   func()
	inactiveSince time.Time
}

// Hub maintains room -> subscriptions and fans engagement events out.
// With Redis configured every publish goes through Redis and delivery happens in
// the subscription callback, once per instance.
type Hub struct {
	rooms    map[string]*room
	mu       sync.RWMutex
	checker  RoomChecker
	redis    RedisPublisher
	redisSub RedisSubscriber
	opts     Options
	metrics  *observability.Metrics
	logger   *zap.Logger
	now      func() time.Time

	onAudience AudienceChangeHandler
	onJoin     JoinHandler
	onLeave    LeaveHandler
}

// NewHub creates a hub. redisPub and redisSub may be nil for single instance mode.
func NewHub(checker RoomChecker, opts Options, logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.SubscriberBuffer <= 0 {
		opts.SubscriberBuffer = DefaultSubscriberBuffer
	}
	if opts.MaxChatLength <= 0 {
		opts.MaxChatLength = DefaultMaxChatLength
	}
	if opts.LivenessTimeout < 0 {
		opts.LivenessTimeout = DefaultLivenessTimeout
	}
	h := &Hub{
		rooms:    make(map[string]*room),
		checker:  checker,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
		redis:    redisPub,
		redisSub: redisSub,
	}
	return h
}

func (h *Hub) SetMetrics(m *observability.Metrics) { h.metrics = m }

// SetAudienceChangeHandler sets the callback for audience count changes (e.g. peak viewers).
func (h *Hub) SetAudienceChangeHandler(fn AudienceChangeHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onAudience = fn
}

// SetSessionLogger sets the join/leave callbacks.
func (h *Hub) SetSessionLogger(onJoin JoinHandler, onLeave LeaveHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onJoin = onJoin
	h.onLeave = onLeave
}

// Connect subscribes identity to roomID. The room must be active at connect time.
func (h *Hub) Connect(ctx context.Context, roomID, identity string) (*Subscription, error) {
	roomID = strings.TrimSpace(roomID)
	identity = strings.TrimSpace(identity)
	if roomID == "" {
		return nil, apperror.Validation("room_id", "required")
	}
	if identity == "" {
		return nil, apperror.Validation("identity", "required")
	}
	if err := h.requireActive(ctx, roomID); err != nil {
		return nil, err
	}

	sub := &Subscription{
		ID:       uuid.NewString(),
		RoomID:   roomID,
		Identity: identity,
		JoinedAt: h.now().UTC(),
		send:     make(chan WSMessage, h.opts.SubscriberBuffer),
	}

	h.mu.Lock()
	r := h.rooms[roomID]
	if r == nil {
		r = &room{subs: make(map[string]*Subscription)}
		if h.redisSub != nil {
			cancel, err := h.redisSub.SubscribeRoom(roomID, func(env Envelope) {
				h.deliver(roomID, env.Origin, WSMessage{Event: env.Event, Data: env.Data})
			})
			if err != nil {
				h.mu.Unlock()
				return nil, apperror.Transport("subscribe room", err)
			}
			r.cancelRedis = cancel
		}
		h.rooms[roomID] = r
	}
	r.inactiveSince = time.Time{}
	r.subs[sub.ID] = sub
	count := len(r.subs)
	onAudience, onJoin := h.onAudience, h.onJoin
	h.mu.Unlock()

	h.metrics.SubscriberAdded()
	if onAudience != nil {
		onAudience(roomID, count)
	}
	if onJoin != nil {
		onJoin(sub)
	}
	h.logger.Debug("subscriber joined room", zap.String("subscription_id", sub.ID), zap.String("room_id", roomID), zap.String("identity", identity))
	return sub, nil
}

// Disconnect removes sub from its room and closes its channel. Calling it again is a no-op.
// Other participants are not notified.
func (h *Hub) Disconnect(sub *Subscription) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	r, ok := h.rooms[sub.RoomID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := r.subs[sub.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(r.subs, sub.ID)
	close(sub.send)
	count := len(r.subs)
	if count == 0 {
		h.dropRoomLocked(sub.RoomID, r)
	}
	onAudience, onLeave := h.onAudience, h.onLeave
	h.mu.Unlock()

	h.metrics.SubscriberRemoved()
	if onAudience != nil && count > 0 {
		onAudience(sub.RoomID, count)
	}
	if onLeave != nil {
		onLeave(sub, h.now().UTC())
	}
	h.logger.Debug("subscriber left room", zap.String("subscription_id", sub.ID), zap.String("room_id", sub.RoomID))
}

// dropRoomLocked must be called with h.mu held for writing.
func (h *Hub) dropRoomLocked(roomID string, r *room) {
	delete(h.rooms, roomID)
	if r.cancelRedis != nil {
		r.cancelRedis()
	}
}

// Publish delivers ev to every subscription of roomID.
func (h *Hub) Publish(ctx context.Context, roomID string, ev Event) error {
	return h.publish(ctx, roomID, "", "", ev)
}

// PublishFrom delivers ev to every subscription of sub's room except sub itself.
// The sender identity is always the subscription's, never client supplied.
func (h *Hub) PublishFrom(ctx context.Context, sub *Subscription, ev Event) error {
	return h.publish(ctx, sub.RoomID, sub.ID, sub.Identity, ev)
}

// PublishAs delivers ev to the whole room with sender recorded as the originating identity.
func (h *Hub) PublishAs(ctx context.Context, roomID, sender string, ev Event) error {
	return h.publish(ctx, roomID, "", sender, ev)
}

func (h *Hub) publish(ctx context.Context, roomID, origin, sender string, ev Event) error {
	if ev == nil {
		return apperror.Validation("event", "required")
	}
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return apperror.Validation("room_id", "required")
	}
	ev = ev.stamp(roomID, sender, h.now().UTC())
	if err := ev.Validate(h.opts.MaxChatLength); err != nil {
		return err
	}
	if err := h.requireActive(ctx, roomID); err != nil {
		return err
	}
	msg, err := encode(ev.Type(), ev)
	if err != nil {
		return fmt.Errorf("encode %s: %w", ev.Type(), err)
	}
	if h.redis != nil {
		env := Envelope{Origin: origin, Event: msg.Event, Data: msg.Data, At: h.now().Unix()}
		if err := h.redis.PublishRoomEvent(ctx, roomID, env); err != nil {
			return apperror.Transport("publish room event", err)
		}
		return nil
	}
	h.deliver(roomID, origin, msg)
	return nil
}

// deliver sends msg to local subscriptions of roomID except origin. Full buffers drop the frame.
func (h *Hub) deliver(roomID, origin string, msg WSMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r := h.rooms[roomID]
	if r == nil {
		return
	}
	for id, sub := range r.subs {
		if id == origin {
			continue
		}
		select {
		case sub.send <- msg:
			h.metrics.EventDelivered(msg.Event)
		default:
			h.metrics.EventDropped(msg.Event)
		}
	}
}

// notify sends msg to one subscription if it is still attached.
func (h *Hub) notify(sub *Subscription, msg WSMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r := h.rooms[sub.RoomID]
	if r == nil {
		return
	}
	if _, ok := r.subs[sub.ID]; !ok {
		return
	}
	select {
	case sub.send <- msg:
	default:
	}
}

func (h *Hub) requireActive(ctx context.Context, roomID string) error {
	if h.checker == nil {
		return nil
	}
	active, err := h.checker.IsActive(ctx, roomID)
	if err != nil {
		return fmt.Errorf("check room %s: %w", roomID, err)
	}
	if !active {
		return apperror.ErrRoomInactive
	}
	return nil
}

// AudienceCount returns the number of local subscriptions in a room.
func (h *Hub) AudienceCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if r := h.rooms[roomID]; r != nil {
		return len(r.subs)
	}
	return 0
}

// Rooms returns the ids of rooms with local subscriptions.
func (h *Hub) Rooms() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.rooms))
	for id := range h.rooms {
		out = append(out, id)
	}
	return out
}
