package realtime

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Teardown closes every subscription of roomID after a final session_ended frame.
func (h *Hub) Teardown(roomID string) int {
	final, _ := encode(EventSessionEnded, SessionEnded{RoomID: roomID})

	h.mu.Lock()
	r, ok := h.rooms[roomID]
	if !ok {
		h.mu.Unlock()
		return 0
	}
	subs := make([]*Subscription, 0, len(r.subs))
	for _, sub := range r.subs {
		select {
		case sub.send <- final:
		default:
		}
		close(sub.send)
		subs = append(subs, sub)
	}
	h.dropRoomLocked(roomID, r)
	onLeave := h.onLeave
	h.mu.Unlock()

	now := h.now().UTC()
	for _, sub := range subs {
		h.metrics.SubscriberRemoved()
		if onLeave != nil {
			onLeave(sub, now)
		}
	}
	h.metrics.RoomTornDown()
	h.logger.Info("room torn down", zap.String("room_id", roomID), zap.Int("subscribers", len(subs)))
	return len(subs)
}

// RunReaper tears down rooms whose session has been observed inactive for longer than
// the liveness timeout. It blocks until ctx is done.
func (h *Hub) RunReaper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Reap(ctx)
		}
	}
}

// Reap runs one liveness pass and returns the number of rooms torn down.
func (h *Hub) Reap(ctx context.Context) int {
	if h.checker == nil {
		return 0
	}
	torn := 0
	for _, roomID := range h.Rooms() {
		active, err := h.checker.IsActive(ctx, roomID)
		if err != nil {
			h.logger.Warn("liveness check failed", zap.String("room_id", roomID), zap.Error(err))
			continue
		}
		now := h.now()
		expired := false
		h.mu.Lock()
		if r := h.rooms[roomID]; r != nil {
			switch {
			case active:
				r.inactiveSince = time.Time{}
			case r.inactiveSince.IsZero():
				r.inactiveSince = now
				expired = h.opts.LivenessTimeout == 0
			default:
				expired = now.Sub(r.inactiveSince) >= h.opts.LivenessTimeout
			}
		}
		h.mu.Unlock()
		if expired {
			h.Teardown(roomID)
			torn++
		}
	}
	return torn
}
