package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aura-live/backend/pkg/apperror"
)

type fakeRooms struct {
	mu     sync.Mutex
	active map[string]bool
}

func newFakeRooms(ids ...string) *fakeRooms {
	f := &fakeRooms{active: make(map[string]bool)}
	for _, id := range ids {
		f.active[id] = true
	}
	return f
}

func (f *fakeRooms) IsActive(_ context.Context, roomID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active[roomID], nil
}

func (f *fakeRooms) set(roomID string, active bool) {
	f.mu.Lock()
	f.active[roomID] = active
	f.mu.Unlock()
}

func receive(t *testing.T, sub *Subscription) WSMessage {
	t.Helper()
	select {
	case msg, ok := <-sub.Events():
		if !ok {
			t.Fatalf("subscription %s closed", sub.Identity)
		}
		return msg
	case <-time.After(time.Second):
		t.Fatalf("no frame for %s", sub.Identity)
	}
	return WSMessage{}
}

func expectNothing(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case msg, ok := <-sub.Events():
		if ok {
			t.Fatalf("%s got unexpected frame %s", sub.Identity, msg.Event)
		}
	default:
	}
}

func TestConnectValidatesAndChecksRoom(t *testing.T) {
	hub := NewHub(newFakeRooms("room-1"), Options{}, nil, nil, nil)
	ctx := context.Background()

	if _, err := hub.Connect(ctx, "", "u"); !apperror.IsValidation(err) {
		t.Fatalf("Connect(blank room) error = %v", err)
	}
	if _, err := hub.Connect(ctx, "room-1", " "); !apperror.IsValidation(err) {
		t.Fatalf("Connect(blank identity) error = %v", err)
	}
	if _, err := hub.Connect(ctx, "room-2", "u"); !errors.Is(err, apperror.ErrRoomInactive) {
		t.Fatalf("Connect(inactive) error = %v, want ErrRoomInactive", err)
	}
	sub, err := hub.Connect(ctx, "room-1", "u")
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if hub.AudienceCount("room-1") != 1 || sub.RoomID != "room-1" {
		t.Fatalf("audience = %d, sub = %+v", hub.AudienceCount("room-1"), sub)
	}
}

func TestPublishWithNoSubscribersIsNoop(t *testing.T) {
	hub := NewHub(newFakeRooms("room-1"), Options{}, nil, nil, nil)
	if err := hub.Publish(context.Background(), "room-1", ChatMessage{Body: "hi"}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
}

func TestPublishFromReachesOthersOnly(t *testing.T) {
	hub := NewHub(newFakeRooms("room-1", "room-2"), Options{}, nil, nil, nil)
	ctx := context.Background()
	v1, _ := hub.Connect(ctx, "room-1", "v1")
	v2, _ := hub.Connect(ctx, "room-1", "v2")
	other, _ := hub.Connect(ctx, "room-2", "v3")

	if err := hub.PublishFrom(ctx, v1, ChatMessage{Body: "hello", SenderIdentity: "spoofed"}); err != nil {
		t.Fatalf("PublishFrom() error = %v", err)
	}
	msg := receive(t, v2)
	if msg.Event != EventChatMessage {
		t.Fatalf("event = %q", msg.Event)
	}
	var chat ChatMessage
	if err := json.Unmarshal(msg.Data, &chat); err != nil {
		t.Fatalf("decode chat: %v", err)
	}
	if chat.Body != "hello" || chat.SenderIdentity != "v1" || chat.RoomID != "room-1" || chat.SentAt.IsZero() {
		t.Fatalf("chat = %+v", chat)
	}
	expectNothing(t, v1)
	expectNothing(t, other)
}

func TestPublishRejectsInvalidEventsAndInactiveRooms(t *testing.T) {
	rooms := newFakeRooms("room-1")
	hub := NewHub(rooms, Options{MaxChatLength: 5}, nil, nil, nil)
	ctx := context.Background()

	invalid := []Event{
		ChatMessage{Body: "   "},
		ChatMessage{Body: "too long"},
		ReactionBurst{Kind: "thumbs_up", OriginOffset: 0.5},
		ReactionBurst{OriginOffset: 1.5},
		ReactionBurst{OriginOffset: -0.1},
	}
	for _, ev := range invalid {
		if err := hub.Publish(ctx, "room-1", ev); !apperror.IsValidation(err) {
			t.Errorf("Publish(%+v) error = %v, want ValidationError", ev, err)
		}
	}
	if err := hub.Publish(ctx, "room-1", ReactionBurst{OriginOffset: 1}); err != nil {
		t.Fatalf("Publish(edge reaction) error = %v", err)
	}

	rooms.set("room-1", false)
	if err := hub.Publish(ctx, "room-1", ReactionBurst{OriginOffset: 0.2}); !errors.Is(err, apperror.ErrRoomInactive) {
		t.Fatalf("Publish(inactive) error = %v, want ErrRoomInactive", err)
	}
}

func TestFullBufferDropsWithoutBlocking(t *testing.T) {
	hub := NewHub(newFakeRooms("room-1"), Options{SubscriberBuffer: 1}, nil, nil, nil)
	ctx := context.Background()
	slow, _ := hub.Connect(ctx, "room-1", "slow")

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			_ = hub.Publish(ctx, "room-1", ReactionBurst{OriginOffset: 0.5})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Publish blocked on a full subscriber")
	}
	receive(t, slow)
	expectNothing(t, slow)
}

func TestDisconnectIsIdempotent(t *testing.T) {
	hub := NewHub(newFakeRooms("room-1"), Options{}, nil, nil, nil)
	var counts []int
	hub.SetAudienceChangeHandler(func(_ string, n int) { counts = append(counts, n) })
	var left []string
	hub.SetSessionLogger(nil, func(sub *Subscription, _ time.Time) { left = append(left, sub.Identity) })

	ctx := context.Background()
	a, _ := hub.Connect(ctx, "room-1", "a")
	b, _ := hub.Connect(ctx, "room-1", "b")
	hub.Disconnect(a)
	hub.Disconnect(a)

	if _, ok := <-a.Events(); ok {
		t.Fatalf("disconnected subscription still open")
	}
	if hub.AudienceCount("room-1") != 1 {
		t.Fatalf("audience = %d, want 1", hub.AudienceCount("room-1"))
	}
	expectNothing(t, b)
	hub.Disconnect(b)
	if len(hub.Rooms()) != 0 {
		t.Fatalf("empty room kept: %v", hub.Rooms())
	}
	if want := []int{1, 2, 1}; len(counts) != len(want) || counts[2] != 1 {
		t.Fatalf("audience changes = %v, want %v", counts, want)
	}
	if strings.Join(left, ",") != "a,b" {
		t.Fatalf("leave hooks = %v", left)
	}
}

type loopbackBus struct {
	mu       sync.Mutex
	handlers map[string][]func(Envelope)
	fail     error
	sent     int
}

func (b *loopbackBus) PublishRoomEvent(_ context.Context, roomID string, env Envelope) error {
	b.mu.Lock()
	if b.fail != nil {
		b.mu.Unlock()
		return b.fail
	}
	b.sent++
	hs := append([]func(Envelope){}, b.handlers[roomID]...)
	b.mu.Unlock()
	for _, h := range hs {
		h(env)
	}
	return nil
}

func (b *loopbackBus) SubscribeRoom(roomID string, handler func(Envelope)) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handlers == nil {
		b.handlers = make(map[string][]func(Envelope))
	}
	b.handlers[roomID] = append(b.handlers[roomID], handler)
	return func() {}, nil
}

func TestRedisModeDeliversOncePerInstance(t *testing.T) {
	bus := &loopbackBus{}
	rooms := newFakeRooms("room-1")
	instA := NewHub(rooms, Options{}, nil, bus, bus)
	instB := NewHub(rooms, Options{}, nil, bus, bus)
	ctx := context.Background()

	sender, _ := instA.Connect(ctx, "room-1", "sender")
	local, _ := instA.Connect(ctx, "room-1", "local")
	remote, _ := instB.Connect(ctx, "room-1", "remote")

	if err := instA.PublishFrom(ctx, sender, ChatMessage{Body: "hi"}); err != nil {
		t.Fatalf("PublishFrom() error = %v", err)
	}
	receive(t, local)
	receive(t, remote)
	expectNothing(t, local)
	expectNothing(t, sender)
	if bus.sent != 1 {
		t.Fatalf("bus publishes = %d, want 1", bus.sent)
	}

	bus.fail = errors.New("connection refused")
	if err := instA.Publish(ctx, "room-1", ChatMessage{Body: "x"}); !errors.Is(err, apperror.ErrTransport) {
		t.Fatalf("Publish() with failing bus error = %v, want ErrTransport", err)
	}
}
