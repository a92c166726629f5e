package realtime

import (
	"encoding/json"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aura-live/backend/pkg/apperror"
)

// Frame event names.
const (
	EventChatMessage  = "chat_message"
	EventReaction     = "reaction"
	EventSessionEnded = "session_ended"
	EventError        = "error"
)

// ReactionHeart is the only reaction kind.
const ReactionHeart = "heart"

// DefaultMaxChatLength bounds chat bodies in runes.
const DefaultMaxChatLength = 500

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Event is an ephemeral engagement event. It is delivered once and never stored.
type Event interface {
	Type() string
	Validate(maxChatLength int) error
	stamp(roomID, sender string, now time.Time) Event
}

// ChatMessage is a text message from one participant to the room.
type ChatMessage struct {
	RoomID         string    `json:"room_id"`
	SenderIdentity string    `json:"sender_identity"`
	Body           string    `json:"body"`
	SentAt         time.Time `json:"sent_at"`
}

func (m ChatMessage) Type() string { return EventChatMessage }

func (m ChatMessage) Validate(maxChatLength int) error {
	if maxChatLength <= 0 {
		maxChatLength = DefaultMaxChatLength
	}
	if strings.TrimSpace(m.Body) == "" {
		return apperror.Validation("body", "required")
	}
	if utf8.RuneCountInString(m.Body) > maxChatLength {
		return apperror.Validation("body", "too long")
	}
	return nil
}

func (m ChatMessage) stamp(roomID, sender string, now time.Time) Event {
	m.RoomID = roomID
	if sender != "" {
		m.SenderIdentity = sender
	}
	if m.SentAt.IsZero() {
		m.SentAt = now
	}
	return m
}

// ReactionBurst triggers a floating heart animation starting at OriginOffset (0 = left edge, 1 = right edge).
type ReactionBurst struct {
	RoomID         string  `json:"room_id"`
	Kind           string  `json:"kind"`
	OriginOffset   float64 `json:"origin_offset"`
	SenderIdentity string  `json:"sender_identity,omitempty"`
}

func (r ReactionBurst) Type() string { return EventReaction }

func (r ReactionBurst) Validate(int) error {
	if r.Kind != ReactionHeart {
		return apperror.Validation("kind", "must be heart")
	}
	if math.IsNaN(r.OriginOffset) || r.OriginOffset < 0 || r.OriginOffset > 1 {
		return apperror.Validation("origin_offset", "must be between 0 and 1")
	}
	return nil
}

func (r ReactionBurst) stamp(roomID, sender string, _ time.Time) Event {
	r.RoomID = roomID
	if r.Kind == "" {
		r.Kind = ReactionHeart
	}
	if sender != "" {
		r.SenderIdentity = sender
	}
	return r
}

// SessionEnded is the last frame a subscription receives before its room is torn down.
type SessionEnded struct {
	RoomID string `json:"room_id"`
}

// ErrorFrame reports a rejected inbound frame to its sender only.
type ErrorFrame struct {
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func encode(event string, payload interface{}) (WSMessage, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return WSMessage{}, err
	}
	return WSMessage{Event: event, Data: data}, nil
}
