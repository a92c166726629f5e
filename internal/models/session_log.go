package models

import (
	"time"

	"github.com/google/uuid"
)

// RoomParticipant tracks one engagement channel connection for a live session.
type RoomParticipant struct {
	ID           uuid.UUID  `json:"id"`
	SessionID    uuid.UUID  `json:"session_id"`
	Identity     string     `json:"identity"`
	JoinedAt     time.Time  `json:"joined_at"`
	LeftAt       *time.Time `json:"left_at,omitempty"`
	WatchSeconds int64      `json:"watch_seconds"`
}
