package models

import (
	"time"

	"github.com/google/uuid"
)

// EndReason records which transition deactivated a live session.
type EndReason string

const (
	EndReasonReplaced   EndReason = "replaced"    // creator started a newer session
	EndReasonStopped    EndReason = "stopped"     // creator stopped their own session
	EndReasonStoppedAll EndReason = "stopped_all" // platform kill switch
	EndReasonEnded      EndReason = "ended"       // room backend reported termination
)

// LiveSession is one creator broadcast. Rows are never deleted; inactive rows are history.
type LiveSession struct {
	ID          uuid.UUID  `json:"session_id"`
	CreatorID   string     `json:"creator_id"`
	IsActive    bool       `json:"is_active"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	EndReason   EndReason  `json:"end_reason,omitempty"`
	PeakViewers int        `json:"peak_viewers"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// RoomName returns the media/engagement room key for the session.
func (s *LiveSession) RoomName() string {
	return s.ID.String()
}
