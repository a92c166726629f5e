package sessions

import (
	"context"

	"github.com/google/uuid"

	"github.com/aura-live/backend/internal/models"
)

// Store persists live sessions. Implementations must make Start atomic per creator:
// after any number of concurrent Starts for one creator, exactly one of its rows is active.
type Store interface {
	// Start deactivates the creator's active session (if any) and inserts a new active one.
	Start(ctx context.Context, creatorID string) (*models.LiveSession, []models.LiveSession, error)
	// StopCreator deactivates the creator's active session and returns what changed.
	StopCreator(ctx context.Context, creatorID string) ([]models.LiveSession, error)
	// StopAll deactivates every active session and returns what changed.
	StopAll(ctx context.Context) ([]models.LiveSession, error)
	// End deactivates one session. changed is false when it was already inactive.
	End(ctx context.Context, id uuid.UUID) (s *models.LiveSession, changed bool, err error)
	// Get returns apperror.ErrNotFound for unknown ids.
	Get(ctx context.Context, id uuid.UUID) (*models.LiveSession, error)
	// LatestActive returns the most recently started active session, or nil when nobody is live.
	LatestActive(ctx context.Context) (*models.LiveSession, error)
	ListActive(ctx context.Context) ([]models.LiveSession, error)
	ListByCreator(ctx context.Context, creatorID string, limit int) ([]models.LiveSession, error)
	// UpdatePeakViewers raises peak_viewers to peak if it is higher than the stored value.
	UpdatePeakViewers(ctx context.Context, id uuid.UUID, peak int) error
}
