package sessionlog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-live/backend/internal/models"
)

// Summary aggregates participation for one session.
type Summary struct {
	Joins             int   `json:"joins"`
	DistinctIdentity  int   `json:"distinct_identities"`
	TotalWatchSeconds int64 `json:"total_watch_seconds"`
}

// Store persists room participation rows.
type Store interface {
	LogJoin(ctx context.Context, p models.RoomParticipant) error
	LogLeave(ctx context.Context, id uuid.UUID, leftAt time.Time) error
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.RoomParticipant, error)
	Summary(ctx context.Context, sessionID uuid.UUID) (*Summary, error)
}

// Repository handles room_participants.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a participant log repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// LogJoin inserts a row when a subscription attaches to a room. The row id is the subscription id.
func (r *Repository) LogJoin(ctx context.Context, p models.RoomParticipant) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO room_participants (id, session_id, identity, joined_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO NOTHING`,
		p.ID, p.SessionID, p.Identity, p.JoinedAt)
	return err
}

// LogLeave closes the row for a subscription.
func (r *Repository) LogLeave(ctx context.Context, id uuid.UUID, leftAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE room_participants
		 SET left_at = $2, watch_seconds = GREATEST(0, EXTRACT(EPOCH FROM ($2 - joined_at))::BIGINT)
		 WHERE id = $1 AND left_at IS NULL`,
		id, leftAt)
	return err
}

// Summary returns join count, distinct identities and total watch time for a session.
func (r *Repository) Summary(ctx context.Context, sessionID uuid.UUID) (*Summary, error) {
	const q = `SELECT COUNT(*), COUNT(DISTINCT identity), COALESCE(SUM(watch_seconds), 0)
		FROM room_participants WHERE session_id = $1`
	var s Summary
	if err := r.pool.QueryRow(ctx, q, sessionID).Scan(&s.Joins, &s.DistinctIdentity, &s.TotalWatchSeconds); err != nil {
		return nil, err
	}
	return &s, nil
}

// ListBySession returns participants for a session, newest join first.
func (r *Repository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.RoomParticipant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, identity, joined_at, left_at, watch_seconds
		 FROM room_participants WHERE session_id = $1 ORDER BY joined_at DESC`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.RoomParticipant{}
	for rows.Next() {
		var p models.RoomParticipant
		if err := rows.Scan(&p.ID, &p.SessionID, &p.Identity, &p.JoinedAt, &p.LeftAt, &p.WatchSeconds); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}
