package sessions

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-live/backend/internal/models"
	"github.com/aura-live/backend/pkg/apperror"
)

const sessionColumns = `id, creator_id, is_active, started_at, ended_at, end_reason, peak_viewers, updated_at`

// Repository handles live_sessions persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a live sessions repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanSession(row pgx.Row) (models.LiveSession, error) {
	var s models.LiveSession
	var reason string
	err := row.Scan(&s.ID, &s.CreatorID, &s.IsActive, &s.StartedAt, &s.EndedAt, &reason, &s.PeakViewers, &s.UpdatedAt)
	s.EndReason = models.EndReason(reason)
	return s, err
}

func collectSessions(rows pgx.Rows) ([]models.LiveSession, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.LiveSession, error) {
		return scanSession(row)
	})
}

// Start runs in one transaction holding a per-creator advisory lock, so concurrent starts
// for the same creator serialize and clock_timestamp() orders them by completion.
func (r *Repository) Start(ctx context.Context, creatorID string) (*models.LiveSession, []models.LiveSession, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, creatorID); err != nil {
		return nil, nil, fmt.Errorf("lock creator: %w", err)
	}

	rows, err := tx.Query(ctx, `UPDATE live_sessions
		SET is_active = FALSE, ended_at = clock_timestamp(), end_reason = $2, updated_at = clock_timestamp()
		WHERE creator_id = $1 AND is_active
		RETURNING `+sessionColumns, creatorID, string(models.EndReasonReplaced))
	if err != nil {
		return nil, nil, fmt.Errorf("deactivate previous: %w", err)
	}
	replaced, err := collectSessions(rows)
	if err != nil {
		return nil, nil, fmt.Errorf("deactivate previous: %w", err)
	}

	s, err := scanSession(tx.QueryRow(ctx, `INSERT INTO live_sessions (id, creator_id, is_active, started_at, updated_at)
		VALUES (gen_random_uuid(), $1, TRUE, clock_timestamp(), clock_timestamp())
		RETURNING `+sessionColumns, creatorID))
	if err != nil {
		return nil, nil, fmt.Errorf("insert session: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit: %w", err)
	}
	return &s, replaced, nil
}

// StopCreator marks the creator's active session inactive.
func (r *Repository) StopCreator(ctx context.Context, creatorID string) ([]models.LiveSession, error) {
	rows, err := r.pool.Query(ctx, `UPDATE live_sessions
		SET is_active = FALSE, ended_at = clock_timestamp(), end_reason = $2, updated_at = clock_timestamp()
		WHERE creator_id = $1 AND is_active
		RETURNING `+sessionColumns, creatorID, string(models.EndReasonStopped))
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

// StopAll marks every active session inactive.
func (r *Repository) StopAll(ctx context.Context) ([]models.LiveSession, error) {
	rows, err := r.pool.Query(ctx, `UPDATE live_sessions
		SET is_active = FALSE, ended_at = clock_timestamp(), end_reason = $1, updated_at = clock_timestamp()
		WHERE is_active
		RETURNING `+sessionColumns, string(models.EndReasonStoppedAll))
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

// End sets ended_at for a session. An already inactive session is returned unchanged.
func (r *Repository) End(ctx context.Context, id uuid.UUID) (*models.LiveSession, bool, error) {
	s, err := scanSession(r.pool.QueryRow(ctx, `UPDATE live_sessions
		SET is_active = FALSE, ended_at = clock_timestamp(), end_reason = $2, updated_at = clock_timestamp()
		WHERE id = $1 AND is_active
		RETURNING `+sessionColumns, id, string(models.EndReasonEnded)))
	if err == nil {
		return &s, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}
	existing, err := r.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// Get returns a session by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.LiveSession, error) {
	s, err := scanSession(r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM live_sessions WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// LatestActive returns the most recently started active session, or nil.
func (r *Repository) LatestActive(ctx context.Context) (*models.LiveSession, error) {
	s, err := scanSession(r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM live_sessions
		WHERE is_active ORDER BY started_at DESC, id DESC LIMIT 1`))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// ListActive returns all active sessions, newest first.
func (r *Repository) ListActive(ctx context.Context) ([]models.LiveSession, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+sessionColumns+` FROM live_sessions
		WHERE is_active ORDER BY started_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

// ListByCreator returns a creator's sessions, newest first.
func (r *Repository) ListByCreator(ctx context.Context, creatorID string, limit int) ([]models.LiveSession, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+sessionColumns+` FROM live_sessions
		WHERE creator_id = $1 ORDER BY started_at DESC, id DESC LIMIT $2`, creatorID, limit)
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

// UpdatePeakViewers sets peak_viewers for a session (only raises it).
func (r *Repository) UpdatePeakViewers(ctx context.Context, id uuid.UUID, peak int) error {
	const q = `UPDATE live_sessions SET peak_viewers = $1, updated_at = NOW() WHERE id = $2 AND $1 > peak_viewers`
	_, err := r.pool.Exec(ctx, q, peak, id)
	return err
}
