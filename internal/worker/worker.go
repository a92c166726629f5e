package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-live/backend/internal/models"
	"github.com/aura-live/backend/internal/observability"
	"github.com/aura-live/backend/internal/sessionlog"
	"github.com/aura-live/backend/pkg/queue"
	"github.com/aura-live/backend/pkg/storage"
)

// JobSource hands out archive jobs and takes failed ones back.
type JobSource interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// Uploader writes an archive object.
type Uploader interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error)
}

// SessionSource loads a session row.
type SessionSource interface {
	Get(ctx context.Context, id uuid.UUID) (*models.LiveSession, error)
}

// Archive is the JSON document stored for an ended session.
type Archive struct {
	Session      models.LiveSession        `json:"session"`
	Summary      sessionlog.Summary        `json:"summary"`
	Participants []models.RoomParticipant `json:"participants"`
	ArchivedAt   time.Time                 `json:"archived_at"`
}

// SessionArchiver processes session archive jobs: load session and participants, upload JSON to S3.
type SessionArchiver struct {
	sessions     SessionSource
	participants sessionlog.Store
	uploader     Uploader
	jobs         JobSource
	metrics      *observability.Metrics
	logger       *zap.Logger
	backoff      time.Duration
	now          func() time.Time
}

// NewSessionArchiver creates a session archive processor.
func NewSessionArchiver(sessions SessionSource, participants sessionlog.Store, uploader Uploader, jobs JobSource, logger *zap.Logger) *SessionArchiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionArchiver{
		sessions:     sessions,
		participants: participants,
		uploader:     uploader,
		jobs:         jobs,
		logger:       logger,
		backoff:      queue.RetryBackoff,
		now:          time.Now,
	}
}

// SetMetrics enables archive job counters.
func (p *SessionArchiver) SetMetrics(m *observability.Metrics) { p.metrics = m }

// Process executes one archive job.
func (p *SessionArchiver) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeSessionArchive {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.SessionArchivePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	s, err := p.sessions.Get(ctx, payload.SessionID)
	if err != nil {
		return fmt.Errorf("load session %s: %w", payload.SessionID, err)
	}
	if s.IsActive {
		// a later end enqueues another job
		p.logger.Info("session still active, skipping archive", zap.String("session_id", s.ID.String()))
		return nil
	}

	doc := Archive{Session: *s, ArchivedAt: p.now().UTC()}
	if p.participants != nil {
		list, err := p.participants.ListBySession(ctx, s.ID)
		if err != nil {
			return fmt.Errorf("list participants: %w", err)
		}
		sum, err := p.participants.Summary(ctx, s.ID)
		if err != nil {
			return fmt.Errorf("summarize participants: %w", err)
		}
		doc.Participants = list
		doc.Summary = *sum
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal archive: %w", err)
	}

	key := storage.ArchiveKey(s.CreatorID, s.ID.String())
	url, err := p.uploader.Upload(ctx, key, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("s3 upload: %w", err)
	}
	p.logger.Info("session archived", zap.String("session_id", s.ID.String()), zap.String("s3_key", key), zap.String("url", url))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *SessionArchiver) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("archive worker stopping")
			return
		default:
		}

		job, err := p.jobs.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.metrics.ArchiveJob("failed")
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if reErr := p.jobs.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
			continue
		}
		p.metrics.ArchiveJob("completed")
	}
}

func (p *SessionArchiver) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
