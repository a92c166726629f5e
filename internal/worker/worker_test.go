package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/aura-live/backend/internal/models"
	"github.com/aura-live/backend/internal/sessionlog"
	"github.com/aura-live/backend/internal/sessions"
	"github.com/aura-live/backend/pkg/queue"
)

type fakeUploader struct {
	mu   sync.Mutex
	objs map[string][]byte
	err  error
}

func (f *fakeUploader) Upload(_ context.Context, key, _ string, body io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.objs == nil {
		f.objs = make(map[string][]byte)
	}
	f.objs[key] = b
	return "https://bucket/" + key, nil
}

type fakeJobs struct {
	jobs    chan *queue.Job
	retried chan *queue.Job
}

func (f *fakeJobs) Dequeue(ctx context.Context) (*queue.Job, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case j := <-f.jobs:
		return j, nil
	}
}

func (f *fakeJobs) Retry(_ context.Context, job *queue.Job) error {
	job.Attempt++
	f.retried <- job
	return nil
}

func endedSession(t *testing.T) (*sessions.MemoryStore, *models.LiveSession) {
	t.Helper()
	store := sessions.NewMemoryStore(nil)
	ctx := context.Background()
	s, _, err := store.Start(ctx, "creator-a")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	ended, _, err := store.End(ctx, s.ID)
	if err != nil {
		t.Fatalf("End() error = %v", err)
	}
	return store, ended
}

func archiveJob(t *testing.T, s *models.LiveSession) *queue.Job {
	t.Helper()
	job, err := queue.NewJob(queue.JobTypeSessionArchive, queue.SessionArchivePayload{
		SessionID: s.ID,
		CreatorID: s.CreatorID,
		EndReason: "ended",
	})
	if err != nil {
		t.Fatalf("NewJob() error = %v", err)
	}
	return job
}

func TestProcessUploadsArchive(t *testing.T) {
	store, s := endedSession(t)
	participants := sessionlog.NewMemoryStore()
	joined := s.StartedAt
	ctx := context.Background()
	id := uuid.New()
	_ = participants.LogJoin(ctx, models.RoomParticipant{ID: id, SessionID: s.ID, Identity: "viewer-1", JoinedAt: joined})
	_ = participants.LogLeave(ctx, id, joined.Add(30*time.Second))

	up := &fakeUploader{}
	p := NewSessionArchiver(store, participants, up, nil, nil)
	if err := p.Process(ctx, archiveJob(t, s)); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	key := "sessions/creator-a/" + s.ID.String() + ".json"
	raw, ok := up.objs[key]
	if !ok {
		t.Fatalf("no object at %s, got %v", key, up.objs)
	}
	var doc Archive
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if doc.Session.ID != s.ID || doc.Summary.Joins != 1 || doc.Summary.TotalWatchSeconds != 30 {
		t.Fatalf("archive = %+v", doc)
	}
}

func TestProcessSkipsActiveSession(t *testing.T) {
	store := sessions.NewMemoryStore(nil)
	s, _, err := store.Start(context.Background(), "creator-a")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	up := &fakeUploader{}
	p := NewSessionArchiver(store, nil, up, nil, nil)
	if err := p.Process(context.Background(), archiveJob(t, s)); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(up.objs) != 0 {
		t.Fatalf("uploaded %d objects for an active session", len(up.objs))
	}
}

func TestProcessRejectsUnknownJobType(t *testing.T) {
	p := NewSessionArchiver(sessions.NewMemoryStore(nil), nil, &fakeUploader{}, nil, nil)
	if err := p.Process(context.Background(), &queue.Job{Type: "recording_upload"}); err == nil {
		t.Fatalf("Process() error = nil, want unknown job type")
	}
}

func TestRunRetriesFailedJob(t *testing.T) {
	store, s := endedSession(t)
	jobs := &fakeJobs{jobs: make(chan *queue.Job, 1), retried: make(chan *queue.Job, 1)}
	p := NewSessionArchiver(store, nil, &fakeUploader{err: errors.New("s3 down")}, jobs, nil)
	p.backoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	jobs.jobs <- archiveJob(t, s)
	go p.Run(ctx)

	select {
	case j := <-jobs.retried:
		if j.Attempt != 1 {
			t.Fatalf("Attempt = %d, want 1", j.Attempt)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("job was not retried")
	}
}
