package service

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"fourwcycle/internal/auth"
	"fourwcycle/internal/config"
	"fourwcycle/internal/notifications"
	"fourwcycle/internal/repository"
	"fourwcycle/internal/testutil"

	"gorm.io/gorm"
)

func fileUpload(name string, data []byte) PhotoUpload {
	return PhotoUpload{
		Filename: name,
		Size:     int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

func adminCtx() context.Context {
	return auth.WithPrincipal(context.Background(), auth.Operator("admin"))
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type eventRecorder struct {
	mu     sync.Mutex
	events []notifications.ModerationEvent
}

func (r *eventRecorder) PublishModeration(_ context.Context, ev notifications.ModerationEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *eventRecorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

type fixture struct {
	db      *gorm.DB
	repo    repository.SubmissionRepository
	store   *testutil.PhotoStoreStub
	uploads *UploadService
	clock   *fakeClock
	svc     *SubmissionService
}

func newFixture(t *testing.T, cfg SubmissionServiceConfig) *fixture {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	f := &fixture{
		db:    db,
		repo:  repository.NewSubmissionRepository(db),
		store: testutil.NewPhotoStoreStub(),
		clock: &fakeClock{now: time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)},
	}
	f.uploads = NewUploadService(f.store, &config.Config{UploadMaxMB: 1, UploadMaxFiles: 5})
	if cfg.Now == nil {
		cfg.Now = f.clock.Now
	}
	f.svc = NewSubmissionService(f.repo, f.uploads, cfg)
	return f
}

func validInput(photos ...PhotoUpload) SubmitInput {
	return SubmitInput{
		Name:       "A",
		Email:      "a@x.com",
		Title:      "T",
		Route:      "R",
		Experience: "E",
		Photos:     photos,
	}
}
