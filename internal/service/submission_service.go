package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"fourwcycle/internal/auth"
	"fourwcycle/internal/cache"
	"fourwcycle/internal/featureflags"
	"fourwcycle/internal/models"
	"fourwcycle/internal/notifications"
	"fourwcycle/internal/observability"
	"fourwcycle/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// DefaultReconcileGrace protects fresh uploads and tombstones from the sweep when no grace is configured.
const DefaultReconcileGrace = 15 * time.Minute

// EventPublisher receives moderation events. notifications.Notifier implements it.
type EventPublisher interface {
	PublishModeration(ctx context.Context, ev notifications.ModerationEvent) error
}

// SubmitInput is a public ride-story submission.
type SubmitInput struct {
	Name       string
	Email      string
	Title      string
	Route      string
	Experience string
	Photos     []PhotoUpload
}

// DeleteResult describes a finished deletion. FailedPhotos lists files that
// could not be removed; the reconciliation sweep reclaims them later.
type DeleteResult struct {
	ID            uint     `json:"id"`
	RemovedPhotos int      `json:"removed_photos"`
	FailedPhotos  []string `json:"failed_photos,omitempty"`
}

// SubmissionServiceConfig carries the optional collaborators of SubmissionService.
type SubmissionServiceConfig struct {
	Cache       *cache.PublishedCache
	Events      EventPublisher
	Flags       *featureflags.Manager
	GracePeriod time.Duration
	Now         func() time.Time
}

// SubmissionService owns the submission lifecycle: pending -> approved/rejected, and deletion.
type SubmissionService struct {
	repo      repository.SubmissionRepository
	uploads   *UploadService
	published *cache.PublishedCache
	events    EventPublisher
	flags     *featureflags.Manager
	grace     time.Duration
	now       func() time.Time
	sweepMu   sync.Mutex
}

// NewSubmissionService wires the lifecycle service.
func NewSubmissionService(repo repository.SubmissionRepository, uploads *UploadService, cfg SubmissionServiceConfig) *SubmissionService {
	s := &SubmissionService{
		repo:      repo,
		uploads:   uploads,
		published: cfg.Cache,
		events:    cfg.Events,
		flags:     cfg.Flags,
		grace:     cfg.GracePeriod,
		now:       cfg.Now,
	}
	if s.grace <= 0 {
		s.grace = DefaultReconcileGrace
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.flags == nil {
		s.flags = featureflags.NewManager("")
	}
	return s
}

// clock returns the current time at the store's precision.
func (s *SubmissionService) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// Submit validates and stores a new pending submission with its photos.
func (s *SubmissionService) Submit(ctx context.Context, in SubmitInput) (*models.Submission, error) {
	span, ctx := observability.NewSpan(ctx, "SubmissionService.Submit")
	defer span.End()

	sub := &models.Submission{
		Name:       strings.TrimSpace(in.Name),
		Email:      strings.TrimSpace(in.Email),
		Title:      strings.TrimSpace(in.Title),
		Route:      strings.TrimSpace(in.Route),
		Experience: strings.TrimSpace(in.Experience),
		Status:     models.SubmissionStatusPending,
	}
	if sub.Name == "" || sub.Email == "" || sub.Title == "" || sub.Route == "" || sub.Experience == "" {
		return nil, models.NewValidationError("All fields are required.")
	}

	names, err := s.uploads.Accept(ctx, in.Photos)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	now := s.clock()
	sub.CreatedAt = now
	sub.UpdatedAt = now
	for i, name := range names {
		sub.Photos = append(sub.Photos, models.SubmissionPhoto{Position: i, Filename: name, CreatedAt: now})
	}

	if err := s.repo.Create(ctx, sub); err != nil {
		s.uploads.Discard(ctx, names)
		span.SetError(err)
		return nil, models.NewInternalError(err)
	}

	span.AddAttributes(attribute.Int("submission.id", int(sub.ID)), attribute.Int("submission.photos", len(names)))
	observability.SubmissionsCreated.Inc()
	s.publish(ctx, notifications.EventSubmissionCreated, sub.ID, sub.Status, now)
	return sub, nil
}

// ListPublished returns approved submissions, most recently reviewed first.
func (s *SubmissionService) ListPublished(ctx context.Context) ([]models.PublishedSubmission, error) {
	useCache := s.flags.Enabled(featureflags.PublishedCache)
	var gen int64
	if useCache {
		items, hit, err := s.published.Get(ctx)
		if err != nil {
			observability.GlobalLogger.WarnContext(ctx, "published cache read failed", slog.String("error", err.Error()))
		}
		if hit {
			return items, nil
		}
		// The generation must be read before the store query.
		if gen, err = s.published.Generation(ctx); err != nil {
			observability.GlobalLogger.WarnContext(ctx, "published cache generation read failed", slog.String("error", err.Error()))
			useCache = false
		}
	}

	subs, err := s.repo.ListPublished(ctx)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	items := make([]models.PublishedSubmission, 0, len(subs))
	for i := range subs {
		items = append(items, subs[i].Published())
	}

	if useCache {
		if _, err := s.published.Set(ctx, gen, items); err != nil {
			observability.GlobalLogger.WarnContext(ctx, "published cache write failed", slog.String("error", err.Error()))
		}
	}
	return items, nil
}

// ListAll returns every submission for review, newest first. An unknown status filter is ignored.
func (s *SubmissionService) ListAll(ctx context.Context, statusFilter string) ([]models.SubmissionRecord, error) {
	if _, err := auth.RequireAdmin(ctx); err != nil {
		return nil, err
	}

	status := models.SubmissionStatus(strings.ToLower(strings.TrimSpace(statusFilter)))
	if !status.Valid() {
		status = ""
	}

	subs, err := s.repo.ListAll(ctx, status)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	records := make([]models.SubmissionRecord, 0, len(subs))
	for i := range subs {
		records = append(records, subs[i].Record())
	}
	return records, nil
}

// GetOne returns a single submission.
func (s *SubmissionService) GetOne(ctx context.Context, id uint) (*models.SubmissionRecord, error) {
	if _, err := auth.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	sub, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, translateStoreError(err, id)
	}
	record := sub.Record()
	return &record, nil
}

// Transition records a review outcome. Repeating the same outcome is allowed; updated_at always moves forward.
func (s *SubmissionService) Transition(ctx context.Context, id uint, status, note string) (*models.SubmissionRecord, error) {
	principal, err := auth.RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	target := models.SubmissionStatus(strings.ToLower(strings.TrimSpace(status)))
	if !target.IsReviewOutcome() {
		return nil, models.NewValidationError("Status must be approved or rejected.")
	}

	span, ctx := observability.NewSpan(ctx, "SubmissionService.Transition",
		attribute.Int("submission.id", int(id)), attribute.String("submission.status", string(target)))
	defer span.End()

	sub, err := s.repo.Transition(ctx, id, target, note, s.clock())
	if err != nil {
		span.SetError(err)
		return nil, translateStoreError(err, id)
	}

	observability.SubmissionTransitions.WithLabelValues(string(target)).Inc()
	observability.GlobalLogger.InfoContext(ctx, "submission reviewed",
		slog.Uint64("submission_id", uint64(id)),
		slog.String("status", string(target)),
		slog.String("admin", principal.Subject),
	)
	s.invalidatePublished(ctx)
	s.publish(ctx, notifications.EventSubmissionUpdated, id, target, sub.UpdatedAt)

	record := sub.Record()
	return &record, nil
}

// Delete removes a submission and its photo files. The row is hidden first,
// then files are removed best-effort, then the rows are deleted together.
func (s *SubmissionService) Delete(ctx context.Context, id uint) (*DeleteResult, error) {
	principal, err := auth.RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}

	span, ctx := observability.NewSpan(ctx, "SubmissionService.Delete", attribute.Int("submission.id", int(id)))
	defer span.End()

	result, err := s.finishDeletion(ctx, id, "api")
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	observability.GlobalLogger.InfoContext(ctx, "submission deleted",
		slog.Uint64("submission_id", uint64(id)),
		slog.String("admin", principal.Subject),
		slog.Int("photo_failures", len(result.FailedPhotos)),
	)
	return result, nil
}

func (s *SubmissionService) finishDeletion(ctx context.Context, id uint, origin string) (*DeleteResult, error) {
	sub, err := s.repo.MarkDeleting(ctx, id, s.clock())
	if err != nil {
		return nil, translateStoreError(err, id)
	}
	// Hidden from reads from here on.
	s.invalidatePublished(ctx)

	result := &DeleteResult{ID: id}
	for _, name := range sub.PhotoFilenames() {
		if err := s.uploads.Store().Remove(ctx, name); err != nil {
			observability.PhotoCleanupFailures.Inc()
			observability.LogAsyncOperationError(ctx, "remove_photo", err, map[string]any{
				"submission_id": id,
				"filename":      name,
			})
			result.FailedPhotos = append(result.FailedPhotos, name)
			continue
		}
		result.RemovedPhotos++
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return nil, translateStoreError(err, id)
	}

	observability.SubmissionsDeleted.WithLabelValues(origin).Inc()
	s.publish(ctx, notifications.EventSubmissionDeleted, id, "", s.clock())
	return result, nil
}

// Stats counts live submissions per status.
func (s *SubmissionService) Stats(ctx context.Context) (models.SubmissionStats, error) {
	if _, err := auth.RequireAdmin(ctx); err != nil {
		return models.SubmissionStats{}, err
	}
	stats, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return stats, models.NewInternalError(err)
	}
	return stats, nil
}

func (s *SubmissionService) invalidatePublished(ctx context.Context) {
	if err := s.published.Invalidate(ctx); err != nil {
		observability.GlobalLogger.WarnContext(ctx, "published cache invalidation failed", slog.String("error", err.Error()))
	}
}

func (s *SubmissionService) publish(ctx context.Context, kind string, id uint, status models.SubmissionStatus, at time.Time) {
	if s.events == nil || !s.flags.Enabled(featureflags.EventStream) {
		return
	}
	ev := notifications.ModerationEvent{Type: kind, SubmissionID: id, Status: status, At: at}
	if err := s.events.PublishModeration(ctx, ev); err != nil {
		observability.LogAsyncOperationError(ctx, "publish_event", err, map[string]any{"type": kind, "submission_id": id})
	}
}

// translateStoreError maps a missing row to NotFound and anything else to an internal error.
func translateStoreError(err error, id uint) error {
	var appErr *models.AppError
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return models.NewNotFoundError("Submission", id)
	default:
		return models.NewInternalError(err)
	}
}
