package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"fourwcycle/internal/auth"
	"fourwcycle/internal/models"
	"fourwcycle/internal/observability"
)

// ReconcileReport summarizes one sweep over the store and the upload directory.
type ReconcileReport struct {
	FinishedDeletions []uint    `json:"finished_deletions"`
	RemovedOrphans    []string  `json:"removed_orphans"`
	MissingFiles      []string  `json:"missing_files"`
	FailedRemovals    []string  `json:"failed_removals"`
	StartedAt         time.Time `json:"started_at"`
	Duration          string    `json:"duration"`
}

// Reconcile finishes interrupted deletions, removes unreferenced upload files
// and reports referenced files missing from disk. Anything newer than the grace
// period is left alone so in-flight submissions are never touched.
func (s *SubmissionService) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	if _, err := auth.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	span, ctx := observability.NewSpan(ctx, "SubmissionService.Reconcile")
	defer span.End()

	started := s.clock()
	cutoff := started.Add(-s.grace)
	report := &ReconcileReport{
		FinishedDeletions: []uint{},
		RemovedOrphans:    []string{},
		MissingFiles:      []string{},
		FailedRemovals:    []string{},
		StartedAt:         started,
	}

	tombstoned, err := s.repo.ListDeleting(ctx, cutoff)
	if err != nil {
		span.SetError(err)
		return nil, models.NewInternalError(err)
	}
	for _, sub := range tombstoned {
		result, err := s.finishDeletion(ctx, sub.ID, "sweep")
		if err != nil {
			if models.HasCode(err, models.CodeNotFound) {
				continue
			}
			span.SetError(err)
			return nil, err
		}
		observability.ReconcileActions.WithLabelValues("finish_delete").Inc()
		report.FinishedDeletions = append(report.FinishedDeletions, sub.ID)
		report.FailedRemovals = append(report.FailedRemovals, result.FailedPhotos...)
	}

	referenced, err := s.repo.ReferencedFilenames(ctx)
	if err != nil {
		span.SetError(err)
		return nil, models.NewInternalError(err)
	}
	owned := make(map[string]bool, len(referenced))
	for _, name := range referenced {
		owned[name] = true
	}

	store := s.uploads.Store()
	files, err := store.List(ctx)
	if err != nil {
		span.SetError(err)
		return nil, models.NewStorageError(err)
	}
	onDisk := make(map[string]bool, len(files))
	for _, f := range files {
		onDisk[f.Name] = true
		if owned[f.Name] || f.ModTime.After(cutoff) {
			continue
		}
		if err := store.Remove(ctx, f.Name); err != nil {
			observability.PhotoCleanupFailures.Inc()
			report.FailedRemovals = append(report.FailedRemovals, f.Name)
			continue
		}
		observability.ReconcileActions.WithLabelValues("remove_orphan").Inc()
		report.RemovedOrphans = append(report.RemovedOrphans, f.Name)
	}

	for _, name := range referenced {
		if onDisk[name] {
			continue
		}
		observability.ReconcileActions.WithLabelValues("missing_file").Inc()
		report.MissingFiles = append(report.MissingFiles, name)
	}

	report.Duration = s.now().UTC().Sub(started).String()
	observability.LogAsyncOperationEnd(ctx, "reconcile", map[string]any{
		"finished_deletions": len(report.FinishedDeletions),
		"removed_orphans":    len(report.RemovedOrphans),
		"missing_files":      len(report.MissingFiles),
		"failed_removals":    len(report.FailedRemovals),
	})
	return report, nil
}

// StartReconcileWorker runs Reconcile every interval until ctx is done. A
// non-positive interval disables the worker.
func (s *SubmissionService) StartReconcileWorker(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ctx = auth.WithPrincipal(ctx, auth.Operator("reconcile-worker"))
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runReconcile(ctx)
			}
		}
	}()
}

// RunStartupSweep performs one sweep as the system operator.
func (s *SubmissionService) RunStartupSweep(ctx context.Context) {
	s.runReconcile(auth.WithPrincipal(ctx, auth.Operator("startup-sweep")))
}

func (s *SubmissionService) runReconcile(ctx context.Context) {
	if _, err := s.Reconcile(ctx); err != nil && !errors.Is(err, context.Canceled) {
		observability.GlobalLogger.ErrorContext(ctx, "reconcile sweep failed", slog.String("error", err.Error()))
	}
}
