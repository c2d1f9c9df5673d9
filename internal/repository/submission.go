// Package repository provides GORM-backed persistence for submissions.
package repository

import (
	"context"
	"errors"
	"time"

	"fourwcycle/internal/models"
	"fourwcycle/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SubmissionRepository defines storage operations for submissions and their photos.
// Rows marked for deletion are invisible to every read except ListDeleting and MarkDeleting.
type SubmissionRepository interface {
	Create(ctx context.Context, sub *models.Submission) error
	GetByID(ctx context.Context, id uint) (*models.Submission, error)
	ListPublished(ctx context.Context) ([]models.Submission, error)
	ListAll(ctx context.Context, status models.SubmissionStatus) ([]models.Submission, error)
	CountByStatus(ctx context.Context) (models.SubmissionStats, error)
	Transition(ctx context.Context, id uint, status models.SubmissionStatus, note string, at time.Time) (*models.Submission, error)
	MarkDeleting(ctx context.Context, id uint, at time.Time) (*models.Submission, error)
	Delete(ctx context.Context, id uint) error
	ListDeleting(ctx context.Context, markedBefore time.Time) ([]models.Submission, error)
	ReferencedFilenames(ctx context.Context) ([]string, error)
}

type submissionRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewSubmissionRepository returns a repository implementation for submissions.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db, log: observability.NewRepoLogger("submissions")}
}

func live(db *gorm.DB) *gorm.DB {
	return db.Where("deleting_at IS NULL")
}

func orderedPhotos(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

func (r *submissionRepository) Create(ctx context.Context, sub *models.Submission) error {
	defer observability.TrackQuery("create", "submissions")()
	if err := r.db.WithContext(ctx).Create(sub).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return err
	}
	r.log.LogCreate(ctx, map[string]any{"id": sub.ID, "photos": len(sub.Photos)})
	return nil
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (*models.Submission, error) {
	var sub models.Submission
	if err := live(r.db.WithContext(ctx)).
		Preload("Photos", orderedPhotos).
		First(&sub, id).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *submissionRepository) ListPublished(ctx context.Context) ([]models.Submission, error) {
	var subs []models.Submission
	err := live(r.db.WithContext(ctx)).
		Where("status = ?", models.SubmissionStatusApproved).
		Preload("Photos", orderedPhotos).
		Order("updated_at DESC").
		Order("id DESC").
		Find(&subs).Error
	return subs, err
}

// ListAll returns every live submission, newest first; an empty status means no filter.
func (r *submissionRepository) ListAll(ctx context.Context, status models.SubmissionStatus) ([]models.Submission, error) {
	q := live(r.db.WithContext(ctx))
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var subs []models.Submission
	err := q.Preload("Photos", orderedPhotos).
		Order("created_at DESC").
		Order("id DESC").
		Find(&subs).Error
	return subs, err
}

func (r *submissionRepository) CountByStatus(ctx context.Context) (models.SubmissionStats, error) {
	var rows []struct {
		Status models.SubmissionStatus
		Count  int64
	}
	var stats models.SubmissionStats
	if err := live(r.db.WithContext(ctx).Model(&models.Submission{})).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return stats, err
	}
	for _, row := range rows {
		switch row.Status {
		case models.SubmissionStatusPending:
			stats.Pending = row.Count
		case models.SubmissionStatusApproved:
			stats.Approved = row.Count
		case models.SubmissionStatusRejected:
			stats.Rejected = row.Count
		}
		stats.Total += row.Count
	}
	return stats, nil
}

// Transition sets status and note in one transaction. The stored updated_at is
// at, or one microsecond past the previous value when the clock has not advanced.
func (r *submissionRepository) Transition(ctx context.Context, id uint, status models.SubmissionStatus, note string, at time.Time) (*models.Submission, error) {
	var sub models.Submission
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := live(tx)
		if tx.Name() == "postgres" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		if err := q.First(&sub, id).Error; err != nil {
			return err
		}

		stamp := at
		if !stamp.After(sub.UpdatedAt) {
			stamp = sub.UpdatedAt.Add(time.Microsecond)
		}

		res := tx.Model(&models.Submission{}).
			Where("id = ? AND deleting_at IS NULL", id).
			Updates(map[string]any{
				"status":     status,
				"admin_note": note,
				"updated_at": stamp,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		sub.Status = status
		sub.AdminNote = note
		sub.UpdatedAt = stamp
		return orderedPhotos(tx).Where("submission_id = ?", id).Find(&sub.Photos).Error
	})
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			r.log.LogError(ctx, err, "transition")
		}
		return nil, err
	}
	r.log.LogUpdate(ctx, map[string]any{"id": id, "status": status})
	return &sub, nil
}

// MarkDeleting starts a deletion by setting deleting_at; rows already marked keep
// their first mark so an interrupted deletion can be retried.
func (r *submissionRepository) MarkDeleting(ctx context.Context, id uint, at time.Time) (*models.Submission, error) {
	var sub models.Submission
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Photos", orderedPhotos).First(&sub, id).Error; err != nil {
			return err
		}
		if sub.DeletingAt != nil {
			return nil
		}
		if err := tx.Model(&sub).UpdateColumn("deleting_at", at).Error; err != nil {
			return err
		}
		sub.DeletingAt = &at
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// Delete removes the photo rows and the submission row together.
func (r *submissionRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("submission_id = ?", id).Delete(&models.SubmissionPhoto{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Submission{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			r.log.LogError(ctx, err, "delete")
		}
		return err
	}
	r.log.LogDelete(ctx, map[string]any{"id": id})
	return nil
}

func (r *submissionRepository) ListDeleting(ctx context.Context, markedBefore time.Time) ([]models.Submission, error) {
	var subs []models.Submission
	err := r.db.WithContext(ctx).
		Where("deleting_at IS NOT NULL AND deleting_at <= ?", markedBefore).
		Preload("Photos", orderedPhotos).
		Order("id ASC").
		Find(&subs).Error
	return subs, err
}

// ReferencedFilenames lists every photo filename still owned by a row, including rows being deleted.
func (r *submissionRepository) ReferencedFilenames(ctx context.Context) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).Model(&models.SubmissionPhoto{}).Pluck("filename", &names).Error
	return names, err
}
