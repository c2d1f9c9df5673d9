package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"fourwcycle/internal/models"
	"fourwcycle/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func newSubmission(title string, photos ...string) *models.Submission {
	sub := &models.Submission{
		Name:       "Dana",
		Email:      "dana@example.com",
		Title:      title,
		Route:      "Rubicon Trail",
		Experience: "Mud everywhere.",
		Status:     models.SubmissionStatusPending,
	}
	for i, p := range photos {
		sub.Photos = append(sub.Photos, models.SubmissionPhoto{Position: i, Filename: p})
	}
	return sub
}

func TestSubmissionRepository_CreateAndGet(t *testing.T) {
	repo := NewSubmissionRepository(testutil.NewSQLiteDB(t))
	ctx := context.Background()

	sub := newSubmission("First ride", "b.png", "a.jpg")
	require.NoError(t, repo.Create(ctx, sub))
	require.NotZero(t, sub.ID)

	got, err := repo.GetByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "First ride", got.Title)
	assert.Equal(t, models.SubmissionStatusPending, got.Status)
	assert.Equal(t, "", got.AdminNote)
	assert.Equal(t, []string{"b.png", "a.jpg"}, got.PhotoFilenames())

	_, err = repo.GetByID(ctx, sub.ID+100)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestSubmissionRepository_PhotoFilenameUnique(t *testing.T) {
	repo := NewSubmissionRepository(testutil.NewSQLiteDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newSubmission("one", "same.png")))
	assert.Error(t, repo.Create(ctx, newSubmission("two", "same.png")))
}

func TestSubmissionRepository_ListOrdering(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	var ids []uint
	for i, title := range []string{"old", "mid", "new"} {
		sub := newSubmission(title)
		sub.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		sub.UpdatedAt = sub.CreatedAt
		require.NoError(t, repo.Create(ctx, sub))
		ids = append(ids, sub.ID)
	}

	all, err := repo.ListAll(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"new", "mid", "old"}, []string{all[0].Title, all[1].Title, all[2].Title})

	// Approve "old" last so it becomes the most recently updated.
	_, err = repo.Transition(ctx, ids[2], models.SubmissionStatusApproved, "", base.Add(10*time.Hour))
	require.NoError(t, err)
	_, err = repo.Transition(ctx, ids[0], models.SubmissionStatusApproved, "great", base.Add(11*time.Hour))
	require.NoError(t, err)
	_, err = repo.Transition(ctx, ids[1], models.SubmissionStatusRejected, "", base.Add(12*time.Hour))
	require.NoError(t, err)

	published, err := repo.ListPublished(ctx)
	require.NoError(t, err)
	require.Len(t, published, 2)
	assert.Equal(t, "old", published[0].Title)
	assert.Equal(t, "new", published[1].Title)

	rejected, err := repo.ListAll(ctx, models.SubmissionStatusRejected)
	require.NoError(t, err)
	require.Len(t, rejected, 1)
	assert.Equal(t, "mid", rejected[0].Title)
}

func TestSubmissionRepository_TransitionMonotonicTimestamp(t *testing.T) {
	repo := NewSubmissionRepository(testutil.NewSQLiteDB(t))
	ctx := context.Background()

	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	sub := newSubmission("ride", "p.png")
	sub.CreatedAt = now
	sub.UpdatedAt = now
	require.NoError(t, repo.Create(ctx, sub))

	// Same clock reading as the stored value still moves updated_at forward.
	got, err := repo.Transition(ctx, sub.ID, models.SubmissionStatusApproved, "ok", now)
	require.NoError(t, err)
	assert.True(t, got.UpdatedAt.After(now))
	assert.Equal(t, "ok", got.AdminNote)
	assert.Equal(t, []string{"p.png"}, got.PhotoFilenames())

	second, err := repo.Transition(ctx, sub.ID, models.SubmissionStatusRejected, "", now.Add(-time.Hour))
	require.NoError(t, err)
	assert.True(t, second.UpdatedAt.After(got.UpdatedAt))
	assert.Equal(t, "", second.AdminNote)

	stored, err := repo.GetByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStatusRejected, stored.Status)
	assert.True(t, stored.CreatedAt.Equal(now))

	_, err = repo.Transition(ctx, 9999, models.SubmissionStatusApproved, "", now)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestSubmissionRepository_DeletionLifecycle(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	sub := newSubmission("doomed", "x.png", "y.png")
	require.NoError(t, repo.Create(ctx, sub))
	keep := newSubmission("kept", "z.png")
	require.NoError(t, repo.Create(ctx, keep))

	markedAt := time.Now().UTC()
	marked, err := repo.MarkDeleting(ctx, sub.ID, markedAt)
	require.NoError(t, err)
	require.NotNil(t, marked.DeletingAt)
	assert.Equal(t, []string{"x.png", "y.png"}, marked.PhotoFilenames())

	// Marked rows vanish from reads and cannot be transitioned.
	_, err = repo.GetByID(ctx, sub.ID)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
	all, err := repo.ListAll(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 1)
	_, err = repo.Transition(ctx, sub.ID, models.SubmissionStatusApproved, "", time.Now())
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	stats, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStats{Pending: 1, Total: 1}, stats)

	// Marking again keeps the first mark.
	again, err := repo.MarkDeleting(ctx, sub.ID, markedAt.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, again.DeletingAt.Before(markedAt.Add(time.Minute)))

	pending, err := repo.ListDeleting(ctx, markedAt.Add(time.Second))
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, sub.ID, pending[0].ID)

	names, err := repo.ReferencedFilenames(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"x.png", "y.png", "z.png"}, names)

	require.NoError(t, repo.Delete(ctx, sub.ID))
	assert.True(t, errors.Is(repo.Delete(ctx, sub.ID), gorm.ErrRecordNotFound))

	var photoCount int64
	require.NoError(t, db.Model(&models.SubmissionPhoto{}).Where("submission_id = ?", sub.ID).Count(&photoCount).Error)
	assert.Zero(t, photoCount)

	_, err = repo.MarkDeleting(ctx, sub.ID, time.Now())
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestSubmissionRepository_CountByStatus_Mock(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewSubmissionRepository(db)

	rows := sqlmock.NewRows([]string{"status", "count"}).
		AddRow("pending", 3).
		AddRow("approved", 2).
		AddRow("rejected", 1)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT status, count(*) as count FROM "submissions" WHERE deleting_at IS NULL`)).
		WillReturnRows(rows)

	stats, err := repo.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStats{Pending: 3, Approved: 2, Rejected: 1, Total: 6}, stats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepository_Delete_Mock(t *testing.T) {
	tests := []struct {
		name         string
		mockBehavior func(mock sqlmock.Sqlmock)
		wantNotFound bool
		wantErr      bool
	}{
		{
			name: "Success",
			mockBehavior: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "submission_photos" WHERE submission_id = $1`)).
					WithArgs(7).
					WillReturnResult(sqlmock.NewResult(0, 2))
				mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "submissions" WHERE "submissions"."id" = $1`)).
					WithArgs(7).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
		},
		{
			name: "Not Found",
			mockBehavior: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "submission_photos"`)).
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "submissions"`)).
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectRollback()
			},
			wantNotFound: true,
			wantErr:      true,
		},
		{
			name: "Photo delete fails",
			mockBehavior: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "submission_photos"`)).
					WillReturnError(errors.New("connection reset"))
				mock.ExpectRollback()
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := setupMockDB(t)
			repo := NewSubmissionRepository(db)
			tt.mockBehavior(mock)

			err := repo.Delete(context.Background(), 7)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantNotFound, errors.Is(err, gorm.ErrRecordNotFound))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
