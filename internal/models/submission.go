// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// SubmissionStatus defines the moderation lifecycle of a ride story.
type SubmissionStatus string

const (
	// SubmissionStatusPending indicates the story is awaiting review.
	SubmissionStatusPending SubmissionStatus = "pending"
	// SubmissionStatusApproved indicates the story is publicly visible.
	SubmissionStatusApproved SubmissionStatus = "approved"
	// SubmissionStatusRejected indicates the story was declined.
	SubmissionStatusRejected SubmissionStatus = "rejected"
)

// MaxPhotosPerSubmission bounds the photo relation of a single submission.
const MaxPhotosPerSubmission = 5

// Valid reports whether s is one of the three lifecycle states.
func (s SubmissionStatus) Valid() bool {
	switch s {
	case SubmissionStatusPending, SubmissionStatusApproved, SubmissionStatusRejected:
		return true
	}
	return false
}

// IsReviewOutcome reports whether s is a state an admin may transition to.
func (s SubmissionStatus) IsReviewOutcome() bool {
	return s == SubmissionStatusApproved || s == SubmissionStatusRejected
}

// Submission is a visitor's ride story awaiting or past moderation.
type Submission struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	Name       string            `gorm:"size:200;not null" json:"name"`
	Email      string            `gorm:"size:320;not null" json:"email"`
	Title      string            `gorm:"size:300;not null" json:"title"`
	Route      string            `gorm:"type:text;not null" json:"route"`
	Experience string            `gorm:"type:text;not null" json:"experience"`
	Photos     []SubmissionPhoto `gorm:"foreignKey:SubmissionID;constraint:OnDelete:CASCADE" json:"-"`
	Status     SubmissionStatus  `gorm:"type:varchar(20);not null;default:'pending';index;check:status IN ('pending','approved','rejected')" json:"status"`
	AdminNote  string            `gorm:"type:text;not null;default:''" json:"admin_note"`
	// DeletingAt marks a submission whose deletion has started; such rows are hidden from reads.
	DeletingAt *time.Time `gorm:"index" json:"-"`
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"index" json:"updated_at"`
}

// SubmissionPhoto is one uploaded image of a submission, ordered by Position.
type SubmissionPhoto struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SubmissionID uint      `gorm:"not null;uniqueIndex:idx_submission_photos_position" json:"submission_id"`
	Position     int       `gorm:"not null;uniqueIndex:idx_submission_photos_position" json:"position"`
	Filename     string    `gorm:"size:255;not null;uniqueIndex" json:"filename"`
	CreatedAt    time.Time `json:"created_at"`
}

// PhotoFilenames returns the photo filenames in submission order.
func (s *Submission) PhotoFilenames() []string {
	names := make([]string, 0, len(s.Photos))
	for _, p := range s.Photos {
		names = append(names, p.Filename)
	}
	return names
}

// SubmissionStats counts live submissions per status.
type SubmissionStats struct {
	Pending  int64 `json:"pending"`
	Approved int64 `json:"approved"`
	Rejected int64 `json:"rejected"`
	Total    int64 `json:"total"`
}
