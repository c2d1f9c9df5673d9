package models

import "time"

// UploadsPath is the URL prefix photo files are served under.
const UploadsPath = "/uploads/"

// PublishedSubmission is the public projection of an approved story.
type PublishedSubmission struct {
	ID         uint      `json:"id"`
	Name       string    `json:"name"`
	Title      string    `json:"title"`
	Route      string    `json:"route"`
	Experience string    `json:"experience"`
	Photos     []string  `json:"photos"`
	PhotoURLs  []string  `json:"photo_urls"`
	CreatedAt  time.Time `json:"created_at"`
}

// SubmissionRecord is the full admin view of a submission.
type SubmissionRecord struct {
	ID         uint             `json:"id"`
	Name       string           `json:"name"`
	Email      string           `json:"email"`
	Title      string           `json:"title"`
	Route      string           `json:"route"`
	Experience string           `json:"experience"`
	Photos     []string         `json:"photos"`
	PhotoURLs  []string         `json:"photo_urls"`
	Status     SubmissionStatus `json:"status"`
	AdminNote  string           `json:"admin_note"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

func photoURLs(names []string) []string {
	urls := make([]string, len(names))
	for i, n := range names {
		urls[i] = UploadsPath + n
	}
	return urls
}

// Published projects s to its public form.
func (s *Submission) Published() PublishedSubmission {
	names := s.PhotoFilenames()
	return PublishedSubmission{
		ID:         s.ID,
		Name:       s.Name,
		Title:      s.Title,
		Route:      s.Route,
		Experience: s.Experience,
		Photos:     names,
		PhotoURLs:  photoURLs(names),
		CreatedAt:  s.CreatedAt,
	}
}

// Record projects s to the admin view.
func (s *Submission) Record() SubmissionRecord {
	names := s.PhotoFilenames()
	return SubmissionRecord{
		ID:         s.ID,
		Name:       s.Name,
		Email:      s.Email,
		Title:      s.Title,
		Route:      s.Route,
		Experience: s.Experience,
		Photos:     names,
		PhotoURLs:  photoURLs(names),
		Status:     s.Status,
		AdminNote:  s.AdminNote,
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
	}
}
