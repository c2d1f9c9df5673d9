package server

import (
	"io"
	"strings"

	"fourwcycle/internal/models"
	"fourwcycle/internal/service"

	"github.com/gofiber/fiber/v2"
)

// photosField is the multipart field carrying submission photos.
const photosField = "photos"

// UpdateStatusRequest is the body of a moderation decision.
type UpdateStatusRequest struct {
	Status    string `json:"status"`
	AdminNote string `json:"admin_note"`
}

// SubmitStory accepts a public ride story with up to five photos.
// @Summary Submit a ride story
// @Description Multipart form with name, email, title, route, experience and optional photos
// @Tags submissions
// @Accept mpfd
// @Produce json
// @Param name formData string true "Rider name"
// @Param email formData string true "Contact email"
// @Param title formData string true "Story title"
// @Param route formData string true "Route description"
// @Param experience formData string true "Ride experience"
// @Param photos formData file false "Up to five photos"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Router /submissions/submit [post]
func (s *Server) SubmitStory(c *fiber.Ctx) error {
	in := service.SubmitInput{
		Name:       c.FormValue("name"),
		Email:      c.FormValue("email"),
		Title:      c.FormValue("title"),
		Route:      c.FormValue("route"),
		Experience: c.FormValue("experience"),
	}

	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		form, err := c.MultipartForm()
		if err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid multipart form"))
		}
		for _, fh := range form.File[photosField] {
			fh := fh
			in.Photos = append(in.Photos, service.PhotoUpload{
				Filename: fh.Filename,
				Size:     fh.Size,
				Open: func() (io.ReadCloser, error) {
					return fh.Open()
				},
			})
		}
	}

	sub, err := s.submissions.Submit(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":      sub.ID,
		"message": "Submission received! We will review it soon.",
	})
}

// GetPublished lists approved stories for the public site.
// @Summary List published stories
// @Tags submissions
// @Produce json
// @Success 200 {array} models.PublishedSubmission
// @Router /submissions/published [get]
func (s *Server) GetPublished(c *fiber.Ctx) error {
	items, err := s.submissions.ListPublished(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(items)
}

// RedirectPublished keeps the legacy public path working.
// @Summary Published stories (alias)
// @Tags submissions
// @Success 302
// @Router /published [get]
func (s *Server) RedirectPublished(c *fiber.Ctx) error {
	return c.Redirect("/api/submissions/published", fiber.StatusFound)
}

// GetSubmissions lists every live submission, optionally filtered by status.
// @Summary List submissions
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param status query string false "pending, approved or rejected"
// @Success 200 {array} models.SubmissionRecord
// @Failure 401 {object} models.ErrorResponse
// @Router /submissions [get]
func (s *Server) GetSubmissions(c *fiber.Ctx) error {
	records, err := s.submissions.ListAll(c.UserContext(), c.Query("status"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(records)
}

// GetSubmissionStats returns live submission counts per status.
// @Summary Submission counts
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.SubmissionStats
// @Router /submissions/stats [get]
func (s *Server) GetSubmissionStats(c *fiber.Ctx) error {
	stats, err := s.submissions.Stats(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(stats)
}

// GetSubmission returns one submission.
// @Summary Get a submission
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "Submission ID"
// @Success 200 {object} models.SubmissionRecord
// @Failure 404 {object} models.ErrorResponse
// @Router /submissions/{id} [get]
func (s *Server) GetSubmission(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	record, err := s.submissions.GetOne(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(record)
}

// UpdateSubmissionStatus approves or rejects a submission.
// @Summary Moderate a submission
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Submission ID"
// @Param request body UpdateStatusRequest true "Decision"
// @Success 200 {object} map[string]string
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /submissions/{id} [patch]
func (s *Server) UpdateSubmissionStatus(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	record, err := s.submissions.Transition(c.UserContext(), id, req.Status, req.AdminNote)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Submission " + string(record.Status) + "."})
}

// DeleteSubmission removes a submission and its photo files.
// @Summary Delete a submission
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "Submission ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} models.ErrorResponse
// @Router /submissions/{id} [delete]
func (s *Server) DeleteSubmission(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	result, err := s.submissions.Delete(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}

	failed := result.FailedPhotos
	if failed == nil {
		failed = []string{}
	}
	return c.JSON(fiber.Map{
		"message":        "Deleted.",
		"removed_photos": result.RemovedPhotos,
		"failed_photos":  failed,
	})
}

// ReconcileSubmissions runs one reconciliation sweep on demand.
// @Summary Reconcile store and upload directory
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.ReconcileReport
// @Router /submissions/reconcile [post]
func (s *Server) ReconcileSubmissions(c *fiber.Ctx) error {
	report, err := s.submissions.Reconcile(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(report)
}
