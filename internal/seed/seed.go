// Package seed creates demo ride stories for development and testing.
// Stories go through the regular submission path, so photos are validated
// and stored exactly like visitor uploads.
package seed

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"

	"fourwcycle/internal/auth"
	"fourwcycle/internal/models"
	"fourwcycle/internal/observability"
	"fourwcycle/internal/service"

	"github.com/brianvoe/gofakeit/v6"
)

// Options configuration for the seeder
type Options struct {
	Count         int
	ApprovedRatio float64
	RejectedRatio float64
	MaxPhotos     int
}

// Result lists the ids created per final status.
type Result struct {
	Pending  []uint
	Approved []uint
	Rejected []uint
}

// Total is the number of stories created.
func (r *Result) Total() int {
	return len(r.Pending) + len(r.Approved) + len(r.Rejected)
}

// Seeder submits and moderates generated stories.
type Seeder struct {
	svc   *service.SubmissionService
	faker *gofakeit.Faker
}

// NewSeeder creates a seeder bound to svc. A non-zero seed makes the content reproducible.
func NewSeeder(svc *service.SubmissionService, seed int64) *Seeder {
	return &Seeder{svc: svc, faker: gofakeit.New(seed)}
}

var routeKinds = []string{"coastal loop", "gravel climb", "river path", "mountain pass", "forest trail", "city tour"}

// BuildInput generates one story with up to maxPhotos photos.
func (s *Seeder) BuildInput(maxPhotos int) service.SubmitInput {
	f := s.faker
	in := service.SubmitInput{
		Name:       f.Name(),
		Email:      f.Email(),
		Title:      fmt.Sprintf("%s %s", f.Adjective(), f.RandomString(routeKinds)),
		Route:      fmt.Sprintf("%s to %s via %s, %d km", f.City(), f.City(), f.StreetName(), f.Number(12, 180)),
		Experience: f.Paragraph(2, 4, 12, "\n\n"),
	}
	if maxPhotos > models.MaxPhotosPerSubmission {
		maxPhotos = models.MaxPhotosPerSubmission
	}
	if maxPhotos > 0 {
		for i := 0; i < f.Number(0, maxPhotos); i++ {
			in.Photos = append(in.Photos, s.photo(i))
		}
	}
	return in
}

func (s *Seeder) photo(i int) service.PhotoUpload {
	data := GeneratePNG(64, 48, color.RGBA{
		R: uint8(s.faker.Number(0, 255)),
		G: uint8(s.faker.Number(0, 255)),
		B: uint8(s.faker.Number(0, 255)),
		A: 255,
	})
	return service.PhotoUpload{
		Filename: fmt.Sprintf("ride-%d.png", i+1),
		Size:     int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// Run creates opts.Count stories and moderates a share of them.
func (s *Seeder) Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Count <= 0 {
		return &Result{}, nil
	}
	if opts.ApprovedRatio < 0 || opts.RejectedRatio < 0 || opts.ApprovedRatio+opts.RejectedRatio > 1 {
		return nil, fmt.Errorf("invalid ratios: approved %.2f rejected %.2f", opts.ApprovedRatio, opts.RejectedRatio)
	}

	approveN := int(float64(opts.Count) * opts.ApprovedRatio)
	rejectN := int(float64(opts.Count) * opts.RejectedRatio)
	adminCtx := auth.WithPrincipal(ctx, auth.Operator("seed"))

	result := &Result{}
	for i := 0; i < opts.Count; i++ {
		sub, err := s.svc.Submit(ctx, s.BuildInput(opts.MaxPhotos))
		if err != nil {
			return result, fmt.Errorf("submit story %d: %w", i+1, err)
		}

		switch {
		case i < approveN:
			if _, err := s.svc.Transition(adminCtx, sub.ID, string(models.SubmissionStatusApproved), ""); err != nil {
				return result, fmt.Errorf("approve %d: %w", sub.ID, err)
			}
			result.Approved = append(result.Approved, sub.ID)
		case i < approveN+rejectN:
			if _, err := s.svc.Transition(adminCtx, sub.ID, string(models.SubmissionStatusRejected), s.faker.Sentence(6)); err != nil {
				return result, fmt.Errorf("reject %d: %w", sub.ID, err)
			}
			result.Rejected = append(result.Rejected, sub.ID)
		default:
			result.Pending = append(result.Pending, sub.ID)
		}
	}

	observability.GlobalLogger.InfoContext(ctx, "seed complete",
		slog.Int("pending", len(result.Pending)),
		slog.Int("approved", len(result.Approved)),
		slog.Int("rejected", len(result.Rejected)),
	)
	return result, nil
}

// GeneratePNG renders a w x h vertical gradient from c to black.
func GeneratePNG(w, h int, c color.RGBA) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		shade := 1 - float64(y)/float64(h)
		row := color.RGBA{
			R: uint8(float64(c.R) * shade),
			G: uint8(float64(c.G) * shade),
			B: uint8(float64(c.B) * shade),
			A: 255,
		}
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, row)
		}
	}
	var buf bytes.Buffer
	// Encoding an in-memory RGBA image cannot fail.
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}
