// Package service implements the submission lifecycle, photo uploads and admin login.
package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"fourwcycle/internal/config"
	"fourwcycle/internal/models"
	"fourwcycle/internal/observability"
	"fourwcycle/internal/storage"

	"github.com/google/uuid"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	DefaultUploadMaxFiles  = models.MaxPhotosPerSubmission
	DefaultUploadMaxFileMB = 10
)

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".gif":  true,
}

// sniffed content type -> decoded format name
var allowedImageTypes = map[string]string{
	"image/jpeg": "jpeg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// PhotoStore is the file storage behind uploads. storage.DiskStore implements it.
type PhotoStore interface {
	Save(ctx context.Context, name string, r io.Reader) (int64, error)
	Remove(ctx context.Context, name string) error
	Exists(ctx context.Context, name string) (bool, error)
	List(ctx context.Context) ([]storage.FileInfo, error)
}

// PhotoUpload is one file of a multipart request.
type PhotoUpload struct {
	Filename string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

// UploadService filters and stores submission photos.
type UploadService struct {
	store        PhotoStore
	maxFiles     int
	maxFileBytes int64
}

// NewUploadService returns an upload service bound by cfg's limits, or the defaults when unset.
func NewUploadService(store PhotoStore, cfg *config.Config) *UploadService {
	maxFiles := DefaultUploadMaxFiles
	maxFileBytes := int64(DefaultUploadMaxFileMB) << 20
	if cfg != nil {
		// Configuration may only tighten the limits.
		if cfg.UploadMaxFiles > 0 && cfg.UploadMaxFiles < maxFiles {
			maxFiles = cfg.UploadMaxFiles
		}
		if b := cfg.MaxUploadBytes(); b > 0 && b < maxFileBytes {
			maxFileBytes = b
		}
	}
	return &UploadService{
		store:        store,
		maxFiles:     maxFiles,
		maxFileBytes: maxFileBytes,
	}
}

// Store exposes the underlying photo store.
func (s *UploadService) Store() PhotoStore {
	return s.store
}

// MaxFiles is the per-request file limit.
func (s *UploadService) MaxFiles() int {
	return s.maxFiles
}

// MaxFileBytes is the per-file size limit.
func (s *UploadService) MaxFileBytes() int64 {
	return s.maxFileBytes
}

// Validate rejects requests that carry too many files or a file over the size limit.
func (s *UploadService) Validate(files []PhotoUpload) error {
	if len(files) > s.maxFiles {
		return models.NewValidationError(fmt.Sprintf("Too many photos (max %d).", s.maxFiles))
	}
	for _, f := range files {
		if f.Size > s.maxFileBytes {
			return s.tooLarge()
		}
	}
	return nil
}

func (s *UploadService) tooLarge() error {
	return models.NewValidationError(fmt.Sprintf("Photo too large (max %dMB).", s.maxFileBytes/(1024*1024)))
}

// Accept stores every acceptable file and returns the stored names in request order.
// Files with a disallowed extension or non-image content are dropped silently.
// On any error nothing stays stored.
func (s *UploadService) Accept(ctx context.Context, files []PhotoUpload) ([]string, error) {
	if err := s.Validate(files); err != nil {
		return nil, err
	}

	stored := make([]string, 0, len(files))
	fail := func(err error) ([]string, error) {
		s.Discard(ctx, stored)
		return nil, err
	}

	for _, f := range files {
		ext := strings.ToLower(filepath.Ext(f.Filename))
		if !allowedExtensions[ext] {
			observability.UploadsDropped.WithLabelValues("extension").Inc()
			continue
		}

		data, err := s.read(f)
		if err != nil {
			return fail(err)
		}
		if !isAllowedImage(data) {
			observability.UploadsDropped.WithLabelValues("content").Inc()
			observability.GlobalLogger.InfoContext(ctx, "dropped upload with non-image content",
				slog.String("filename", f.Filename))
			continue
		}

		name := uuid.NewString() + ext
		if _, err := s.store.Save(ctx, name, bytes.NewReader(data)); err != nil {
			return fail(models.NewStorageError(err))
		}
		stored = append(stored, name)
	}
	return stored, nil
}

// read loads f fully, enforcing the size limit on the actual bytes.
func (s *UploadService) read(f PhotoUpload) ([]byte, error) {
	if f.Open == nil {
		return nil, models.NewValidationError("Invalid photo upload.")
	}
	rc, err := f.Open()
	if err != nil {
		return nil, models.NewStorageError(err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(io.LimitReader(rc, s.maxFileBytes+1))
	if err != nil {
		return nil, models.NewStorageError(err)
	}
	if int64(len(data)) > s.maxFileBytes {
		return nil, s.tooLarge()
	}
	return data, nil
}

// Discard removes stored files; failures are logged and left for the reconciliation sweep.
func (s *UploadService) Discard(ctx context.Context, names []string) {
	for _, name := range names {
		if err := s.store.Remove(ctx, name); err != nil {
			observability.PhotoCleanupFailures.Inc()
			observability.LogAsyncOperationError(ctx, "discard_upload", err, map[string]any{"filename": name})
		}
	}
}

func isAllowedImage(data []byte) bool {
	format, ok := allowedImageTypes[http.DetectContentType(data)]
	if !ok {
		return false
	}
	_, decoded, err := image.DecodeConfig(bytes.NewReader(data))
	return err == nil && decoded == format
}
