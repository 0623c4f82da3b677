package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/constants"
	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/models"
	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/utils"
)

type PhotoUploadPhase string

const (
	PhaseTicket   PhotoUploadPhase = "ticket"
	PhaseTransfer PhotoUploadPhase = "transfer"
	PhaseConfirm  PhotoUploadPhase = "confirm"
)

// PhotoUploadError reports which upload phase failed. It matches
// utils.ErrPhotoUpload under errors.Is.
type PhotoUploadError struct {
	Phase PhotoUploadPhase
	Err   error
}

func (e *PhotoUploadError) Error() string {
	return fmt.Sprintf("photo upload failed at %s: %v", e.Phase, e.Err)
}

func (e *PhotoUploadError) Unwrap() []error {
	return []error{utils.ErrPhotoUpload, e.Err}
}

// MediaUploadService pushes a local image to storage through a one-shot
// upload ticket and confirms it with the backend.
type MediaUploadService interface {
	Upload(ctx context.Context, subjectID string, image models.LocalImageRef) (models.PhotoUpload, error)
	RemovePhoto(ctx context.Context, subjectID string) error
}

type mediaAPI interface {
	RequestUploadTicket(ctx context.Context, subjectID, mimeType string) (models.UploadTicket, error)
	PutObject(ctx context.Context, ticket models.UploadTicket, body io.Reader, size int64) error
	ConfirmPhotoUpload(ctx context.Context, subjectID, photoKey string) (models.PhotoUpload, error)
	RemovePhoto(ctx context.Context, subjectID string) error
}

type mediaUploadService struct {
	api     mediaAPI
	tempDir string
}

// NewMediaUploadService stages temporary copies under tempDir, or the OS
// temp dir when empty.
func NewMediaUploadService(api mediaAPI, tempDir string) MediaUploadService {
	if tempDir == "" {
		tempDir = filepath.Join(os.TempDir(), constants.DefaultUploadTempDirName)
	}
	return &mediaUploadService{api: api, tempDir: tempDir}
}

// Upload runs ticket, transfer and confirm in order. Confirm only runs
// after a 2xx transfer. Nothing is retried, and a fresh ticket is
// requested on every call.
func (s *mediaUploadService) Upload(ctx context.Context, subjectID string, image models.LocalImageRef) (models.PhotoUpload, error) {
	logger := utils.Logger.WithFields(logrus.Fields{"subject_id": subjectID})
	mimeType := constants.NormalizeMimeType(image.MimeType)

	ticket, err := s.api.RequestUploadTicket(ctx, subjectID, mimeType)
	if err != nil {
		logger.WithError(err).Warn("[MediaUpload] Upload ticket request failed")
		return models.PhotoUpload{}, &PhotoUploadError{Phase: PhaseTicket, Err: err}
	}

	if err := s.transfer(ctx, ticket, image.URI); err != nil {
		logger.WithError(err).WithField("object_key", ticket.ObjectKey).Warn("[MediaUpload] Byte transfer failed")
		return models.PhotoUpload{}, &PhotoUploadError{Phase: PhaseTransfer, Err: err}
	}

	photo, err := s.api.ConfirmPhotoUpload(ctx, subjectID, ticket.ObjectKey)
	if err != nil {
		logger.WithError(err).WithField("object_key", ticket.ObjectKey).Warn("[MediaUpload] Upload confirmation failed")
		return models.PhotoUpload{}, &PhotoUploadError{Phase: PhaseConfirm, Err: err}
	}
	logger.WithField("object_key", photo.Key).Info("[MediaUpload] Profile photo uploaded")
	return photo, nil
}

// transfer copies src into a process-owned temp file and PUTs that copy.
// The copy is removed on every exit path.
func (s *mediaUploadService) transfer(ctx context.Context, ticket models.UploadTicket, src string) error {
	tmpPath, release, err := stageTempCopy(s.tempDir, src)
	if err != nil {
		return err
	}
	defer release()

	f, err := os.Open(tmpPath)
	if err != nil {
		return fmt.Errorf("open staged copy: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat staged copy: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%w: staged copy is empty", utils.ErrInvalidImage)
	}
	return s.api.PutObject(ctx, ticket, f, info.Size())
}

func (s *mediaUploadService) RemovePhoto(ctx context.Context, subjectID string) error {
	if err := s.api.RemovePhoto(ctx, subjectID); err != nil {
		return fmt.Errorf("%w: %w", utils.ErrExternalServiceFailure, err)
	}
	return nil
}

// stageTempCopy copies src into dir and returns the copy's path plus a
// release func that deletes it, tolerating a file that is already gone.
// On error nothing is left behind.
func stageTempCopy(dir, src string) (string, func(), error) {
	in, err := os.Open(src)
	if err != nil {
		return "", nil, fmt.Errorf("open source image: %w", err)
	}
	defer in.Close()

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", nil, fmt.Errorf("create temp dir: %w", err)
	}
	out, err := os.CreateTemp(dir, "subject-photo-*"+filepath.Ext(src))
	if err != nil {
		return "", nil, fmt.Errorf("create temp copy: %w", err)
	}
	tmpPath := out.Name()
	release := func() { removeQuietly(tmpPath) }

	_, copyErr := io.Copy(out, in)
	closeErr := out.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		release()
		return "", nil, fmt.Errorf("copy image: %w", err)
	}
	return tmpPath, release, nil
}

func removeQuietly(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		utils.Logger.WithError(err).WithField("path", path).Warn("[MediaUpload] Could not remove temp file")
	}
}
