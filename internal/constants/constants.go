package constants

import (
	"time"
)

// Wizard steps, in order.
const (
	StepIdentity = iota
	StepBirthDateTime
	StepBirthPlace
	StepPhoto
	StepReview

	TotalSteps
)

// Earliest birth year the date step accepts.
const MinBirthYear = 1800

// Quota actions checked by the credits gate.
const (
	ActionCreateOwnProfile   = "create_own_profile"
	ActionCreateGuestProfile = "create_guest_profile"
)

// Photo upload
const (
	DefaultMaxPhotoBytes = 10 << 20
	MimeTypeJPEG         = "image/jpeg"
	MimeTypeJPGAlias     = "image/jpg"
	MimeTypePNG          = "image/png"
	MimeTypeHEIC         = "image/heic"
	MimeTypeWEBP         = "image/webp"
)

// Sessions
const (
	DefaultSessionTTL           = 2 * time.Hour
	SessionCleanupCronSpec      = "*/15 * * * *"
	SessionCleanupJobTimeout    = 1 * time.Minute
	DefaultStagingDirName       = "onboarding-staging"
	DefaultUploadTempDirName    = "onboarding-uploads"
	SubmissionTimeout           = 90 * time.Second
	PlaceLookupTimeout          = 5 * time.Second
	ProfileBackendClientTimeout = 30 * time.Second
)

// SupportedImageMimeTypes lists what the photo step accepts, after
// aliases are normalised.
var SupportedImageMimeTypes = map[string]bool{
	MimeTypeJPEG: true,
	MimeTypePNG:  true,
	MimeTypeHEIC: true,
	MimeTypeWEBP: true,
}

// NormalizeMimeType folds known aliases onto the canonical type.
func NormalizeMimeType(mime string) string {
	if mime == MimeTypeJPGAlias {
		return MimeTypeJPEG
	}
	return mime
}
