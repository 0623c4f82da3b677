package utils

import (
	"errors"
	"net/http"
)

// Domain-level errors used by the service layer to provide
// fine-grained failure reasons.
var (
	// Wizard flow
	ErrStepInvalid        = errors.New("step_invalid")
	ErrNoPreviousStep     = errors.New("no_previous_step")
	ErrStepOutOfRange     = errors.New("step_out_of_range")
	ErrSubmissionInFlight = errors.New("submission_in_flight")
	ErrSessionNotFound    = errors.New("session_not_found")
	ErrSubjectNotFound    = errors.New("subject_not_found")

	// Submission pipeline
	ErrLocationUnresolved = errors.New("location_unresolved")
	ErrLocationResolution = errors.New("location_resolution_failed")
	ErrTimezoneResolution = errors.New("timezone_resolution_failed")
	ErrSubjectCreation    = errors.New("subject_creation_failed")
	ErrPhotoUpload        = errors.New("photo_upload_failed")
	ErrQuotaExceeded      = errors.New("quota_exceeded")
	ErrInvalidImage       = errors.New("invalid_image")

	// For external service failures (profile backend, Google Maps)
	ErrExternalServiceFailure = errors.New("external_service_failure")
)

// AppError for structured error handling from services to controllers.
type AppError struct {
	StatusCode int
	Code       string
	Message    string
	Details    any
	Err        error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// HandleAppError centralizes responding to AppErrors.
func HandleAppError(w http.ResponseWriter, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		RespondErrorWithCode(w, appErr.StatusCode, appErr.Code, appErr.Message, appErr.Details, appErr.Err)
	} else {
		// Fallback for unexpected error types
		RespondErrorWithCode(w, http.StatusInternalServerError, ErrCodeInternal, "An unexpected error occurred", nil, err)
	}
}
