package controllers

import (
	"errors"
	"net/http"

	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/draft"
	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/utils"
)

// toAppError maps a service error onto its HTTP status and code. details
// is attached to the body unless the error carries field-level validation
// errors, which take its place.
func toAppError(err error, details any) *utils.AppError {
	var ve *draft.ValidationError
	switch {
	case errors.As(err, &ve):
		return &utils.AppError{StatusCode: http.StatusBadRequest, Code: utils.ErrCodeValidation, Message: "Step is not complete", Details: ve, Err: err}
	case errors.Is(err, utils.ErrStepInvalid),
		errors.Is(err, utils.ErrLocationUnresolved),
		errors.Is(err, utils.ErrInvalidImage),
		errors.Is(err, utils.ErrNoPreviousStep),
		errors.Is(err, utils.ErrStepOutOfRange):
		return &utils.AppError{StatusCode: http.StatusBadRequest, Code: utils.ErrCodeValidation, Message: publicMessage(err), Details: details, Err: err}
	case errors.Is(err, utils.ErrSessionNotFound), errors.Is(err, utils.ErrSubjectNotFound):
		return &utils.AppError{StatusCode: http.StatusNotFound, Code: utils.ErrCodeNotFound, Message: publicMessage(err), Err: err}
	case errors.Is(err, utils.ErrSubmissionInFlight):
		return &utils.AppError{StatusCode: http.StatusConflict, Code: utils.ErrCodeConflict, Message: "A submission is already in progress", Details: details, Err: err}
	case errors.Is(err, utils.ErrQuotaExceeded):
		return &utils.AppError{StatusCode: http.StatusPaymentRequired, Code: utils.ErrCodeQuotaExceeded, Message: "Profile limit reached", Details: details, Err: err}
	case errors.Is(err, utils.ErrTimezoneResolution),
		errors.Is(err, utils.ErrSubjectCreation),
		errors.Is(err, utils.ErrLocationResolution),
		errors.Is(err, utils.ErrPhotoUpload),
		errors.Is(err, utils.ErrExternalServiceFailure):
		return &utils.AppError{StatusCode: http.StatusBadGateway, Code: utils.ErrCodeExternalServiceFailure, Message: publicMessage(err), Details: details, Err: err}
	default:
		return &utils.AppError{StatusCode: http.StatusInternalServerError, Code: utils.ErrCodeInternal, Message: "An unexpected error occurred", Err: err}
	}
}

func publicMessage(err error) string {
	switch {
	case errors.Is(err, utils.ErrLocationUnresolved):
		return "Birth place has not been resolved"
	case errors.Is(err, utils.ErrInvalidImage):
		return "Image is missing, empty, too large or of an unsupported type"
	case errors.Is(err, utils.ErrNoPreviousStep):
		return "Already at the first step"
	case errors.Is(err, utils.ErrStepOutOfRange):
		return "Step cannot be reached from here"
	case errors.Is(err, utils.ErrStepInvalid):
		return "Step is not complete"
	case errors.Is(err, utils.ErrSessionNotFound):
		return "Onboarding session not found"
	case errors.Is(err, utils.ErrSubjectNotFound):
		return "Subject not found"
	case errors.Is(err, utils.ErrTimezoneResolution):
		return "Could not determine the birth place time zone"
	case errors.Is(err, utils.ErrSubjectCreation):
		return "Profile could not be created"
	case errors.Is(err, utils.ErrLocationResolution):
		return "Could not resolve the selected place"
	case errors.Is(err, utils.ErrPhotoUpload):
		return "Photo upload failed"
	default:
		return "Upstream service failure"
	}
}

func respondServiceError(w http.ResponseWriter, err error, details any) {
	utils.HandleAppError(w, toAppError(err, details))
}
