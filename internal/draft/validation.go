package draft

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/constants"
	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/models"
	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/utils"
)

type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError lists the fields that keep a step from being valid. It
// never leaves the process.
type ValidationError struct {
	Step   int          `json:"step"`
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Reason)
	}
	return fmt.Sprintf("step %d invalid (%s)", e.Step, strings.Join(parts, "; "))
}

func (e *ValidationError) add(field, reason string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Reason: reason})
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// ValidateStep reports why step is not yet valid for d, or nil.
func ValidateStep(step int, d models.DraftSubjectProfile) error {
	switch step {
	case constants.StepIdentity:
		return validateIdentity(d)
	case constants.StepBirthDateTime:
		return validateBirthDateTime(d)
	case constants.StepBirthPlace:
		return validateBirthPlace(d)
	case constants.StepPhoto:
		return validatePhoto(d)
	case constants.StepReview:
		return validateReview(d)
	}
	return fmt.Errorf("%w: %d", utils.ErrStepOutOfRange, step)
}

func IsStepValid(step int, d models.DraftSubjectProfile) bool {
	return ValidateStep(step, d) == nil
}

// ValidateAll checks every step in order and returns the first failure.
func ValidateAll(d models.DraftSubjectProfile) error {
	for step := 0; step < constants.TotalSteps; step++ {
		if err := ValidateStep(step, d); err != nil {
			return err
		}
	}
	return nil
}

func validateIdentity(d models.DraftSubjectProfile) error {
	ve := &ValidationError{Step: constants.StepIdentity}
	if strings.TrimSpace(d.FirstName) == "" {
		ve.add("firstName", "required")
	}
	if strings.TrimSpace(d.LastName) == "" {
		ve.add("lastName", "required")
	}
	if !d.Gender.Valid() {
		ve.add("gender", "required")
	}
	return ve.orNil()
}

func validateBirthDateTime(d models.DraftSubjectProfile) error {
	ve := &ValidationError{Step: constants.StepBirthDateTime}

	bd := d.BirthDate
	switch {
	case bd.Year < constants.MinBirthYear || bd.Year > 9999:
		ve.add("birthDate.year", "out of range")
	case bd.Month < 1 || bd.Month > 12:
		ve.add("birthDate.month", "out of range")
	case bd.Day < 1 || bd.Day > DaysIn(bd.Year, bd.Month):
		ve.add("birthDate.day", "not a calendar day")
	}

	bt := d.BirthTime
	if !bt.Unknown {
		if bt.Hour12 == nil {
			ve.add("birthTime.hour12", "required")
		} else if *bt.Hour12 < 1 || *bt.Hour12 > 12 {
			ve.add("birthTime.hour12", "out of range")
		}
		if bt.Minute == nil {
			ve.add("birthTime.minute", "required")
		} else if *bt.Minute < 0 || *bt.Minute > 59 {
			ve.add("birthTime.minute", "out of range")
		}
		if bt.Meridiem != models.MeridiemAM && bt.Meridiem != models.MeridiemPM {
			ve.add("birthTime.meridiem", "must be AM or PM")
		}
	}
	return ve.orNil()
}

func validateBirthPlace(d models.DraftSubjectProfile) error {
	ve := &ValidationError{Step: constants.StepBirthPlace}
	if d.Location.Resolved == nil {
		ve.add("location", "select a place from the suggestions")
	}
	return ve.orNil()
}

func validatePhoto(d models.DraftSubjectProfile) error {
	if d.LocalImageRef == nil {
		return nil
	}
	ve := &ValidationError{Step: constants.StepPhoto}
	if d.LocalImageRef.URI == "" {
		ve.add("localImageRef.uri", "required")
	}
	if !constants.SupportedImageMimeTypes[constants.NormalizeMimeType(d.LocalImageRef.MimeType)] {
		ve.add("localImageRef.mimeType", "unsupported image type")
	}
	return ve.orNil()
}

func validateReview(d models.DraftSubjectProfile) error {
	ve := &ValidationError{Step: constants.StepReview}
	for step := 0; step < constants.StepReview; step++ {
		var inner *ValidationError
		if err := ValidateStep(step, d); err != nil {
			if errors.As(err, &inner) {
				ve.Fields = append(ve.Fields, inner.Fields...)
			}
		}
	}
	return ve.orNil()
}

// DaysIn returns the number of days in month of year.
func DaysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
