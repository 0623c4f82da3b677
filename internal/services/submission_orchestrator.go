package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/constants"
	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/draft"
	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/models"
	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/utils"
)

// SubmissionOrchestrator turns a completed draft into a created subject.
// Calls are strictly sequential; nothing is retried.
type SubmissionOrchestrator interface {
	Submit(ctx context.Context, userID string, d models.DraftSubjectProfile) (models.SubmissionResult, error)
}

type submissionOrchestrator struct {
	gate          CreditsGate
	timezones     TimezoneResolver
	subjects      SubjectService
	media         MediaUploadService
	photosEnabled bool
	newAttemptID  func() string
}

func NewSubmissionOrchestrator(
	gate CreditsGate,
	timezones TimezoneResolver,
	subjects SubjectService,
	media MediaUploadService,
	photosEnabled bool,
) SubmissionOrchestrator {
	return &submissionOrchestrator{
		gate:          gate,
		timezones:     timezones,
		subjects:      subjects,
		media:         media,
		photosEnabled: photosEnabled,
		newAttemptID:  func() string { return ulid.Make().String() },
	}
}

// QuotaAction picks the quota counter for the subject kind.
func QuotaAction(kind models.SubjectKind) string {
	if kind == models.SubjectKindGuest {
		return constants.ActionCreateGuestProfile
	}
	return constants.ActionCreateOwnProfile
}

// Submit always returns a populated result. A non-nil error means the
// attempt failed before a subject existed; a failed photo upload is
// reported in the result only.
//
// A create call that succeeds server-side but loses its response leaves
// the caller free to resubmit, which creates a second subject. The create
// endpoints take no idempotency key.
func (o *submissionOrchestrator) Submit(ctx context.Context, userID string, d models.DraftSubjectProfile) (models.SubmissionResult, error) {
	result := models.SubmissionResult{
		AttemptID:          o.newAttemptID(),
		PhotoUploadOutcome: models.PhotoUploadSkipped,
	}
	logger := utils.Logger.WithFields(logrus.Fields{
		"attempt_id": result.AttemptID,
		"user_id":    userID,
		"kind":       d.Kind,
	})
	fail := func(err error) (models.SubmissionResult, error) {
		result.ErrorMessage = err.Error()
		return result, err
	}

	if err := draft.ValidateAll(d); err != nil {
		return fail(fmt.Errorf("%w: %w", utils.ErrStepInvalid, err))
	}
	if d.Location.Resolved == nil {
		return fail(utils.ErrLocationUnresolved)
	}

	decision, err := o.gate.Check(ctx, QuotaAction(d.Kind))
	if err != nil {
		logger.WithError(err).Error("[Submission] Quota check failed")
		return fail(err)
	}
	if !decision.Allowed {
		logger.WithFields(logrus.Fields{"used": decision.Used, "limit": decision.Limit}).
			Info("[Submission] Declined by credits gate")
		result.NextScreen = models.NextScreenPaywall
		return fail(utils.ErrQuotaExceeded)
	}

	place := d.Location.Resolved
	tzone, err := o.timezones.Resolve(ctx, place.Lat, place.Lon, d.BirthEpoch())
	if err != nil {
		logger.WithError(err).Error("[Submission] Timezone resolution failed")
		if !errors.Is(err, utils.ErrTimezoneResolution) {
			err = fmt.Errorf("%w: %w", utils.ErrTimezoneResolution, err)
		}
		return fail(err)
	}

	req, err := o.subjects.BuildRequest(d, tzone)
	if err != nil {
		return fail(err)
	}
	subjectID, err := o.subjects.Create(ctx, req)
	if err != nil {
		logger.WithError(err).Error("[Submission] Subject creation failed")
		return fail(err)
	}
	result.Success = true
	result.SubjectID = subjectID
	result.NextScreen = models.NextScreenMain
	logger = logger.WithField("subject_id", subjectID)
	logger.Info("[Submission] Subject created")

	if d.LocalImageRef == nil || !o.photosEnabled {
		return result, nil
	}
	photo, err := o.media.Upload(ctx, subjectID, *d.LocalImageRef)
	if err != nil {
		logger.WithError(err).Warn("[Submission] Subject created without photo")
		result.PhotoUploadOutcome = models.PhotoUploadFailed
		result.ErrorMessage = err.Error()
		return result, nil
	}
	result.PhotoUploadOutcome = models.PhotoUploadSuccess
	result.Photo = &photo
	return result, nil
}
