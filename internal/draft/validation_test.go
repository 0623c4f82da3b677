package draft

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/constants"
	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/models"
	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/utils"
)

func completeDraft() models.DraftSubjectProfile {
	return models.DraftSubjectProfile{
		Kind:      models.SubjectKindSelf,
		FirstName: "Ada",
		LastName:  "Lovelace",
		Gender:    models.GenderFemale,
		BirthDate: models.BirthDate{Year: 1990, Month: 3, Day: 5},
		BirthTime: models.BirthTime{Hour12: utils.Ptr(2), Minute: utils.Ptr(30), Meridiem: models.MeridiemPM},
		Location: models.BirthLocation{
			QueryText: "London, UK",
			Resolved:  &models.ResolvedPlace{Lat: 51.5, Lon: -0.12, FormattedAddress: "London, United Kingdom"},
		},
	}
}

func TestCompleteDraftIsValidEverywhere(t *testing.T) {
	d := completeDraft()
	for step := 0; step < constants.TotalSteps; step++ {
		assert.True(t, IsStepValid(step, d), "step %d", step)
	}
	assert.NoError(t, ValidateAll(d))
}

func TestIdentityStep(t *testing.T) {
	d := completeDraft()
	d.FirstName = "   "
	d.Gender = ""
	err := ValidateStep(constants.StepIdentity, d)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.ElementsMatch(t, []FieldError{
		{Field: "firstName", Reason: "required"},
		{Field: "gender", Reason: "required"},
	}, ve.Fields)
}

func TestBirthDateMustBeCalendarReal(t *testing.T) {
	cases := []struct {
		date  models.BirthDate
		valid bool
	}{
		{models.BirthDate{Year: 2000, Month: 2, Day: 29}, true},
		{models.BirthDate{Year: 1900, Month: 2, Day: 29}, false},
		{models.BirthDate{Year: 2023, Month: 4, Day: 31}, false},
		{models.BirthDate{Year: 2023, Month: 12, Day: 31}, true},
		{models.BirthDate{Year: 2023, Month: 13, Day: 1}, false},
		{models.BirthDate{Year: 2023, Month: 1, Day: 0}, false},
		{models.BirthDate{Year: 1799, Month: 1, Day: 1}, false},
		{models.BirthDate{}, false},
	}
	for _, c := range cases {
		d := completeDraft()
		d.BirthDate = c.date
		assert.Equal(t, c.valid, IsStepValid(constants.StepBirthDateTime, d), "%+v", c.date)
	}
}

func TestBirthTimeKnownOrUnknown(t *testing.T) {
	d := completeDraft()
	d.BirthTime.Minute = nil
	assert.False(t, IsStepValid(constants.StepBirthDateTime, d))

	d.BirthTime.Unknown = true
	assert.True(t, IsStepValid(constants.StepBirthDateTime, d))

	d = completeDraft()
	d.BirthTime.Hour12 = utils.Ptr(13)
	assert.False(t, IsStepValid(constants.StepBirthDateTime, d))
	d.BirthTime.Hour12 = utils.Ptr(0)
	assert.False(t, IsStepValid(constants.StepBirthDateTime, d))
	d.BirthTime.Hour12 = utils.Ptr(12)
	d.BirthTime.Minute = utils.Ptr(60)
	assert.False(t, IsStepValid(constants.StepBirthDateTime, d))
}

func TestBirthPlaceRequiresResolution(t *testing.T) {
	d := completeDraft()
	d.Location.Resolved = nil
	assert.False(t, IsStepValid(constants.StepBirthPlace, d))
}

func TestPhotoStepIsOptional(t *testing.T) {
	d := completeDraft()
	assert.True(t, IsStepValid(constants.StepPhoto, d))

	d.LocalImageRef = &models.LocalImageRef{URI: "/tmp/x", MimeType: "image/jpg"}
	assert.True(t, IsStepValid(constants.StepPhoto, d))

	d.LocalImageRef.MimeType = "application/pdf"
	assert.False(t, IsStepValid(constants.StepPhoto, d))
}

func TestReviewAggregatesEarlierSteps(t *testing.T) {
	d := completeDraft()
	d.LastName = ""
	d.Location.Resolved = nil

	err := ValidateStep(constants.StepReview, d)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, constants.StepReview, ve.Step)
	assert.Len(t, ve.Fields, 2)

	err = ValidateAll(d)
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, constants.StepIdentity, ve.Step)
}

func TestValidationDoesNotMutate(t *testing.T) {
	d := completeDraft()
	before := d.Clone()
	_ = ValidateAll(d)
	assert.Equal(t, before, d)
}

func TestValidateStepOutOfRange(t *testing.T) {
	assert.ErrorIs(t, ValidateStep(constants.TotalSteps, completeDraft()), utils.ErrStepOutOfRange)
}

func TestDaysIn(t *testing.T) {
	assert.Equal(t, 29, DaysIn(2024, 2))
	assert.Equal(t, 28, DaysIn(2023, 2))
	assert.Equal(t, 30, DaysIn(2023, 11))
	assert.Equal(t, 31, DaysIn(2023, 12))
}
