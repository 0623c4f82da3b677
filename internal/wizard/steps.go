package wizard

import (
	"fmt"

	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/constants"
	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/draft"
	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/models"
)

// Step describes one wizard page. Steps live in an ordered slice and are
// addressed by index; nothing closes over UI state.
type Step struct {
	Key        string
	Title      string
	Validate   func(models.DraftSubjectProfile) error
	Render     func(models.DraftSubjectProfile) StepView
	EditTarget int
}

type StepView struct {
	Key     string         `json:"key"`
	Title   string         `json:"title"`
	Fields  map[string]any `json:"fields,omitempty"`
	Summary []SummaryRow   `json:"summary,omitempty"`
}

// SummaryRow is one line on the review page. EditTarget is the step index
// the UI passes to EditJump.
type SummaryRow struct {
	Label      string `json:"label"`
	Value      string `json:"value"`
	EditTarget int    `json:"editTarget"`
}

func validator(step int) func(models.DraftSubjectProfile) error {
	return func(d models.DraftSubjectProfile) error { return draft.ValidateStep(step, d) }
}

// DefaultSteps is the onboarding sequence: identity, birth date/time,
// birth place, optional photo, review.
func DefaultSteps() []Step {
	steps := []Step{
		{Key: "identity", Title: "Who is this profile for?", Render: renderIdentity},
		{Key: "birth_date_time", Title: "When were they born?", Render: renderBirthDateTime},
		{Key: "birth_place", Title: "Where were they born?", Render: renderBirthPlace},
		{Key: "photo", Title: "Add a photo", Render: renderPhoto},
		{Key: "review", Title: "Review", Render: renderReview},
	}
	for i := range steps {
		steps[i].Validate = validator(i)
		steps[i].EditTarget = i
	}
	return steps
}

func renderIdentity(d models.DraftSubjectProfile) StepView {
	return StepView{Fields: map[string]any{
		"kind":      d.Kind,
		"firstName": d.FirstName,
		"lastName":  d.LastName,
		"gender":    d.Gender,
	}}
}

func renderBirthDateTime(d models.DraftSubjectProfile) StepView {
	return StepView{Fields: map[string]any{
		"birthDate": d.BirthDate,
		"birthTime": d.BirthTime,
	}}
}

func renderBirthPlace(d models.DraftSubjectProfile) StepView {
	return StepView{Fields: map[string]any{
		"location": d.Location,
	}}
}

func renderPhoto(d models.DraftSubjectProfile) StepView {
	fields := map[string]any{"attached": d.LocalImageRef != nil}
	if d.LocalImageRef != nil {
		fields["mimeType"] = d.LocalImageRef.MimeType
	}
	return StepView{Fields: fields}
}

func renderReview(d models.DraftSubjectProfile) StepView {
	birthTime := "Unknown"
	if !d.BirthTime.Unknown {
		if d.BirthTime.Hour12 != nil && d.BirthTime.Minute != nil {
			birthTime = fmt.Sprintf("%d:%02d %s", *d.BirthTime.Hour12, *d.BirthTime.Minute, d.BirthTime.Meridiem)
		} else {
			birthTime = ""
		}
	}
	place := ""
	if d.Location.Resolved != nil {
		place = d.Location.Resolved.FormattedAddress
	}
	photo := "None"
	if d.LocalImageRef != nil {
		photo = "Attached"
	}

	return StepView{Summary: []SummaryRow{
		{Label: "Name", Value: d.FirstName + " " + d.LastName, EditTarget: constants.StepIdentity},
		{Label: "Gender", Value: string(d.Gender), EditTarget: constants.StepIdentity},
		{Label: "Date of birth", Value: fmt.Sprintf("%04d-%02d-%02d", d.BirthDate.Year, d.BirthDate.Month, d.BirthDate.Day), EditTarget: constants.StepBirthDateTime},
		{Label: "Time of birth", Value: birthTime, EditTarget: constants.StepBirthDateTime},
		{Label: "Place of birth", Value: place, EditTarget: constants.StepBirthPlace},
		{Label: "Photo", Value: photo, EditTarget: constants.StepPhoto},
	}}
}
