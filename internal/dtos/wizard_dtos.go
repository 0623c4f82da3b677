package dtos

import (
	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/models"
)

// Request and response bodies for the onboarding HTTP API.

type HealthCheckResponse struct {
	Status string `json:"status"`
}

type StartSessionRequest struct {
	Kind models.SubjectKind `json:"kind" validate:"omitempty,oneof=self guest"`
}

// FieldPatchRequest carries any subset of draft fields; omitted fields are
// left as they are. Range checks beyond shape happen in step validation.
type FieldPatchRequest struct {
	Kind          *string `json:"kind" validate:"omitempty,oneof=self guest"`
	FirstName     *string `json:"firstName" validate:"omitempty,max=100"`
	LastName      *string `json:"lastName" validate:"omitempty,max=100"`
	Gender        *string `json:"gender" validate:"omitempty,oneof=male female other"`
	BirthYear     *int    `json:"birthYear" validate:"omitempty,gte=0,lte=9999"`
	BirthMonth    *int    `json:"birthMonth" validate:"omitempty,gte=0,lte=12"`
	BirthDay      *int    `json:"birthDay" validate:"omitempty,gte=0,lte=31"`
	Hour12        *int    `json:"hour" validate:"omitempty,gte=1,lte=12"`
	Minute        *int    `json:"minute" validate:"omitempty,gte=0,lte=59"`
	Meridiem      *string `json:"meridiem" validate:"omitempty,oneof=AM PM am pm"`
	UnknownTime   *bool   `json:"unknownTime"`
	LocationQuery *string `json:"locationQuery" validate:"omitempty,max=200"`
}

type SelectPlaceRequest struct {
	PlaceID     string `json:"placeId" validate:"required,max=512"`
	Description string `json:"description" validate:"required,max=300"`
}

type EditJumpRequest struct {
	StepIndex *int `json:"stepIndex" validate:"required,gte=0"`
}

type PlaceSearchResponse struct {
	Suggestions []models.PlaceSuggestion `json:"suggestions"`
}
