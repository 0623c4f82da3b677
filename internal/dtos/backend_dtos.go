package dtos

// Request and response bodies exchanged with the profile backend.

// CreateSubjectRequest is shared by both creation endpoints. Time is nil
// for the unknown-time variant.
type CreateSubjectRequest struct {
	FirstName    string  `json:"firstName" validate:"required"`
	LastName     string  `json:"lastName" validate:"required"`
	Gender       string  `json:"gender" validate:"required,oneof=male female other"`
	DateOfBirth  string  `json:"dateOfBirth" validate:"required,datetime=2006-01-02"`
	PlaceOfBirth string  `json:"placeOfBirth" validate:"required"`
	Time         *string `json:"time,omitempty" validate:"omitempty,datetime=15:04"`
	Lat          float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon          float64 `json:"lon" validate:"gte=-180,lte=180"`
	Tzone        float64 `json:"tzone" validate:"gte=-14,lte=14"`
	UnknownTime  bool    `json:"unknownTime"`
}

type UploadTicketRequest struct {
	MimeType string `json:"mimeType"`
}

type UploadTicketResponse struct {
	UploadURL   string `json:"uploadUrl"`
	PhotoKey    string `json:"photoKey"`
	ContentType string `json:"contentType,omitempty"`
}

type ConfirmPhotoRequest struct {
	PhotoKey string `json:"photoKey"`
}

type ConfirmPhotoResponse struct {
	ProfilePhotoURL string `json:"profilePhotoUrl"`
	ProfilePhotoKey string `json:"profilePhotoKey"`
}

type QuotaResponse struct {
	Allowed bool `json:"allowed"`
	Used    int  `json:"used"`
	Limit   int  `json:"limit"`
}
