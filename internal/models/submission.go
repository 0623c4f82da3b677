package models

type PhotoUploadOutcome string

const (
	PhotoUploadSuccess PhotoUploadOutcome = "success"
	PhotoUploadFailed  PhotoUploadOutcome = "failed"
	PhotoUploadSkipped PhotoUploadOutcome = "skipped"
)

// Screens the UI is directed to once a submission attempt settles.
const (
	NextScreenMain    = "main"
	NextScreenPaywall = "paywall"
)

// UploadTicket authorises a single direct write to storage. It is issued per
// upload attempt and never reused.
type UploadTicket struct {
	SubjectID   string `json:"subjectId"`
	ObjectKey   string `json:"objectKey"`
	UploadURL   string `json:"uploadUrl"`
	ContentType string `json:"contentType"`
}

// PhotoUpload is the canonical location of a confirmed profile photo.
type PhotoUpload struct {
	URL string `json:"profilePhotoUrl"`
	Key string `json:"profilePhotoKey"`
}

type SubmissionResult struct {
	Success            bool               `json:"success"`
	SubjectID          string             `json:"subjectId,omitempty"`
	PhotoUploadOutcome PhotoUploadOutcome `json:"photoUploadOutcome"`
	Photo              *PhotoUpload       `json:"photo,omitempty"`
	ErrorMessage       string             `json:"errorMessage,omitempty"`
	NextScreen         string             `json:"nextScreen,omitempty"`
	AttemptID          string             `json:"attemptId,omitempty"`
}
