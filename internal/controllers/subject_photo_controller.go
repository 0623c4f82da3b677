package controllers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/services"
	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/utils"
)

// SubjectPhotoController manages photos of subjects that already exist,
// e.g. a retry after the upload during onboarding failed.
type SubjectPhotoController struct {
	svc           services.SessionService
	maxPhotoBytes int64
}

func NewSubjectPhotoController(s services.SessionService, maxPhotoBytes int64) *SubjectPhotoController {
	return &SubjectPhotoController{svc: s, maxPhotoBytes: maxPhotoBytes}
}

// PUT /api/v1/subjects/{subjectId}/photo (multipart "photo")
func (c *SubjectPhotoController) RetryPhotoHandler(w http.ResponseWriter, r *http.Request) {
	file, mimeType, ok := readPhotoPart(w, r, c.maxPhotoBytes)
	if !ok {
		return
	}
	defer file.Close()

	photo, err := c.svc.RetrySubjectPhoto(
		r.Context(), utils.UserIDFromContext(r.Context()), mux.Vars(r)["subjectId"], file, mimeType,
	)
	if err != nil {
		respondServiceError(w, err, nil)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, photo)
}

// DELETE /api/v1/subjects/{subjectId}/photo
func (c *SubjectPhotoController) RemovePhotoHandler(w http.ResponseWriter, r *http.Request) {
	err := c.svc.RemoveSubjectPhoto(r.Context(), utils.UserIDFromContext(r.Context()), mux.Vars(r)["subjectId"])
	if err != nil {
		respondServiceError(w, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
