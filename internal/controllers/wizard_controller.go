package controllers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/draft"
	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/dtos"
	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/models"
	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/services"
	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/utils"
)

const photoFormField = "photo"

var validate = validator.New()

type WizardController struct {
	svc           services.SessionService
	maxPhotoBytes int64
}

func NewWizardController(s services.SessionService, maxPhotoBytes int64) *WizardController {
	return &WizardController{svc: s, maxPhotoBytes: maxPhotoBytes}
}

// -----------------------------------------------------------------------------
// POST /api/v1/onboarding/sessions
// -----------------------------------------------------------------------------
func (c *WizardController) StartSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req dtos.StartSessionRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}
	kind := req.Kind
	if kind == "" {
		kind = models.SubjectKindSelf
	}
	view := c.svc.Start(utils.UserIDFromContext(r.Context()), kind)
	utils.RespondWithJSON(w, http.StatusCreated, view)
}

// -----------------------------------------------------------------------------
// GET /api/v1/onboarding/sessions/{sessionId}
// -----------------------------------------------------------------------------
func (c *WizardController) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	view, err := c.svc.Get(utils.UserIDFromContext(r.Context()), mux.Vars(r)["sessionId"])
	c.respondView(w, view, err)
}

// -----------------------------------------------------------------------------
// DELETE /api/v1/onboarding/sessions/{sessionId}
// -----------------------------------------------------------------------------
func (c *WizardController) AbandonSessionHandler(w http.ResponseWriter, r *http.Request) {
	if err := c.svc.Abandon(utils.UserIDFromContext(r.Context()), mux.Vars(r)["sessionId"]); err != nil {
		respondServiceError(w, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// -----------------------------------------------------------------------------
// PATCH /api/v1/onboarding/sessions/{sessionId}/fields
// -----------------------------------------------------------------------------
func (c *WizardController) PatchFieldsHandler(w http.ResponseWriter, r *http.Request) {
	var req dtos.FieldPatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	patch := draft.Patch{
		Kind:          req.Kind,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Gender:        req.Gender,
		BirthYear:     req.BirthYear,
		BirthMonth:    req.BirthMonth,
		BirthDay:      req.BirthDay,
		Hour12:        req.Hour12,
		Minute:        req.Minute,
		Meridiem:      req.Meridiem,
		UnknownTime:   req.UnknownTime,
		LocationQuery: req.LocationQuery,
	}
	view, err := c.svc.ApplyPatch(utils.UserIDFromContext(r.Context()), mux.Vars(r)["sessionId"], patch)
	c.respondView(w, view, err)
}

// -----------------------------------------------------------------------------
// GET /api/v1/onboarding/sessions/{sessionId}/places?query=&lang=
// -----------------------------------------------------------------------------
func (c *WizardController) SearchPlacesHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	suggestions, err := c.svc.SearchPlaces(
		r.Context(),
		utils.UserIDFromContext(r.Context()),
		mux.Vars(r)["sessionId"],
		q.Get("query"),
		q.Get("lang"),
	)
	if err != nil {
		respondServiceError(w, err, nil)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dtos.PlaceSearchResponse{Suggestions: suggestions})
}

// -----------------------------------------------------------------------------
// POST /api/v1/onboarding/sessions/{sessionId}/places/select
// -----------------------------------------------------------------------------
func (c *WizardController) SelectPlaceHandler(w http.ResponseWriter, r *http.Request) {
	var req dtos.SelectPlaceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	view, err := c.svc.SelectPlace(
		r.Context(),
		utils.UserIDFromContext(r.Context()),
		mux.Vars(r)["sessionId"],
		models.PlaceSuggestion{Description: req.Description, PlaceID: req.PlaceID},
	)
	c.respondView(w, view, err)
}

// -----------------------------------------------------------------------------
// PUT /api/v1/onboarding/sessions/{sessionId}/photo (multipart "photo")
// -----------------------------------------------------------------------------
func (c *WizardController) AttachPhotoHandler(w http.ResponseWriter, r *http.Request) {
	file, mimeType, ok := readPhotoPart(w, r, c.maxPhotoBytes)
	if !ok {
		return
	}
	defer file.Close()

	view, err := c.svc.AttachPhoto(utils.UserIDFromContext(r.Context()), mux.Vars(r)["sessionId"], file, mimeType)
	c.respondView(w, view, err)
}

// -----------------------------------------------------------------------------
// DELETE /api/v1/onboarding/sessions/{sessionId}/photo
// -----------------------------------------------------------------------------
func (c *WizardController) RemovePhotoHandler(w http.ResponseWriter, r *http.Request) {
	view, err := c.svc.RemovePhoto(utils.UserIDFromContext(r.Context()), mux.Vars(r)["sessionId"])
	c.respondView(w, view, err)
}

// -----------------------------------------------------------------------------
// POST /api/v1/onboarding/sessions/{sessionId}/next
// -----------------------------------------------------------------------------
func (c *WizardController) NextHandler(w http.ResponseWriter, r *http.Request) {
	out, err := c.svc.Next(r.Context(), utils.UserIDFromContext(r.Context()), mux.Vars(r)["sessionId"])
	if err != nil {
		var details any
		switch {
		case out.Result != nil:
			details = out.Result
		case out.Session != nil:
			details = out.Session
		}
		respondServiceError(w, err, details)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, out)
}

// -----------------------------------------------------------------------------
// POST /api/v1/onboarding/sessions/{sessionId}/back
// -----------------------------------------------------------------------------
func (c *WizardController) BackHandler(w http.ResponseWriter, r *http.Request) {
	view, err := c.svc.Back(utils.UserIDFromContext(r.Context()), mux.Vars(r)["sessionId"])
	c.respondView(w, view, err)
}

// -----------------------------------------------------------------------------
// POST /api/v1/onboarding/sessions/{sessionId}/jump
// -----------------------------------------------------------------------------
func (c *WizardController) EditJumpHandler(w http.ResponseWriter, r *http.Request) {
	var req dtos.EditJumpRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	view, err := c.svc.EditJump(utils.UserIDFromContext(r.Context()), mux.Vars(r)["sessionId"], *req.StepIndex)
	c.respondView(w, view, err)
}

// -----------------------------------------------------------------------------
// GET /api/v1/onboarding/state
// -----------------------------------------------------------------------------
func (c *WizardController) UserStateHandler(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, http.StatusOK, c.svc.UserState(utils.UserIDFromContext(r.Context())))
}

// -----------------------------------------------------------------------------
// shared helpers
// -----------------------------------------------------------------------------

// respondView writes view, or the error with the view as details when the
// session still exists.
func (c *WizardController) respondView(w http.ResponseWriter, view services.SessionView, err error) {
	if err != nil {
		var details any
		if view.SessionID != "" {
			details = view
		}
		respondServiceError(w, err, details)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, view)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		utils.RespondErrorWithCode(
			w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid JSON payload", nil, err,
		)
		return false
	}
	return validateRequest(w, dst)
}

// decodeOptionalJSON accepts an empty body.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		utils.RespondErrorWithCode(
			w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid JSON payload", nil, err,
		)
		return false
	}
	return validateRequest(w, dst)
}

func validateRequest(w http.ResponseWriter, dst any) bool {
	if err := validate.Struct(dst); err != nil {
		utils.RespondErrorWithCode(
			w, http.StatusBadRequest, utils.ErrCodeValidation, "Request failed validation", nil, err,
		)
		return false
	}
	return true
}

// multipartOverhead leaves room for boundaries and part headers on top of
// the image itself.
const multipartOverhead = 1 << 20

// readPhotoPart opens the "photo" part of a multipart upload. The part's
// Content-Type header is taken as the image type.
func readPhotoPart(w http.ResponseWriter, r *http.Request, maxBytes int64) (io.ReadCloser, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)
	file, header, err := r.FormFile(photoFormField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.RespondErrorWithCode(
				w, http.StatusRequestEntityTooLarge, utils.ErrCodeValidation, "Image too large", nil, err,
			)
			return nil, "", false
		}
		utils.RespondErrorWithCode(
			w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Missing multipart field \"photo\"", nil, err,
		)
		return nil, "", false
	}
	mimeType := strings.TrimSpace(header.Header.Get("Content-Type"))
	return file, mimeType, true
}
