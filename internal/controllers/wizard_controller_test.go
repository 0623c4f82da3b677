package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/clients"
	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/middleware"
	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/models"
	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/routes"
	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/services"
	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/testhelpers"
	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/utils"
)

const testUser = "user-1"

var springfield = testhelpers.FakePlace{
	PlaceID:          "place-springfield",
	Description:      "Springfield, IL, USA",
	FormattedAddress: "Springfield, IL, USA",
	Lat:              39.7817,
	Lng:              -89.6501,
}

type apiHarness struct {
	backend *testhelpers.FakeBackend
	maps    *testhelpers.FakeMaps
	server  *httptest.Server
}

func newAPIHarness(t *testing.T) *apiHarness {
	t.Helper()
	fb := testhelpers.NewFakeBackend()
	fm := testhelpers.NewFakeMaps(springfield)
	t.Cleanup(fb.Close)
	t.Cleanup(fm.Close)

	backend, err := clients.NewProfileBackendClient(fb.URL(), nil)
	require.NoError(t, err)
	gmaps, err := services.NewMapsClient("test-key", fm.URL())
	require.NoError(t, err)

	media := services.NewMediaUploadService(backend, t.TempDir())
	orch := services.NewSubmissionOrchestrator(
		services.NewCreditsGate(backend, true, nil),
		services.NewTimezoneResolver(gmaps),
		services.NewSubjectService(backend),
		media,
		true,
	)
	sessions := services.NewSessionService(services.NewLocationService(gmaps), orch, media, services.SessionServiceConfig{
		StagingDir:    t.TempDir(),
		MaxPhotoBytes: 1024,
	})

	wizardCtrl := NewWizardController(sessions, 1024)
	photoCtrl := NewSubjectPhotoController(sessions, 1024)
	healthCtrl := NewHealthController(backend)

	router := mux.NewRouter()
	router.HandleFunc(routes.Health, healthCtrl.HealthCheckHandler).Methods(http.MethodGet)
	secured := router.NewRoute().Subrouter()
	secured.Use(middleware.AuthMiddleware(nil, true))
	secured.HandleFunc(routes.OnboardingSessions, wizardCtrl.StartSessionHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.OnboardingSession, wizardCtrl.GetSessionHandler).Methods(http.MethodGet)
	secured.HandleFunc(routes.OnboardingSession, wizardCtrl.AbandonSessionHandler).Methods(http.MethodDelete)
	secured.HandleFunc(routes.OnboardingFields, wizardCtrl.PatchFieldsHandler).Methods(http.MethodPatch)
	secured.HandleFunc(routes.OnboardingPlaces, wizardCtrl.SearchPlacesHandler).Methods(http.MethodGet)
	secured.HandleFunc(routes.OnboardingPlaceSelect, wizardCtrl.SelectPlaceHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.OnboardingPhoto, wizardCtrl.AttachPhotoHandler).Methods(http.MethodPut)
	secured.HandleFunc(routes.OnboardingPhoto, wizardCtrl.RemovePhotoHandler).Methods(http.MethodDelete)
	secured.HandleFunc(routes.OnboardingNext, wizardCtrl.NextHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.OnboardingBack, wizardCtrl.BackHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.OnboardingJump, wizardCtrl.EditJumpHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.OnboardingUserState, wizardCtrl.UserStateHandler).Methods(http.MethodGet)
	secured.HandleFunc(routes.SubjectPhoto, photoCtrl.RetryPhotoHandler).Methods(http.MethodPut)
	secured.HandleFunc(routes.SubjectPhoto, photoCtrl.RemovePhotoHandler).Methods(http.MethodDelete)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &apiHarness{backend: fb, maps: fm, server: srv}
}

func (h *apiHarness) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, h.server.URL+path, rdr)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.DevUserHeader, testUser)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (h *apiHarness) putPhoto(t *testing.T, path, mimeType string, content []byte) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="photo"; filename="me.jpg"`)
	hdr.Set("Content-Type", mimeType)
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPut, h.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(middleware.DevUserHeader, testUser)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func sessionPath(id, suffix string) string {
	return strings.Replace(routes.OnboardingSession, "{sessionId}", id, 1) + suffix
}

// fillToReview drives a session to the review step over HTTP.
func (h *apiHarness) fillToReview(t *testing.T) string {
	t.Helper()
	resp := h.do(t, http.MethodPost, routes.OnboardingSessions, map[string]string{"kind": "self"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := decode[services.SessionView](t, resp).SessionID

	resp = h.do(t, http.MethodPatch, sessionPath(id, "/fields"), map[string]any{
		"firstName": "Ada", "lastName": "Lovelace", "gender": "female",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, sessionPath(id, "/next"), nil).StatusCode)

	resp = h.do(t, http.MethodPatch, sessionPath(id, "/fields"), map[string]any{
		"birthYear": 1990, "birthMonth": 3, "birthDay": 5, "hour": 2, "minute": 30, "meridiem": "PM",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, sessionPath(id, "/next"), nil).StatusCode)

	resp = h.do(t, http.MethodGet, sessionPath(id, "/places?query=Springf&lang=en"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	suggestions := decode[struct {
		Suggestions []models.PlaceSuggestion `json:"suggestions"`
	}](t, resp).Suggestions
	require.Len(t, suggestions, 1)

	resp = h.do(t, http.MethodPost, sessionPath(id, "/places/select"), map[string]string{
		"placeId": suggestions[0].PlaceID, "description": suggestions[0].Description,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, sessionPath(id, "/next"), nil).StatusCode)
	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, sessionPath(id, "/next"), nil).StatusCode)
	return id
}

func TestWizardHappyPathOverHTTP(t *testing.T) {
	h := newAPIHarness(t)
	id := h.fillToReview(t)

	resp := h.putPhoto(t, sessionPath(id, "/photo"), "image/jpeg", []byte("jpeg-bytes"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decode[map[string]any](t, resp)
	img := view["draft"].(map[string]any)["localImageRef"].(map[string]any)
	assert.NotContains(t, img, "uri")
	assert.Equal(t, "image/jpeg", img["mimeType"])

	resp = h.do(t, http.MethodPost, sessionPath(id, "/next"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[services.NextOutcome](t, resp)
	assert.True(t, out.Completed)
	require.NotNil(t, out.Result)
	assert.True(t, out.Result.Success)
	assert.Equal(t, models.NextScreenMain, out.Result.NextScreen)
	assert.Equal(t, models.PhotoUploadSuccess, out.Result.PhotoUploadOutcome)

	resp = h.do(t, http.MethodGet, routes.OnboardingUserState, nil)
	st := decode[services.UserSessionState](t, resp)
	require.NotNil(t, st.Own)
	assert.Equal(t, "subj-1", st.Own.SubjectID)

	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodGet, sessionPath(id, ""), nil).StatusCode)
}

func TestNextOnIncompleteStepIs400(t *testing.T) {
	h := newAPIHarness(t)
	resp := h.do(t, http.MethodPost, routes.OnboardingSessions, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := decode[services.SessionView](t, resp).SessionID

	resp = h.do(t, http.MethodPost, sessionPath(id, "/next"), nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode[utils.ErrorResponse](t, resp)
	assert.Equal(t, utils.ErrCodeValidation, body.Code)
	details := body.Details.(map[string]any)
	assert.EqualValues(t, 0, details["step"])
	assert.NotEmpty(t, details["fields"])

	resp = h.do(t, http.MethodPost, sessionPath(id, "/back"), nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestQuotaDeclineIs402WithPaywall(t *testing.T) {
	h := newAPIHarness(t)
	id := h.fillToReview(t)
	h.backend.Configure(func(b *testhelpers.BackendBehavior) { b.QuotaAllowed = false })

	resp := h.do(t, http.MethodPost, sessionPath(id, "/next"), nil)
	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
	body := decode[utils.ErrorResponse](t, resp)
	assert.Equal(t, utils.ErrCodeQuotaExceeded, body.Code)
	details := body.Details.(map[string]any)
	assert.Equal(t, models.NextScreenPaywall, details["nextScreen"])
	assert.Equal(t, false, details["success"])
}

func TestCreationFailureIs502(t *testing.T) {
	h := newAPIHarness(t)
	id := h.fillToReview(t)
	h.backend.Configure(func(b *testhelpers.BackendBehavior) { b.CreateStatus = http.StatusInternalServerError })

	resp := h.do(t, http.MethodPost, sessionPath(id, "/next"), nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, utils.ErrCodeExternalServiceFailure, decode[utils.ErrorResponse](t, resp).Code)

	// The session survives for a retry.
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, sessionPath(id, ""), nil).StatusCode)
}

func TestPatchValidation(t *testing.T) {
	h := newAPIHarness(t)
	resp := h.do(t, http.MethodPost, routes.OnboardingSessions, nil)
	id := decode[services.SessionView](t, resp).SessionID

	resp = h.do(t, http.MethodPatch, sessionPath(id, "/fields"), map[string]any{"gender": "robot"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, utils.ErrCodeValidation, decode[utils.ErrorResponse](t, resp).Code)

	req, err := http.NewRequest(http.MethodPatch, h.server.URL+sessionPath(id, "/fields"), strings.NewReader("{"))
	require.NoError(t, err)
	req.Header.Set(middleware.DevUserHeader, testUser)
	raw, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer raw.Body.Close()
	assert.Equal(t, http.StatusBadRequest, raw.StatusCode)
	assert.Equal(t, utils.ErrCodeInvalidPayload, decode[utils.ErrorResponse](t, raw).Code)
}

func TestPatchSwitchesSubjectKind(t *testing.T) {
	h := newAPIHarness(t)
	resp := h.do(t, http.MethodPost, routes.OnboardingSessions, nil)
	id := decode[services.SessionView](t, resp).SessionID

	resp = h.do(t, http.MethodPatch, sessionPath(id, "/fields"), map[string]any{"kind": "guest"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.SubjectKindGuest, decode[services.SessionView](t, resp).Draft.Kind)

	resp = h.do(t, http.MethodPatch, sessionPath(id, "/fields"), map[string]any{"kind": "pet"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEditJumpOverHTTP(t *testing.T) {
	h := newAPIHarness(t)
	id := h.fillToReview(t)

	resp := h.do(t, http.MethodPost, sessionPath(id, "/jump"), map[string]int{"stepIndex": 1})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decode[services.SessionView](t, resp)
	assert.Equal(t, 1, view.Wizard.State.CurrentStepIndex)
	assert.Equal(t, "Ada", view.Draft.FirstName)

	resp = h.do(t, http.MethodPost, sessionPath(id, "/jump"), map[string]int{"stepIndex": 4})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = h.do(t, http.MethodPost, sessionPath(id, "/jump"), map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPhotoUploadRejections(t *testing.T) {
	h := newAPIHarness(t)
	resp := h.do(t, http.MethodPost, routes.OnboardingSessions, nil)
	id := decode[services.SessionView](t, resp).SessionID

	resp = h.putPhoto(t, sessionPath(id, "/photo"), "image/gif", []byte("gif"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = h.putPhoto(t, sessionPath(id, "/photo"), "image/png", bytes.Repeat([]byte("x"), 2048))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = h.putPhoto(t, sessionPath("missing", "/photo"), "image/png", []byte("x"))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSubjectPhotoRetryAndRemove(t *testing.T) {
	h := newAPIHarness(t)
	id := h.fillToReview(t)
	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, sessionPath(id, "/next"), nil).StatusCode)

	path := strings.Replace(routes.SubjectPhoto, "{subjectId}", "subj-1", 1)
	resp := h.putPhoto(t, path, "image/png", []byte("png"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	photo := decode[models.PhotoUpload](t, resp)
	assert.NotEmpty(t, photo.URL)

	resp = h.do(t, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	other := strings.Replace(routes.SubjectPhoto, "{subjectId}", "someone-else", 1)
	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodDelete, other, nil).StatusCode)
}

func TestAbandonOverHTTP(t *testing.T) {
	h := newAPIHarness(t)
	resp := h.do(t, http.MethodPost, routes.OnboardingSessions, map[string]string{"kind": "guest"})
	view := decode[services.SessionView](t, resp)
	assert.Equal(t, models.SubjectKindGuest, view.Draft.Kind)

	assert.Equal(t, http.StatusNoContent, h.do(t, http.MethodDelete, sessionPath(view.SessionID, ""), nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodGet, sessionPath(view.SessionID, ""), nil).StatusCode)
}

func TestMissingIdentityIs401(t *testing.T) {
	h := newAPIHarness(t)
	resp, err := http.Post(h.server.URL+routes.OnboardingSessions, "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	h := newAPIHarness(t)
	resp, err := http.Get(h.server.URL + routes.Health)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	h.backend.Configure(func(b *testhelpers.BackendBehavior) { b.HealthStatus = http.StatusInternalServerError })
	resp2, err := http.Get(h.server.URL + routes.Health)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp2.StatusCode)
}

func TestToAppErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{utils.ErrSubmissionInFlight, http.StatusConflict, utils.ErrCodeConflict},
		{utils.ErrQuotaExceeded, http.StatusPaymentRequired, utils.ErrCodeQuotaExceeded},
		{utils.ErrTimezoneResolution, http.StatusBadGateway, utils.ErrCodeExternalServiceFailure},
		{utils.ErrSubjectCreation, http.StatusBadGateway, utils.ErrCodeExternalServiceFailure},
		{&services.PhotoUploadError{Phase: services.PhaseConfirm, Err: errors.New("x")}, http.StatusBadGateway, utils.ErrCodeExternalServiceFailure},
		{utils.ErrSessionNotFound, http.StatusNotFound, utils.ErrCodeNotFound},
		{utils.ErrLocationUnresolved, http.StatusBadRequest, utils.ErrCodeValidation},
		{context.DeadlineExceeded, http.StatusInternalServerError, utils.ErrCodeInternal},
	}
	for _, c := range cases {
		ae := toAppError(c.err, nil)
		assert.Equal(t, c.status, ae.StatusCode, c.err.Error())
		assert.Equal(t, c.code, ae.Code, c.err.Error())
	}
}
