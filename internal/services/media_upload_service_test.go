package services

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/testhelpers"
	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/utils"
)

const (
	ticketPath  = "/api/v1/profiles/subj-1/photo/upload-url"
	confirmPath = "/api/v1/profiles/subj-1/photo/confirm"
)

func countPuts(fb *testhelpers.FakeBackend) int {
	n := 0
	for _, c := range fb.Calls() {
		if c.Method == http.MethodPut {
			n++
		}
	}
	return n
}

func TestUploadRunsAllThreePhases(t *testing.T) {
	h := newHarness(t)
	img := writeImage(t, "image/jpg", []byte("jpeg-bytes"))

	photo, err := h.media().Upload(context.Background(), "subj-1", img)
	require.NoError(t, err)
	assert.Equal(t, "photos/subj-1/1", photo.Key)
	assert.Equal(t, "https://cdn.example.test/photos/subj-1/1", photo.URL)

	assert.Equal(t, "image/jpeg", h.backend.LastBody(ticketPath)["mimeType"])
	body, ct := h.backend.Uploaded()
	assert.Equal(t, []byte("jpeg-bytes"), body)
	assert.Equal(t, "image/jpeg", ct)
	assert.Equal(t, "photos/subj-1/1", h.backend.LastBody(confirmPath)["photoKey"])
	assert.Empty(t, h.tempFiles(t))
}

func TestUploadPhaseFailures(t *testing.T) {
	cases := []struct {
		name        string
		configure   func(b *testhelpers.BackendBehavior)
		phase       PhotoUploadPhase
		wantPuts    int
		wantConfirm int
	}{
		{"ticket", func(b *testhelpers.BackendBehavior) { b.TicketStatus = http.StatusInternalServerError }, PhaseTicket, 0, 0},
		{"transfer", func(b *testhelpers.BackendBehavior) { b.PutStatus = http.StatusForbidden }, PhaseTransfer, 1, 0},
		{"confirm", func(b *testhelpers.BackendBehavior) { b.ConfirmStatus = http.StatusBadGateway }, PhaseConfirm, 1, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.backend.Configure(tc.configure)
			img := writeImage(t, "image/png", []byte("png-bytes"))

			_, err := h.media().Upload(context.Background(), "subj-1", img)
			require.Error(t, err)
			assert.ErrorIs(t, err, utils.ErrPhotoUpload)

			var pe *PhotoUploadError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tc.phase, pe.Phase)

			assert.Equal(t, tc.wantPuts, countPuts(h.backend))
			assert.Equal(t, tc.wantConfirm, h.backend.CallCount(http.MethodPost, confirmPath))
			assert.Empty(t, h.tempFiles(t), "temp copy must not outlive the upload")
		})
	}
}

func TestUploadRejectsEmptySource(t *testing.T) {
	h := newHarness(t)
	img := writeImage(t, "image/jpeg", nil)

	_, err := h.media().Upload(context.Background(), "subj-1", img)
	var pe *PhotoUploadError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, PhaseTransfer, pe.Phase)
	assert.ErrorIs(t, err, utils.ErrInvalidImage)
	assert.Zero(t, countPuts(h.backend))
	assert.Empty(t, h.tempFiles(t))
}

func TestUploadMissingSourceFails(t *testing.T) {
	h := newHarness(t)
	img := writeImage(t, "image/jpeg", []byte("x"))
	img.URI += ".gone"

	_, err := h.media().Upload(context.Background(), "subj-1", img)
	var pe *PhotoUploadError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, PhaseTransfer, pe.Phase)
	assert.Zero(t, h.backend.CallCount(http.MethodPost, confirmPath))
}

func TestUploadRequestsFreshTicketEachTime(t *testing.T) {
	h := newHarness(t)
	img := writeImage(t, "image/jpeg", []byte("x"))
	svc := h.media()

	first, err := svc.Upload(context.Background(), "subj-1", img)
	require.NoError(t, err)
	second, err := svc.Upload(context.Background(), "subj-1", img)
	require.NoError(t, err)

	assert.NotEqual(t, first.Key, second.Key)
	assert.Equal(t, 2, h.backend.CallCount(http.MethodPost, ticketPath))
}

func TestRemovePhotoWrapsFailure(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.media().RemovePhoto(context.Background(), "subj-1"))

	h.backend.Configure(func(b *testhelpers.BackendBehavior) { b.RemoveStatus = http.StatusInternalServerError })
	err := h.media().RemovePhoto(context.Background(), "subj-1")
	assert.ErrorIs(t, err, utils.ErrExternalServiceFailure)
}

func TestStageTempCopyReleaseToleratesMissingFile(t *testing.T) {
	img := writeImage(t, "image/jpeg", []byte("abc"))
	dir := t.TempDir()

	path, release, err := stageTempCopy(dir, img.URI)
	require.NoError(t, err)
	assert.FileExists(t, path)

	release()
	assert.NoFileExists(t, path)
	assert.NotPanics(t, release)
}
