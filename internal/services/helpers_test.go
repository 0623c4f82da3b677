package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"googlemaps.github.io/maps"

	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/clients"
	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/models"
	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/testhelpers"
	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/utils"
)

var springfield = testhelpers.FakePlace{
	PlaceID:          "place-springfield",
	Description:      "Springfield, IL, USA",
	FormattedAddress: "Springfield, IL, USA",
	Lat:              39.7817,
	Lng:              -89.6501,
}

// harness wires real services to the in-process fakes.
type harness struct {
	backend *testhelpers.FakeBackend
	maps    *testhelpers.FakeMaps
	client  *clients.ProfileBackendClient
	gmaps   *maps.Client
	tempDir string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	fb := testhelpers.NewFakeBackend()
	fm := testhelpers.NewFakeMaps(springfield)
	t.Cleanup(fb.Close)
	t.Cleanup(fm.Close)

	c, err := clients.NewProfileBackendClient(fb.URL(), nil)
	require.NoError(t, err)
	gm, err := NewMapsClient("test-key", fm.URL())
	require.NoError(t, err)

	return &harness{backend: fb, maps: fm, client: c, gmaps: gm, tempDir: t.TempDir()}
}

func (h *harness) media() MediaUploadService {
	return NewMediaUploadService(h.client, h.tempDir)
}

func (h *harness) orchestrator(photosEnabled bool) SubmissionOrchestrator {
	return NewSubmissionOrchestrator(
		NewCreditsGate(h.client, true, nil),
		NewTimezoneResolver(h.gmaps),
		NewSubjectService(h.client),
		h.media(),
		photosEnabled,
	)
}

// tempFiles lists whatever the media service left in its temp dir.
func (h *harness) tempFiles(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(h.tempDir)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

// writeImage creates a small source image file and returns its ref.
func writeImage(t *testing.T, mime string, content []byte) models.LocalImageRef {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.jpg")
	require.NoError(t, os.WriteFile(path, content, 0o600))
	return models.LocalImageRef{URI: path, MimeType: mime}
}

// completeDraft is a draft that passes every step, resolved to
// springfield.
func completeDraft() models.DraftSubjectProfile {
	return models.DraftSubjectProfile{
		Kind:      models.SubjectKindSelf,
		FirstName: "Ada",
		LastName:  "Lovelace",
		Gender:    models.GenderFemale,
		BirthDate: models.BirthDate{Year: 1990, Month: 3, Day: 5},
		BirthTime: models.BirthTime{Hour12: utils.Ptr(2), Minute: utils.Ptr(30), Meridiem: models.MeridiemPM},
		Location: models.BirthLocation{
			QueryText: springfield.Description,
			Resolved: &models.ResolvedPlace{
				Lat:              springfield.Lat,
				Lon:              springfield.Lng,
				FormattedAddress: springfield.FormattedAddress,
			},
		},
	}
}
