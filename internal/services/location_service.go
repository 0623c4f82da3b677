package services

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"googlemaps.github.io/maps"

	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/constants"
	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/models"
	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/utils"
)

// LocationService turns typed text into city suggestions and a chosen
// suggestion into coordinates plus a formatted address.
type LocationService interface {
	SearchPlaces(ctx context.Context, query, lang string) []models.PlaceSuggestion
	SelectPlace(ctx context.Context, suggestion models.PlaceSuggestion) (models.ResolvedPlace, error)
}

type placesAPI interface {
	PlaceAutocomplete(ctx context.Context, r *maps.PlaceAutocompleteRequest) (maps.AutocompleteResponse, error)
	PlaceDetails(ctx context.Context, r *maps.PlaceDetailsRequest) (maps.PlaceDetailsResult, error)
}

type locationService struct {
	places placesAPI
}

// NewLocationService wires place lookups to client. A nil client disables
// search: every query returns no suggestions.
func NewLocationService(client *maps.Client) LocationService {
	s := &locationService{}
	if client != nil {
		s.places = client
	}
	return s
}

// SearchPlaces never fails: blank text, a missing key or a remote error
// all produce an empty list.
func (s *locationService) SearchPlaces(ctx context.Context, query, lang string) []models.PlaceSuggestion {
	out := []models.PlaceSuggestion{}
	query = utils.CleanText(query)
	if query == "" || s.places == nil {
		return out
	}

	ctx, cancel := context.WithTimeout(ctx, constants.PlaceLookupTimeout)
	defer cancel()

	resp, err := s.places.PlaceAutocomplete(ctx, &maps.PlaceAutocompleteRequest{
		Input:    query,
		Types:    maps.AutocompletePlaceTypeCities,
		Language: normalizeLanguage(lang),
	})
	if err != nil {
		utils.Logger.WithError(err).WithField("query", query).Warn("[LocationService] Place autocomplete failed")
		return out
	}
	for _, p := range resp.Predictions {
		if p.PlaceID == "" {
			continue
		}
		out = append(out, models.PlaceSuggestion{Description: p.Description, PlaceID: p.PlaceID})
	}
	return out
}

// SelectPlace fetches details for suggestion. Either all of lat, lon and
// address come back, or an error wrapping ErrLocationResolution does.
func (s *locationService) SelectPlace(ctx context.Context, suggestion models.PlaceSuggestion) (models.ResolvedPlace, error) {
	if s.places == nil {
		return models.ResolvedPlace{}, fmt.Errorf("%w: place lookups not configured", utils.ErrLocationResolution)
	}
	if suggestion.PlaceID == "" {
		return models.ResolvedPlace{}, fmt.Errorf("%w: missing place id", utils.ErrLocationResolution)
	}

	ctx, cancel := context.WithTimeout(ctx, constants.PlaceLookupTimeout)
	defer cancel()

	detail, err := s.places.PlaceDetails(ctx, &maps.PlaceDetailsRequest{
		PlaceID: suggestion.PlaceID,
		Fields: []maps.PlaceDetailsFieldMask{
			maps.PlaceDetailsFieldMaskGeometry,
			maps.PlaceDetailsFieldMaskFormattedAddress,
		},
	})
	if err != nil {
		return models.ResolvedPlace{}, fmt.Errorf("%w: %w", utils.ErrLocationResolution, err)
	}

	loc := detail.Geometry.Location
	address := strings.TrimSpace(detail.FormattedAddress)
	if address == "" || !hasGeometry(detail.Geometry) {
		return models.ResolvedPlace{}, fmt.Errorf("%w: incomplete place detail for %s", utils.ErrLocationResolution, suggestion.PlaceID)
	}
	return models.ResolvedPlace{Lat: loc.Lat, Lon: loc.Lng, FormattedAddress: address}, nil
}

// hasGeometry reports whether the reply carried a geometry block. The
// decoded struct has no presence marker, but Places always sends a viewport
// alongside the location, so (0,0) stays a valid coordinate.
func hasGeometry(g maps.AddressGeometry) bool {
	return g.Viewport != (maps.LatLngBounds{})
}

// normalizeLanguage returns a canonical BCP 47 tag, or "" so the API picks
// its default.
func normalizeLanguage(lang string) string {
	if lang == "" {
		return ""
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return ""
	}
	return tag.String()
}
