package services

import (
	"context"
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/bradfitz/latlong"
	"googlemaps.github.io/maps"

	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/utils"
)

// TimezoneResolver returns the UTC offset in hours in force at
// (lat, lon) at epochSeconds. Offsets may be fractional.
type TimezoneResolver interface {
	Resolve(ctx context.Context, lat, lon float64, epochSeconds int64) (float64, error)
}

// NewTimezoneResolver prefers the remote Time Zone API. Without a Maps
// client it resolves from the bundled zone shapes instead; it never falls
// back after a remote failure.
func NewTimezoneResolver(client *maps.Client) TimezoneResolver {
	if client == nil {
		return offlineTimezoneResolver{}
	}
	return &googleTimezoneResolver{api: client}
}

type timezoneAPI interface {
	Timezone(ctx context.Context, r *maps.TimezoneRequest) (*maps.TimezoneResult, error)
}

type googleTimezoneResolver struct {
	api timezoneAPI
}

func (r *googleTimezoneResolver) Resolve(ctx context.Context, lat, lon float64, epochSeconds int64) (float64, error) {
	res, err := r.api.Timezone(ctx, &maps.TimezoneRequest{
		Location:  &maps.LatLng{Lat: lat, Lng: lon},
		Timestamp: time.Unix(epochSeconds, 0).UTC(),
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", utils.ErrTimezoneResolution, err)
	}
	// ZERO_RESULTS passes the client's status check with zero offsets.
	if res.TimeZoneID == "" {
		return 0, fmt.Errorf("%w: no zone for %.4f,%.4f", utils.ErrTimezoneResolution, lat, lon)
	}
	return float64(res.RawOffset+res.DstOffset) / 3600, nil
}

type offlineTimezoneResolver struct{}

func (offlineTimezoneResolver) Resolve(_ context.Context, lat, lon float64, epochSeconds int64) (float64, error) {
	tzName := latlong.LookupZoneName(lat, lon)
	if tzName == "" {
		return 0, fmt.Errorf("%w: no zone for %.4f,%.4f", utils.ErrTimezoneResolution, lat, lon)
	}
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", utils.ErrTimezoneResolution, err)
	}
	_, offset := time.Unix(epochSeconds, 0).In(loc).Zone()
	return float64(offset) / 3600, nil
}
