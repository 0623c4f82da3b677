package services

import (
	"fmt"

	"googlemaps.github.io/maps"

	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/utils"
)

// NewMapsClient builds the Google Maps web-service client shared by place
// and time zone lookups. An empty key yields a nil client; callers treat
// that as "not configured".
func NewMapsClient(apiKey, baseURL string) (*maps.Client, error) {
	if apiKey == "" {
		utils.Logger.Warn("[GMapsClient] API key is empty. Place search disabled, time zones resolved offline.")
		return nil, nil
	}
	opts := []maps.ClientOption{maps.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, maps.WithBaseURL(baseURL))
	}
	client, err := maps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("init google maps client: %w", err)
	}
	return client, nil
}
