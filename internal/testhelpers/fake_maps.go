package testhelpers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"

	"github.com/gorilla/mux"
)

// FakePlace is one place the fake Maps server knows about.
type FakePlace struct {
	PlaceID          string
	Description      string
	FormattedAddress string
	Lat, Lng         float64
	// OmitGeometry drops geometry from the details reply.
	OmitGeometry bool
}

// FakeMaps serves the Places autocomplete, Place details and Time Zone web
// service endpoints used through googlemaps.github.io/maps.
type FakeMaps struct {
	Server *httptest.Server

	mu              sync.Mutex
	places          []FakePlace
	rawOffset       int
	dstOffset       int
	timezoneStatus  string
	autocompleteErr bool
	detailsErr      bool
	queries         map[string][]url.Values
}

func NewFakeMaps(places ...FakePlace) *FakeMaps {
	f := &FakeMaps{places: places, timezoneStatus: "OK", queries: map[string][]url.Values{}}

	r := mux.NewRouter()
	r.HandleFunc("/maps/api/place/autocomplete/json", f.handleAutocomplete)
	r.HandleFunc("/maps/api/place/details/json", f.handleDetails)
	r.HandleFunc("/maps/api/timezone/json", f.handleTimezone)
	f.Server = httptest.NewServer(r)
	return f
}

func (f *FakeMaps) URL() string { return f.Server.URL }
func (f *FakeMaps) Close()      { f.Server.Close() }

// SetOffsets sets the rawOffset/dstOffset seconds the time zone endpoint
// returns.
func (f *FakeMaps) SetOffsets(raw, dst int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rawOffset, f.dstOffset = raw, dst
}

// SetTimezoneStatus makes the time zone endpoint answer with status.
func (f *FakeMaps) SetTimezoneStatus(status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timezoneStatus = status
}

func (f *FakeMaps) FailAutocomplete() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.autocompleteErr = true
}

func (f *FakeMaps) FailDetails() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detailsErr = true
}

// Queries returns the query strings received on endpoint, e.g.
// "timezone".
func (f *FakeMaps) Queries(endpoint string) []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]url.Values(nil), f.queries[endpoint]...)
}

func (f *FakeMaps) note(endpoint string, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries[endpoint] = append(f.queries[endpoint], r.URL.Query())
}

func (f *FakeMaps) handleAutocomplete(w http.ResponseWriter, r *http.Request) {
	f.note("autocomplete", r)
	f.mu.Lock()
	failing, places := f.autocompleteErr, f.places
	f.mu.Unlock()

	if failing {
		mapsJSON(w, map[string]any{"status": "REQUEST_DENIED", "error_message": "denied"})
		return
	}
	predictions := make([]map[string]any, 0, len(places))
	for _, p := range places {
		predictions = append(predictions, map[string]any{"description": p.Description, "place_id": p.PlaceID})
	}
	status := "OK"
	if len(predictions) == 0 {
		status = "ZERO_RESULTS"
	}
	mapsJSON(w, map[string]any{"status": status, "predictions": predictions})
}

func (f *FakeMaps) handleDetails(w http.ResponseWriter, r *http.Request) {
	f.note("details", r)
	f.mu.Lock()
	failing, places := f.detailsErr, f.places
	f.mu.Unlock()

	if failing {
		mapsJSON(w, map[string]any{"status": "UNKNOWN_ERROR", "error_message": "boom"})
		return
	}
	id := r.URL.Query().Get("placeid")
	if id == "" {
		id = r.URL.Query().Get("place_id")
	}
	for _, p := range places {
		if p.PlaceID != id {
			continue
		}
		result := map[string]any{"place_id": p.PlaceID, "formatted_address": p.FormattedAddress}
		if !p.OmitGeometry {
			result["geometry"] = map[string]any{
				"location": map[string]float64{"lat": p.Lat, "lng": p.Lng},
				"viewport": map[string]any{
					"northeast": map[string]float64{"lat": p.Lat + 0.1, "lng": p.Lng + 0.1},
					"southwest": map[string]float64{"lat": p.Lat - 0.1, "lng": p.Lng - 0.1},
				},
			}
		}
		mapsJSON(w, map[string]any{"status": "OK", "result": result})
		return
	}
	mapsJSON(w, map[string]any{"status": "NOT_FOUND"})
}

func (f *FakeMaps) handleTimezone(w http.ResponseWriter, r *http.Request) {
	f.note("timezone", r)
	f.mu.Lock()
	status, raw, dst := f.timezoneStatus, f.rawOffset, f.dstOffset
	f.mu.Unlock()

	if status != "OK" {
		mapsJSON(w, map[string]any{"status": status})
		return
	}
	mapsJSON(w, map[string]any{
		"status":       "OK",
		"rawOffset":    raw,
		"dstOffset":    dst,
		"timeZoneId":   "Etc/Test",
		"timeZoneName": "Test Time",
	})
}

func mapsJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}
