package models

type PlaceSuggestion struct {
	Description string `json:"description"`
	PlaceID     string `json:"placeId"`
}
