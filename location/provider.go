package location

import (
	"context"
	"errors"
	"net/http"

	"eaiser/config"
	"eaiser/models"
)

var (
	ErrNoAddressFound = errors.New("No address found for this location")
	ErrLookupFailed   = errors.New("Failed to fetch address details")
	ErrUnavailable    = errors.New("address lookup is unavailable")
)

// ProviderStatus describes whether the map provider can be used.
type ProviderStatus int

const (
	ProviderReady ProviderStatus = iota
	ProviderKeyMissing
	ProviderLoadFailed
)

func (s ProviderStatus) String() string {
	switch s {
	case ProviderReady:
		return "ready"
	case ProviderKeyMissing:
		return "key_missing"
	case ProviderLoadFailed:
		return "load_failed"
	}
	return "unknown"
}

// Message is the warning shown next to the plain address input.
func (s ProviderStatus) Message() string {
	switch s {
	case ProviderKeyMissing:
		return "Google Maps API key is missing. Enter the address manually."
	case ProviderLoadFailed:
		return "Failed to load Google Maps. Enter the address manually."
	}
	return ""
}

// Place is a resolved address.
type Place struct {
	Address     string
	ZipCode     string
	Coordinates models.Coordinates
}

// Suggestion is one autocomplete prediction.
type Suggestion struct {
	Description string `json:"description"`
	PlaceID     string `json:"place_id"`
}

// Provider is a geocoding backend. Reverse returns ErrNoAddressFound on
// zero results.
type Provider interface {
	Name() string
	Reverse(ctx context.Context, c models.Coordinates) (*Place, error)
	Autocomplete(ctx context.Context, input string) ([]Suggestion, error)
	Details(ctx context.Context, s Suggestion) (*Place, error)
}

// NewProvider builds the configured provider and reports its status.
// A nil provider is returned whenever the status is not ProviderReady.
func NewProvider(cfg *config.Config, httpClient *http.Client) (Provider, ProviderStatus) {
	if cfg.Geocoder == config.GeocoderOSM {
		return NewNominatimProvider(NominatimBaseURL, httpClient), ProviderReady
	}
	if !cfg.MapsKeyPresent() {
		return nil, ProviderKeyMissing
	}
	p, err := NewGoogleProvider(cfg.MapsAPIKey, cfg.GeocodeRPS, httpClient)
	if err != nil {
		return nil, ProviderLoadFailed
	}
	return p, ProviderReady
}
