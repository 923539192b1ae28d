package location

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"eaiser/models"

	"googlemaps.github.io/maps"
)

type GoogleProvider struct {
	client *maps.Client
}

func NewGoogleProvider(apiKey string, rps int, httpClient *http.Client, opts ...maps.ClientOption) (*GoogleProvider, error) {
	options := []maps.ClientOption{maps.WithAPIKey(apiKey)}
	if rps > 0 {
		options = append(options, maps.WithRateLimit(rps))
	}
	if httpClient != nil {
		options = append(options, maps.WithHTTPClient(httpClient))
	}
	options = append(options, opts...)

	c, err := maps.NewClient(options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &GoogleProvider{client: c}, nil
}

func (p *GoogleProvider) Name() string { return "google" }

func (p *GoogleProvider) Reverse(ctx context.Context, c models.Coordinates) (*Place, error) {
	results, err := p.client.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng: &maps.LatLng{Lat: c.Lat, Lng: c.Lng},
	})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, ErrNoAddressFound
	}
	return &Place{
		Address:     results[0].FormattedAddress,
		ZipCode:     postalCode(results[0].AddressComponents),
		Coordinates: c,
	}, nil
}

func (p *GoogleProvider) Autocomplete(ctx context.Context, input string) ([]Suggestion, error) {
	resp, err := p.client.PlaceAutocomplete(ctx, &maps.PlaceAutocompleteRequest{Input: input})
	if err != nil {
		return nil, err
	}
	out := make([]Suggestion, 0, len(resp.Predictions))
	for _, pred := range resp.Predictions {
		out = append(out, Suggestion{Description: pred.Description, PlaceID: pred.PlaceID})
	}
	return out, nil
}

// Details resolves a suggestion. Suggestions without a place id are geocoded
// by their description.
func (p *GoogleProvider) Details(ctx context.Context, s Suggestion) (*Place, error) {
	if s.PlaceID == "" {
		results, err := p.client.Geocode(ctx, &maps.GeocodingRequest{Address: s.Description})
		if err != nil {
			return nil, err
		}
		if len(results) == 0 {
			return nil, ErrNoAddressFound
		}
		r := results[0]
		return &Place{
			Address:     r.FormattedAddress,
			ZipCode:     postalCode(r.AddressComponents),
			Coordinates: models.Coordinates{Lat: r.Geometry.Location.Lat, Lng: r.Geometry.Location.Lng},
		}, nil
	}

	r, err := p.client.PlaceDetails(ctx, &maps.PlaceDetailsRequest{
		PlaceID: s.PlaceID,
		Fields: []maps.PlaceDetailsFieldMask{
			maps.PlaceDetailsFieldMaskFormattedAddress,
			maps.PlaceDetailsFieldMaskAddressComponent,
			maps.PlaceDetailsFieldMaskGeometry,
		},
	})
	if err != nil {
		return nil, err
	}
	address := r.FormattedAddress
	if address == "" {
		address = s.Description
	}
	return &Place{
		Address:     address,
		ZipCode:     postalCode(r.AddressComponents),
		Coordinates: models.Coordinates{Lat: r.Geometry.Location.Lat, Lng: r.Geometry.Location.Lng},
	}, nil
}

func postalCode(components []maps.AddressComponent) string {
	for _, c := range components {
		for _, t := range c.Types {
			if t == "postal_code" {
				return strings.TrimSpace(c.LongName)
			}
		}
	}
	return ""
}
