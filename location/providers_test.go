package location

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"eaiser/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"googlemaps.github.io/maps"
)

func TestNominatimReverse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reverse", r.URL.Path)
		assert.Equal(t, UserAgent, r.Header.Get("User-Agent"))
		if r.URL.Query().Get("lat") == "0.0000000" {
			w.Write([]byte(`{"error":"Unable to geocode"}`))
			return
		}
		w.Write([]byte(`{
			"place_id": 1,
			"lat": "40.7128",
			"lon": "-74.006",
			"display_name": "1 Main St, New York, NY 10001",
			"address": {"house_number": "1", "road": "Main St", "city": "New York", "postcode": "10001"}
		}`))
	}))
	defer server.Close()

	p := NewNominatimProvider(server.URL, server.Client())
	place, err := p.Reverse(context.Background(), models.Coordinates{Lat: 40.7128, Lng: -74.006})
	require.NoError(t, err)
	assert.Equal(t, "1 Main St, New York, NY 10001", place.Address)
	assert.Equal(t, "10001", place.ZipCode)

	_, err = p.Reverse(context.Background(), models.Coordinates{})
	assert.ErrorIs(t, err, ErrNoAddressFound)
}

func TestNominatimSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "city hall", r.URL.Query().Get("q"))
		json.NewEncoder(w).Encode([]map[string]interface{}{
			{"place_id": 7, "lat": "34.05", "lon": "-118.24", "display_name": "City Hall, Los Angeles",
				"address": map[string]string{"postcode": "90012"}},
		})
	}))
	defer server.Close()

	p := NewNominatimProvider(server.URL, server.Client())
	suggestions, err := p.Autocomplete(context.Background(), "city hall")
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, "7", suggestions[0].PlaceID)

	// Details searches again; the limiter lets the second call through after a second
	place, err := p.Details(context.Background(), Suggestion{Description: "city hall"})
	require.NoError(t, err)
	assert.Equal(t, "90012", place.ZipCode)
	assert.InDelta(t, 34.05, place.Coordinates.Lat, 1e-9)
}

func TestNominatimStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer server.Close()

	p := NewNominatimProvider(server.URL, server.Client())
	_, err := p.Reverse(context.Background(), models.Coordinates{Lat: 1, Lng: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestGoogleReverse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/maps/api/geocode/json", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("latlng") == "0,0" {
			w.Write([]byte(`{"results": [], "status": "ZERO_RESULTS"}`))
			return
		}
		w.Write([]byte(`{
			"status": "OK",
			"results": [{
				"formatted_address": "1 Main St, New York, NY 10001, USA",
				"address_components": [
					{"long_name": "New York", "short_name": "NY", "types": ["locality"]},
					{"long_name": "10001", "short_name": "10001", "types": ["postal_code"]}
				],
				"geometry": {"location": {"lat": 40.7128, "lng": -74.006}}
			}]
		}`))
	}))
	defer server.Close()

	p, err := NewGoogleProvider("AIzaTest", 0, server.Client(), maps.WithBaseURL(server.URL))
	require.NoError(t, err)

	place, err := p.Reverse(context.Background(), models.Coordinates{Lat: 40.7128, Lng: -74.006})
	require.NoError(t, err)
	assert.Equal(t, "1 Main St, New York, NY 10001, USA", place.Address)
	assert.Equal(t, "10001", place.ZipCode)

	_, err = p.Reverse(context.Background(), models.Coordinates{})
	assert.ErrorIs(t, err, ErrNoAddressFound)
}

func TestGoogleProviderRequiresKey(t *testing.T) {
	_, err := NewGoogleProvider("", 0, nil)
	assert.Error(t, err)
}
