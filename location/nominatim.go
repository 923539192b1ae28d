package location

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"eaiser/models"

	"golang.org/x/time/rate"
)

const (
	// NominatimBaseURL is the public Nominatim API endpoint
	NominatimBaseURL = "https://nominatim.openstreetmap.org"
	// UserAgent is required by Nominatim usage policy
	UserAgent = "Eaiser/1.0"
	// Nominatim allows one request per second
	minRequestInterval = time.Second
	maxSuggestions     = 5
)

// NominatimProvider geocodes against OpenStreetMap Nominatim
type NominatimProvider struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewNominatimProvider(baseURL string, httpClient *http.Client) *NominatimProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &NominatimProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Every(minRequestInterval), 1),
	}
}

// nominatimPlace is one search or reverse result
type nominatimPlace struct {
	PlaceID     int              `json:"place_id"`
	Lat         string           `json:"lat"`
	Lon         string           `json:"lon"`
	DisplayName string           `json:"display_name"`
	Address     nominatimAddress `json:"address"`
	Error       string           `json:"error"`
}

type nominatimAddress struct {
	HouseNumber string `json:"house_number"`
	Road        string `json:"road"`
	City        string `json:"city"`
	Town        string `json:"town"`
	Village     string `json:"village"`
	State       string `json:"state"`
	PostCode    string `json:"postcode"`
}

func (p *NominatimProvider) Name() string { return "osm" }

// Reverse performs reverse geocoding of a coordinate pair
func (p *NominatimProvider) Reverse(ctx context.Context, c models.Coordinates) (*Place, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(c.Lat, 'f', 7, 64))
	params.Set("lon", strconv.FormatFloat(c.Lng, 'f', 7, 64))
	params.Set("format", "jsonv2")
	params.Set("addressdetails", "1")
	params.Set("zoom", "18") // Building-level detail

	var place nominatimPlace
	if err := p.get(ctx, "/reverse", params, &place); err != nil {
		return nil, err
	}
	// Nominatim answers 200 with an error field when nothing is found
	if place.Error != "" || place.address() == "" {
		return nil, ErrNoAddressFound
	}

	out := place.toPlace()
	out.Coordinates = c
	return out, nil
}

func (p *NominatimProvider) Autocomplete(ctx context.Context, input string) ([]Suggestion, error) {
	places, err := p.search(ctx, input, maxSuggestions)
	if err != nil {
		return nil, err
	}
	out := make([]Suggestion, 0, len(places))
	for _, place := range places {
		out = append(out, Suggestion{
			Description: place.DisplayName,
			PlaceID:     strconv.Itoa(place.PlaceID),
		})
	}
	return out, nil
}

// Details searches the suggestion text again; Nominatim has no stable
// lookup by place id across instances.
func (p *NominatimProvider) Details(ctx context.Context, s Suggestion) (*Place, error) {
	places, err := p.search(ctx, s.Description, 1)
	if err != nil {
		return nil, err
	}
	if len(places) == 0 {
		return nil, ErrNoAddressFound
	}
	return places[0].toPlace(), nil
}

func (p *NominatimProvider) search(ctx context.Context, q string, limit int) ([]nominatimPlace, error) {
	params := url.Values{}
	params.Set("q", q)
	params.Set("format", "jsonv2")
	params.Set("addressdetails", "1")
	params.Set("limit", strconv.Itoa(limit))

	var places []nominatimPlace
	if err := p.get(ctx, "/search", params, &places); err != nil {
		return nil, err
	}
	return places, nil
}

func (p *NominatimProvider) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	reqURL := fmt.Sprintf("%s%s?%s", p.baseURL, path, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("nominatim returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (n *nominatimPlace) toPlace() *Place {
	lat, _ := strconv.ParseFloat(n.Lat, 64)
	lng, _ := strconv.ParseFloat(n.Lon, 64)
	return &Place{
		Address:     n.address(),
		ZipCode:     strings.TrimSpace(n.Address.PostCode),
		Coordinates: models.Coordinates{Lat: lat, Lng: lng},
	}
}

// address prefers the display name and falls back to the structured parts
func (n *nominatimPlace) address() string {
	if n.DisplayName != "" {
		return n.DisplayName
	}
	street := strings.TrimSpace(n.Address.HouseNumber + " " + n.Address.Road)
	var parts []string
	for _, part := range []string{street, firstNonEmpty(n.Address.City, n.Address.Town, n.Address.Village), n.Address.State} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, ", ")
}

// firstNonEmpty returns the first non-empty string from the arguments
func firstNonEmpty(strs ...string) string {
	for _, s := range strs {
		if s != "" {
			return s
		}
	}
	return ""
}
