package config

import (
	"reflect"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"BUILD_MODE", "BACKEND_URL", "REQUEST_TIMEOUT", "GOOGLE_MAPS_API_KEY", "GEOCODER",
		"GEOCODE_RPS", "GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_SECRET", "OAUTH_REDIRECT_URL",
		"CAMERA_SNAPSHOT_URL", "HOST", "PORT", "ALLOWED_ORIGINS", "SESSION_TTL", "LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(key, "")
	}
}

func TestBackendURLFollowsBuildMode(t *testing.T) {
	testCases := []struct {
		name     string
		mode     string
		override string
		expected string
	}{
		{
			name:     "Development default",
			mode:     "",
			expected: defaultDevBackendURL,
		},
		{
			name:     "Production default",
			mode:     "production",
			expected: defaultProdBackendURL,
		},
		{
			name:     "Unknown mode is development",
			mode:     "staging",
			expected: defaultDevBackendURL,
		},
		{
			name:     "Explicit URL wins and loses trailing slash",
			mode:     "production",
			override: "https://api.example.org/",
			expected: "https://api.example.org",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("BUILD_MODE", tc.mode)
			t.Setenv("BACKEND_URL", tc.override)

			cfg := FromEnv()
			if cfg.BackendURL != tc.expected {
				t.Errorf("Expected %q, got %q", tc.expected, cfg.BackendURL)
			}
		})
	}
}

func TestOptionalKeys(t *testing.T) {
	clearEnv(t)
	cfg := FromEnv()
	if cfg.MapsKeyPresent() {
		t.Errorf("Expected maps key to be absent")
	}
	if cfg.SocialSignInEnabled() {
		t.Errorf("Expected social sign-in to be disabled")
	}

	t.Setenv("GOOGLE_MAPS_API_KEY", "key")
	t.Setenv("GOOGLE_CLIENT_ID", "client")
	cfg = FromEnv()
	if !cfg.MapsKeyPresent() || !cfg.SocialSignInEnabled() {
		t.Errorf("Expected both optional features enabled, got %+v", cfg)
	}
}

func TestParsedValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("REQUEST_TIMEOUT", "5s")
	t.Setenv("SESSION_TTL", "not-a-duration")
	t.Setenv("GEOCODE_RPS", "0")
	t.Setenv("GEOCODER", "OSM")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example ")

	cfg := FromEnv()
	if cfg.RequestTimeout != 5*time.Second {
		t.Errorf("Expected 5s timeout, got %s", cfg.RequestTimeout)
	}
	if cfg.SessionTTL != 30*time.Minute {
		t.Errorf("Expected default session ttl, got %s", cfg.SessionTTL)
	}
	if cfg.GeocodeRPS != 1 {
		t.Errorf("Expected rps clamped to 1, got %d", cfg.GeocodeRPS)
	}
	if cfg.Geocoder != GeocoderOSM {
		t.Errorf("Expected osm geocoder, got %s", cfg.Geocoder)
	}
	expected := []string{"https://a.example", "https://b.example"}
	if !reflect.DeepEqual(cfg.AllowedOrigins, expected) {
		t.Errorf("Expected %v, got %v", expected, cfg.AllowedOrigins)
	}
}
