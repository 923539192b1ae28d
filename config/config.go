package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/joho/godotenv"
)

const (
	BuildModeDevelopment = "development"
	BuildModeProduction  = "production"

	GeocoderGoogle = "google"
	GeocoderOSM    = "osm"

	defaultDevBackendURL  = "http://localhost:8000"
	defaultProdBackendURL = "https://eaiser-backend.onrender.com"
)

// Config holds all configuration for the reporting gateway and the dev client
type Config struct {
	// Build mode selects the default backend
	BuildMode string

	// Backend configuration
	BackendURL     string
	RequestTimeout time.Duration

	// Maps configuration
	MapsAPIKey string
	Geocoder   string
	GeocodeRPS int

	// OAuth configuration
	OAuthClientID     string
	OAuthClientSecret string
	OAuthRedirectURL  string

	// Camera configuration
	CameraSnapshotURL string

	// Server configuration
	Host           string
	Port           string
	AllowedOrigins []string
	SessionTTL     time.Duration

	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads an optional .env file and then the environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Debugf(".env file not found, using system environment variables")
	}
	return FromEnv()
}

// FromEnv builds the configuration from environment variables only.
func FromEnv() *Config {
	mode := strings.ToLower(getEnv("BUILD_MODE", BuildModeDevelopment))
	if mode != BuildModeProduction {
		mode = BuildModeDevelopment
	}

	cfg := &Config{
		BuildMode:      mode,
		BackendURL:     strings.TrimRight(getEnv("BACKEND_URL", defaultBackendURL(mode)), "/"),
		RequestTimeout: getDurationEnv("REQUEST_TIMEOUT", 60*time.Second),

		MapsAPIKey: getEnv("GOOGLE_MAPS_API_KEY", ""),
		Geocoder:   strings.ToLower(getEnv("GEOCODER", GeocoderGoogle)),
		GeocodeRPS: getIntEnv("GEOCODE_RPS", 5),

		OAuthClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		OAuthClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		OAuthRedirectURL:  getEnv("OAUTH_REDIRECT_URL", "http://localhost:8080/auth/google/callback"),

		CameraSnapshotURL: getEnv("CAMERA_SNAPSHOT_URL", ""),

		Host:           getEnv("HOST", "0.0.0.0"),
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: getStringSliceEnv("ALLOWED_ORIGINS", "*"),
		SessionTTL:     getDurationEnv("SESSION_TTL", 30*time.Minute),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	if cfg.Geocoder != GeocoderOSM {
		cfg.Geocoder = GeocoderGoogle
	}
	if cfg.GeocodeRPS < 1 {
		cfg.GeocodeRPS = 1
	}

	return cfg
}

// SocialSignInEnabled reports whether an OAuth client id is configured.
func (c *Config) SocialSignInEnabled() bool {
	return c.OAuthClientID != ""
}

// MapsKeyPresent reports whether a maps provider key is configured.
func (c *Config) MapsKeyPresent() bool {
	return c.MapsAPIKey != ""
}

func defaultBackendURL(mode string) string {
	if mode == BuildModeProduction {
		return defaultProdBackendURL
	}
	return defaultDevBackendURL
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationEnv gets a duration environment variable or returns a default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		log.Warnf("Invalid duration in %s: %q, using %s", key, value, defaultValue)
	}
	return defaultValue
}

// getIntEnv gets an integer environment variable or returns a default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		log.Warnf("Invalid integer in %s: %q, using %d", key, value, defaultValue)
	}
	return defaultValue
}

// getStringSliceEnv gets a comma-separated string environment variable and returns it as a string slice
func getStringSliceEnv(key, defaultValue string) []string {
	value := getEnv(key, defaultValue)
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
