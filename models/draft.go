package models

import (
	"sort"
	"strings"

	"github.com/golang/geo/s2"
)

// Coordinates in degrees.
type Coordinates struct {
	Lat float64 `json:"latitude"`
	Lng float64 `json:"longitude"`
}

func (c Coordinates) LatLng() s2.LatLng {
	return s2.LatLngFromDegrees(c.Lat, c.Lng)
}

// Valid reports whether the point is a real position on the globe.
func (c Coordinates) Valid() bool {
	return c.LatLng().IsValid()
}

// DistanceMeters is the great-circle distance between two points.
func (c Coordinates) DistanceMeters(o Coordinates) float64 {
	return c.LatLng().Distance(o.LatLng()).Radians() * EarthRadiusMeters
}

const EarthRadiusMeters = 6371010.0

// Draft is the in-memory submission assembled by one wizard pass.
type Draft struct {
	Image       []byte
	ImageName   string
	ImageType   string
	Address     string
	ZipCode     string
	Coordinates *Coordinates
}

func (d *Draft) HasImage() bool {
	return len(d.Image) > 0
}

// HasLocation reports whether at least one of address, zip code or
// coordinates is present.
func (d *Draft) HasLocation() bool {
	return strings.TrimSpace(d.Address) != "" ||
		strings.TrimSpace(d.ZipCode) != "" ||
		d.Coordinates != nil
}

func (d *Draft) ClearImage() {
	d.Image = nil
	d.ImageName = ""
	d.ImageType = ""
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
