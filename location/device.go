package location

import (
	"context"
	"errors"

	"eaiser/models"
)

var (
	ErrLocationDenied      = errors.New("Location access was denied. Enter the address manually.")
	ErrLocationUnavailable = errors.New("Current location is unavailable. Enter the address manually.")
)

// DeviceLocator provides a position fix from the device.
type DeviceLocator interface {
	Locate(ctx context.Context) (models.Coordinates, error)
}

// StaticLocator always reports the same fix, e.g. coordinates passed on the
// command line or reported by a browser.
type StaticLocator struct {
	Coordinates models.Coordinates
}

func (l StaticLocator) Locate(ctx context.Context) (models.Coordinates, error) {
	if err := ctx.Err(); err != nil {
		return models.Coordinates{}, err
	}
	if !l.Coordinates.Valid() {
		return models.Coordinates{}, ErrLocationUnavailable
	}
	return l.Coordinates, nil
}

// LocatorFunc adapts a function to DeviceLocator.
type LocatorFunc func(ctx context.Context) (models.Coordinates, error)

func (f LocatorFunc) Locate(ctx context.Context) (models.Coordinates, error) {
	return f(ctx)
}
