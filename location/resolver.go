package location

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"eaiser/metrics"
	"eaiser/models"

	"github.com/apex/log"
	"golang.org/x/time/rate"
)

// Pin moves shorter than this keep the previously resolved address.
const minPinMoveMeters = 1.0

var ErrInvalidCoordinates = errors.New("invalid coordinates")

// Record is the normalized location handed to the caller.
type Record struct {
	Address     string              `json:"address"`
	ZipCode     string              `json:"zip_code"`
	Coordinates *models.Coordinates `json:"coordinates,omitempty"`
}

type ResolverOption func(*Resolver)

func WithLocator(l DeviceLocator) ResolverOption {
	return func(r *Resolver) { r.locator = l }
}

// WithRateLimit caps provider calls per second.
func WithRateLimit(rps int) ResolverOption {
	return func(r *Resolver) {
		if rps > 0 {
			r.limiter = rate.NewLimiter(rate.Limit(rps), rps)
		}
	}
}

// Resolver turns typed text, pin drops and device fixes into a Record and
// reports every change through the callback.
type Resolver struct {
	provider Provider
	status   ProviderStatus
	locator  DeviceLocator
	limiter  *rate.Limiter
	onChange func(Record)

	mu       sync.Mutex
	record   Record
	resolved *models.Coordinates
	// derived is set while address and zip come from a lookup rather than
	// from typing.
	derived bool
}

func NewResolver(provider Provider, status ProviderStatus, onChange func(Record), opts ...ResolverOption) *Resolver {
	if provider == nil && status == ProviderReady {
		status = ProviderKeyMissing
	}
	r := &Resolver{
		provider: provider,
		status:   status,
		onChange: onChange,
		limiter:  rate.NewLimiter(rate.Inf, 0),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) Status() ProviderStatus {
	return r.status
}

func (r *Resolver) Record() Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.copyRecord()
}

// Clear forgets the current record without notifying.
func (r *Resolver) Clear() {
	r.mu.Lock()
	r.record = Record{}
	r.resolved = nil
	r.derived = false
	r.mu.Unlock()
}

// SetAddressText records a typed address and notifies immediately.
func (r *Resolver) SetAddressText(text string) {
	r.update(func(rec *Record) {
		rec.Address = text
		r.derived = false
	})
}

func (r *Resolver) SetZipText(zip string) {
	r.update(func(rec *Record) {
		rec.ZipCode = strings.TrimSpace(zip)
		r.derived = false
	})
}

// SetCoordinates records a position without looking it up.
func (r *Resolver) SetCoordinates(lat, lng float64) error {
	coords := models.Coordinates{Lat: lat, Lng: lng}
	if !coords.Valid() {
		return ErrInvalidCoordinates
	}
	r.update(func(rec *Record) { rec.Coordinates = &coords })
	return nil
}

// Suggest returns autocomplete predictions for the typed text.
func (r *Resolver) Suggest(ctx context.Context, text string) ([]Suggestion, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	if err := r.available(); err != nil {
		return nil, err
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	suggestions, err := r.provider.Autocomplete(ctx, text)
	r.observe("autocomplete", err)
	if err != nil {
		log.Warnf("Autocomplete for %q failed: %v", text, err)
		return nil, ErrLookupFailed
	}
	return suggestions, nil
}

// Select resolves a chosen suggestion into the record.
func (r *Resolver) Select(ctx context.Context, s Suggestion) (Record, error) {
	if err := r.available(); err != nil {
		r.SetAddressText(s.Description)
		return r.Record(), err
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return r.Record(), err
	}

	place, err := r.provider.Details(ctx, s)
	r.observe("details", err)
	if err != nil {
		r.SetAddressText(s.Description)
		return r.Record(), r.lookupError("details", err)
	}

	coords := place.Coordinates
	r.update(func(rec *Record) {
		rec.Address = place.Address
		rec.ZipCode = place.ZipCode
		rec.Coordinates = &coords
	})
	r.mu.Lock()
	r.resolved = &coords
	r.mu.Unlock()
	return r.Record(), nil
}

// DropPin reverse geocodes a pin position. The coordinates are reported even
// when the lookup fails.
func (r *Resolver) DropPin(ctx context.Context, lat, lng float64) (Record, error) {
	coords := models.Coordinates{Lat: lat, Lng: lng}
	if !coords.Valid() {
		return r.Record(), ErrInvalidCoordinates
	}

	r.mu.Lock()
	unchanged := r.resolved != nil && r.resolved.DistanceMeters(coords) < minPinMoveMeters
	r.mu.Unlock()
	if unchanged {
		log.Debugf("Pin moved less than %.0fm, keeping address", minPinMoveMeters)
		r.update(func(rec *Record) { rec.Coordinates = &coords })
		return r.Record(), nil
	}

	if err := r.available(); err != nil {
		r.unresolvedPin(coords)
		return r.Record(), err
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return r.Record(), err
	}

	place, err := r.provider.Reverse(ctx, coords)
	r.observe("reverse", err)
	if err != nil {
		r.unresolvedPin(coords)
		return r.Record(), r.lookupError("reverse", err)
	}

	r.update(func(rec *Record) {
		rec.Address = place.Address
		if place.ZipCode != "" {
			rec.ZipCode = place.ZipCode
		}
		rec.Coordinates = &coords
		r.derived = true
	})
	r.mu.Lock()
	r.resolved = &coords
	r.mu.Unlock()
	return r.Record(), nil
}

// unresolvedPin records a pin whose address is unknown. An address looked
// up for an earlier pin is dropped; typed text is kept.
func (r *Resolver) unresolvedPin(coords models.Coordinates) {
	r.update(func(rec *Record) {
		if r.derived {
			rec.Address = ""
			rec.ZipCode = ""
			r.derived = false
		}
		rec.Coordinates = &coords
	})
	r.mu.Lock()
	r.resolved = nil
	r.mu.Unlock()
}

// UseCurrentLocation asks the device for a fix and resolves it like a pin.
func (r *Resolver) UseCurrentLocation(ctx context.Context) (Record, error) {
	if r.locator == nil {
		return r.Record(), ErrLocationUnavailable
	}
	coords, err := r.locator.Locate(ctx)
	if err != nil {
		log.Warnf("Device location failed: %v", err)
		if errors.Is(err, ErrLocationDenied) {
			return r.Record(), ErrLocationDenied
		}
		return r.Record(), ErrLocationUnavailable
	}
	return r.DropPin(ctx, coords.Lat, coords.Lng)
}

func (r *Resolver) available() error {
	if r.status != ProviderReady || r.provider == nil {
		return fmt.Errorf("%w: %s", ErrUnavailable, r.status.Message())
	}
	return nil
}

func (r *Resolver) lookupError(kind string, err error) error {
	if errors.Is(err, ErrNoAddressFound) {
		return ErrNoAddressFound
	}
	log.Errorf("%s lookup via %s failed: %v", kind, r.provider.Name(), err)
	return ErrLookupFailed
}

func (r *Resolver) observe(kind string, err error) {
	result := metrics.Result(err)
	if errors.Is(err, ErrNoAddressFound) {
		result = "not_found"
	}
	metrics.GeocodeLookupsTotal.WithLabelValues(r.provider.Name(), kind, result).Inc()
}

func (r *Resolver) update(fn func(*Record)) {
	r.mu.Lock()
	fn(&r.record)
	rec := r.copyRecord()
	r.mu.Unlock()

	if r.onChange != nil {
		r.onChange(rec)
	}
}

func (r *Resolver) copyRecord() Record {
	rec := r.record
	if rec.Coordinates != nil {
		c := *rec.Coordinates
		rec.Coordinates = &c
	}
	return rec
}
