package server

import (
	"context"
	"errors"
	"net/http"

	"eaiser/authority"
	"eaiser/capture"
	eimage "eaiser/image"
	"eaiser/location"
	"eaiser/models"
	"eaiser/workflow"
)

var badRequestErrors = []error{
	workflow.ErrImageRequired,
	workflow.ErrLocationRequired,
	workflow.ErrReasonRequired,
	workflow.ErrNotEditing,
	workflow.ErrNoReport,
	models.ErrInvalidReport,
	eimage.ErrConversion,
	eimage.ErrEmpty,
	location.ErrInvalidCoordinates,
	authority.ErrEmptySelection,
	authority.ErrNoIssue,
	capture.ErrNotStarted,
}

var conflictErrors = []error{
	workflow.ErrBusy,
	workflow.ErrWrongStep,
	workflow.ErrStale,
	capture.ErrAlreadyStarted,
}

// statusFor maps domain errors to HTTP status codes. Anything unknown came
// from the backend or the network.
func statusFor(err error) int {
	var failure *workflow.Failure
	switch {
	case errors.As(err, &failure):
		return http.StatusUnprocessableEntity
	case errors.Is(err, eimage.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, eimage.ErrUnsupported):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, location.ErrNoAddressFound):
		return http.StatusNotFound
	case errors.Is(err, location.ErrUnavailable),
		errors.Is(err, location.ErrLocationUnavailable),
		errors.Is(err, capture.ErrNoCamera):
		return http.StatusServiceUnavailable
	case errors.Is(err, capture.ErrPermissionDenied),
		errors.Is(err, location.ErrLocationDenied):
		return http.StatusForbidden
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	for _, e := range conflictErrors {
		if errors.Is(err, e) {
			return http.StatusConflict
		}
	}
	for _, e := range badRequestErrors {
		if errors.Is(err, e) {
			return http.StatusBadRequest
		}
	}
	return http.StatusBadGateway
}
