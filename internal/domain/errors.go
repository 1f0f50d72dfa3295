package domain

import (
	"errors"
)

// ErrCityRequired is reported when a query carries no city.
var ErrCityRequired = errors.New("city is required")

// InputError rejects a record before any external call is made.
type InputError struct {
	Err error
}

func (e *InputError) Error() string { return e.Err.Error() }
func (e *InputError) Unwrap() error { return e.Err }

// FetchError wraps a transport failure talking to the weather provider.
type FetchError struct {
	City string
	Err  error
}

func (e *FetchError) Error() string { return e.Err.Error() }
func (e *FetchError) Unwrap() error { return e.Err }

// ShapeError reports a provider payload without the expected blocks.
// Payload is the compact JSON the provider returned.
type ShapeError struct {
	Payload string
}

func (e *ShapeError) Error() string {
	return "unexpected API structure: " + e.Payload
}

// StoreError wraps a persistence failure.
type StoreError struct {
	City string
	Err  error
}

func (e *StoreError) Error() string { return e.Err.Error() }
func (e *StoreError) Unwrap() error { return e.Err }

// FailureKind names the error class for metrics and logs.
func FailureKind(err error) string {
	var (
		inputErr *InputError
		fetchErr *FetchError
		shapeErr *ShapeError
		storeErr *StoreError
	)
	switch {
	case errors.As(err, &inputErr):
		return "input"
	case errors.As(err, &fetchErr):
		return "fetch"
	case errors.As(err, &shapeErr):
		return "shape"
	case errors.As(err, &storeErr):
		return "store"
	default:
		return "unknown"
	}
}
