package license

import (
	"errors"
	"fmt"
)

// License errors (sentinels, match with errors.Is)
var (
	ErrKeyNotFound   = errors.New("license key not found")
	ErrScopeMismatch = errors.New("license scope mismatch")
	ErrExpired       = errors.New("license expired")
	ErrInUse         = errors.New("license in use by another client")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrInvalidInput  = errors.New("invalid input")
	ErrKeyConflict   = errors.New("license key conflict")

	// ErrKeyTooShort is returned for custom keys below MinCustomKeyLength.
	ErrKeyTooShort = fmt.Errorf("%w: license key too short", ErrInvalidInput)

	// ErrStoreUnavailable marks persistence failures. It is the only error
	// class that represents a service fault rather than a declined operation.
	ErrStoreUnavailable = errors.New("license store unavailable")
)

// StoreError wraps a backend failure so that it matches ErrStoreUnavailable
// while keeping the underlying cause reachable through errors.Unwrap.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("license store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() []error {
	return []error{ErrStoreUnavailable, e.Err}
}

// NewStoreError wraps err for the named store operation. A nil err yields nil.
func NewStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

// IsDenial reports whether err is an expected business outcome rather than a
// service failure.
func IsDenial(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrStoreUnavailable):
		return false
	case errors.Is(err, ErrKeyNotFound),
		errors.Is(err, ErrScopeMismatch),
		errors.Is(err, ErrExpired),
		errors.Is(err, ErrInUse),
		errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrKeyConflict):
		return true
	default:
		return false
	}
}
