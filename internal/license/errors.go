package license

import (
	"errors"
	"fmt"
)

// Common license server errors.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("license not found")
	ErrRateLimited  = errors.New("rate limited")
	ErrServerError  = errors.New("server error")
	ErrBadRequest   = errors.New("bad request")
	// ErrMissingKeys is returned when the response lacks a requested KID.
	ErrMissingKeys = errors.New("license response is missing keys")
)

// LicenseError represents an error response from a license server.
type LicenseError struct {
	StatusCode int
	Message    string
}

func (e *LicenseError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("license error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("license error %d", e.StatusCode)
}

// Is implements error matching for LicenseError.
func (e *LicenseError) Is(target error) bool {
	switch e.StatusCode {
	case 401, 403:
		return errors.Is(target, ErrUnauthorized)
	case 404:
		return errors.Is(target, ErrNotFound)
	case 429:
		return errors.Is(target, ErrRateLimited)
	case 400:
		return errors.Is(target, ErrBadRequest)
	}
	if e.StatusCode >= 500 {
		return errors.Is(target, ErrServerError)
	}
	return false
}

// Temporary reports whether the request may succeed if retried.
func (e *LicenseError) Temporary() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// NewLicenseError creates a LicenseError from an HTTP status code.
func NewLicenseError(statusCode int, message string) *LicenseError {
	return &LicenseError{
		StatusCode: statusCode,
		Message:    message,
	}
}
