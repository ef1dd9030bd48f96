package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidAPIKey    = errors.New("invalid API key")
	ErrLocationNotFound = errors.New("location not found")
	ErrQuotaExceeded    = errors.New("quota exceeded")
)

// WeatherAPI.com error codes carried in the error body.
const (
	providerCodeKeyMissing       = 1002
	providerCodeLocationNotFound = 1006
	providerCodeKeyInvalid       = 2006
	providerCodeQuotaExceeded    = 2007
	providerCodeKeyDisabled      = 2008
)

// TransportError means the request never produced an HTTP response
// (DNS, connection refused, timeout, cancellation).
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "forecast transport: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// APIError is a non-200 response from the weather provider.
type APIError struct {
	StatusCode   int
	ProviderCode int    // 0 when the body carried no error object
	Message      string // provider message, may be empty
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("forecast API: HTTP %d (code %d): %s", e.StatusCode, e.ProviderCode, e.Message)
	}
	return fmt.Sprintf("forecast API: HTTP %d", e.StatusCode)
}

// Is lets errors.Is match the sentinel errors against provider responses.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrInvalidAPIKey:
		switch e.ProviderCode {
		case providerCodeKeyMissing, providerCodeKeyInvalid, providerCodeKeyDisabled:
			return true
		}
		return e.StatusCode == http.StatusUnauthorized ||
			(e.StatusCode == http.StatusForbidden && e.ProviderCode != providerCodeQuotaExceeded)
	case ErrLocationNotFound:
		return e.ProviderCode == providerCodeLocationNotFound
	case ErrQuotaExceeded:
		return e.ProviderCode == providerCodeQuotaExceeded
	}
	return false
}

// ParseError means the provider answered 200 with a payload of unexpected shape.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return "parse forecast response: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error { return e.Err }
