package adapter

import "errors"

// Transport errors. HTTP statuses are mapped onto them by mapHTTPError so
// callers can match with [errors.Is].
var (
	ErrBadRequest          = errors.New("bad request")
	ErrUnauthorized        = errors.New("client unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrTooManyRequests     = errors.New("too many requests")
	ErrInternalServerError = errors.New("internal server error")
	ErrBadGateway          = errors.New("bad gateway")
	ErrServiceUnavailable  = errors.New("service unavailable")

	// ErrTransport wraps failures below HTTP: DNS, refused connections,
	// timeouts, cancelled contexts.
	ErrTransport = errors.New("transport failure")

	// ErrDecodeResponse is returned when a 2xx body is not the expected JSON.
	ErrDecodeResponse = errors.New("unexpected response body")

	// ErrInvalidServerURL is returned for URLs without scheme or host.
	ErrInvalidServerURL = errors.New("invalid server url")
)
