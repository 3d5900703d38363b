package client

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is checks.
var (
	// ErrRateLimitExceeded is fatal to a run: slow down or add credentials.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrInvalidCredential is fatal to a run: a credential was rejected.
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrRemoteClient marks a per-call failure that only drops that call's result.
	ErrRemoteClient = errors.New("remote request failed")

	// ErrTransport is fatal to a run: the remote service could not be reached.
	ErrTransport = errors.New("transport failure")
)

// RateLimitError is returned on HTTP 429, or before sending when the
// credential is already known to be exhausted.
type RateLimitError struct {
	Credential string
	Subject    string
	Page       int

	// Local is true when the request was refused without being sent.
	Local bool
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	if e.Local {
		return fmt.Sprintf("rate limit exceeded: credential %s has no quota left (refused %q page %d)",
			e.Credential, e.Subject, e.Page)
	}
	return fmt.Sprintf("rate limit exceeded on credential %s while searching for %q (page %d)",
		e.Credential, e.Subject, e.Page)
}

// Is implements errors.Is support.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimitExceeded
}

// InvalidCredentialError is returned on HTTP 401.
type InvalidCredentialError struct {
	Credential string
}

// Error implements the error interface.
func (e *InvalidCredentialError) Error() string {
	return fmt.Sprintf("invalid credential: %s", e.Credential)
}

// Is implements errors.Is support.
func (e *InvalidCredentialError) Is(target error) bool {
	return target == ErrInvalidCredential
}

// RemoteClientError is returned for any other failing status, or an undecodable body.
type RemoteClientError struct {
	StatusCode int
	Subject    string
	Page       int
	Message    string
}

// Error implements the error interface.
func (e *RemoteClientError) Error() string {
	return fmt.Sprintf("received status %d while searching for %q (page %d): %s",
		e.StatusCode, e.Subject, e.Page, e.Message)
}

// Is implements errors.Is support.
func (e *RemoteClientError) Is(target error) bool {
	return target == ErrRemoteClient
}

// TransportError wraps a failure to complete the HTTP exchange.
type TransportError struct {
	URL string
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// IsFatal reports whether err must abort the whole run rather than one call.
func IsFatal(err error) bool {
	return err != nil && !errors.Is(err, ErrRemoteClient)
}
