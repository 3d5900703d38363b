// Package locator turns an input entry into the first-page query for it.
package locator

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/Sternrassler/lookup-reconciler/pkg/client"
	"github.com/Sternrassler/lookup-reconciler/pkg/credential"
	"github.com/Sternrassler/lookup-reconciler/pkg/record"
)

// ErrValidation is matched by every *ValidationError.
var ErrValidation = errors.New("invalid entry")

// ValidationError reports an entry whose primary field is blank.
type ValidationError struct {
	Line  int
	Field string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("line %d: required field %q is blank", e.Line, e.Field)
}

// Is implements errors.Is support.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// AddressFunc builds the endpoint and search parameters for a subject.
// base is the API root without a trailing slash.
type AddressFunc func(base, subject string, entry record.Entry) (string, url.Values)

// Config describes how a module addresses its API.
type Config struct {
	// Field is the entry column holding the primary identifying value.
	Field string

	// BaseURL is the API root.
	BaseURL string

	// Auth carries the scheme and token parameter; the credential is set per query.
	Auth client.Auth

	// PageSizeParam is set to PageSize on every query when non-empty.
	PageSizeParam string
	PageSize      int

	Address AddressFunc
}

// Locator builds first-page queries.
type Locator struct {
	config  Config
	rotator *credential.Rotator
}

// New creates a locator drawing credentials from rotator.
func New(cfg Config, rotator *credential.Rotator) *Locator {
	return &Locator{config: cfg, rotator: rotator}
}

// Locate returns the page-1 query for entry, or a *ValidationError when the
// primary field is blank.
func (l *Locator) Locate(entry record.Entry) (*client.Query, error) {
	subject := entry.Value(l.config.Field)
	if subject == "" {
		return nil, &ValidationError{Line: entry.Line, Field: l.config.Field}
	}

	endpoint, params := l.config.Address(l.config.BaseURL, subject, entry)
	if params == nil {
		params = url.Values{}
	}
	if l.config.PageSizeParam != "" && l.config.PageSize > 0 {
		params.Set(l.config.PageSizeParam, strconv.Itoa(l.config.PageSize))
	}

	return &client.Query{
		URL:         endpoint,
		Auth:        l.config.Auth.WithCredential(l.rotator.Next()),
		Params:      params,
		Passthrough: client.Passthrough{Subject: subject, Page: 1},
	}, nil
}
