// Package matcher filters remote candidates against an entry and maps the
// survivors onto a module's output schema.
package matcher

import (
	"errors"
	"fmt"

	"github.com/Sternrassler/lookup-reconciler/pkg/client"
	"github.com/Sternrassler/lookup-reconciler/pkg/record"
)

// NoMatchPolicy selects what happens when no candidate survives.
type NoMatchPolicy int

const (
	// NoMatchEmpty returns no rows and no error.
	NoMatchEmpty NoMatchPolicy = iota

	// NoMatchFail returns a *NoMatchError.
	NoMatchFail
)

// String implements fmt.Stringer.
func (p NoMatchPolicy) String() string {
	switch p {
	case NoMatchFail:
		return "error"
	default:
		return "empty"
	}
}

// ErrNoMatch is matched by every *NoMatchError.
var ErrNoMatch = errors.New("no match found")

// NoMatchError reports an entry for which no candidate survived.
type NoMatchError struct {
	Line    int
	Subject string
}

// Error implements the error interface.
func (e *NoMatchError) Error() string {
	return fmt.Sprintf("no match found for %q", e.Subject)
}

// Is implements errors.Is support.
func (e *NoMatchError) Is(target error) bool {
	return target == ErrNoMatch
}

// DecodeError reports a page body that could not be turned into candidates.
type DecodeError struct {
	Subject string
	Page    int
	Err     error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("could not read results for %q (page %d): %v", e.Subject, e.Page, e.Err)
}

// Unwrap implements error unwrapping.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Config selects which predicates apply.
type Config struct {
	// NameField is the entry column compared against candidate names.
	NameField string

	// DateOfBirthField enables the date-of-birth predicate when set.
	DateOfBirthField string

	ExactName     bool
	FirstLastName bool

	NoMatch NoMatchPolicy
}

// Predicates builds the ordered predicate list for cfg.
func Predicates(cfg Config) []Predicate {
	var out []Predicate
	if cfg.DateOfBirthField != "" {
		out = append(out, DateOfBirth(cfg.DateOfBirthField))
	}
	if cfg.ExactName && cfg.NameField != "" {
		out = append(out, ExactName(cfg.NameField))
	}
	if cfg.FirstLastName && cfg.NameField != "" {
		out = append(out, FirstLastName(cfg.NameField))
	}
	return out
}

// Matcher applies a fixed predicate list and schema.
type Matcher struct {
	config     Config
	predicates []Predicate
	decoder    Decoder
	schema     record.Schema
}

// New builds a matcher. Predicates are fixed at construction.
func New(cfg Config, decoder Decoder, schema record.Schema) *Matcher {
	return &Matcher{
		config:     cfg,
		predicates: Predicates(cfg),
		decoder:    decoder,
		schema:     schema,
	}
}

// Predicates returns the names of the active predicates in evaluation order.
func (m *Matcher) Predicates() []string {
	names := make([]string, len(m.predicates))
	for i, p := range m.predicates {
		names[i] = p.Name
	}
	return names
}

// Accept reports whether c passes every predicate.
func (m *Matcher) Accept(entry record.Entry, c Candidate) bool {
	for _, p := range m.predicates {
		if !p.Match(entry, c) {
			return false
		}
	}
	return true
}

// Match decodes every page and returns one row per surviving candidate, in
// page then item order.
func (m *Matcher) Match(entry record.Entry, pages []*client.Response) ([]record.Row, error) {
	var rows []record.Row
	subject := ""

	for _, page := range pages {
		if page == nil {
			continue
		}
		subject = page.Passthrough.Subject

		candidates, err := m.decoder.Candidates(page.Data)
		if err != nil {
			return nil, &DecodeError{Subject: subject, Page: page.Passthrough.Page, Err: err}
		}

		for _, c := range candidates {
			if m.Accept(entry, c) {
				rows = append(rows, m.schema.Conform(c.Fields))
			}
		}
	}

	if len(rows) == 0 && m.config.NoMatch == NoMatchFail {
		return nil, &NoMatchError{Line: entry.Line, Subject: subject}
	}
	return rows, nil
}
