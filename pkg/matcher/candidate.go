package matcher

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Candidate is one item from a remote result set.
type Candidate struct {
	ID       string
	Name     string
	Address  string
	Position string

	BirthYear  *int
	BirthMonth *int
	BirthDay   *int

	// Fields are the output column values for this candidate.
	Fields map[string]any
}

// BirthDate joins the present birth date components with "-" ("1980-5").
// It returns nil when no component is known.
func (c Candidate) BirthDate() any {
	var parts []string
	for _, p := range []*int{c.BirthYear, c.BirthMonth, c.BirthDay} {
		if p != nil {
			parts = append(parts, strconv.Itoa(*p))
		}
	}
	if len(parts) == 0 {
		return nil
	}
	return strings.Join(parts, "-")
}

// Decoder extracts candidates from one page body.
type Decoder interface {
	Candidates(data json.RawMessage) ([]Candidate, error)
}

// DecoderFunc adapts a function to Decoder.
type DecoderFunc func(data json.RawMessage) ([]Candidate, error)

// Candidates implements Decoder.
func (f DecoderFunc) Candidates(data json.RawMessage) ([]Candidate, error) {
	return f(data)
}

// OrNil returns s, or nil when s is blank, for use in output columns.
func OrNil(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

// IntPtr returns a pointer to v, or nil when v is zero.
func IntPtr(v int) *int {
	if v == 0 {
		return nil
	}
	return &v
}
