// Package credential hands out API credentials round-robin so request volume
// is spread across every configured key.
package credential

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
)

var (
	// ErrNoCredentials is returned when a rotator is built from an empty set.
	ErrNoCredentials = errors.New("at least one credential is required")

	// ErrDuplicateName is returned when two credentials share a name.
	ErrDuplicateName = errors.New("duplicate credential name")
)

// Credential is one API key, optionally paired with a secret.
type Credential struct {
	// Name identifies the credential in logs and errors. It never contains the full key.
	Name string

	// Key is the API key (basic auth username or token value).
	Key string

	// Secret is the basic auth password. Most lookup APIs leave it empty.
	Secret string
}

// String implements fmt.Stringer without leaking the key.
func (c Credential) String() string {
	return c.Name
}

// Parse reads a credential from "name:key", "name:key:secret" or a bare "key".
// A bare key is named after its masked form.
func Parse(s string) (Credential, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Credential{}, fmt.Errorf("empty credential")
	}

	parts := strings.SplitN(s, ":", 3)
	switch len(parts) {
	case 1:
		return Credential{Name: Mask(parts[0]), Key: parts[0]}, nil
	case 2:
		if parts[1] == "" {
			return Credential{}, fmt.Errorf("credential %q has no key", parts[0])
		}
		return Credential{Name: parts[0], Key: parts[1]}, nil
	default:
		if parts[1] == "" {
			return Credential{}, fmt.Errorf("credential %q has no key", parts[0])
		}
		return Credential{Name: parts[0], Key: parts[1], Secret: parts[2]}, nil
	}
}

// ParseAll parses a list of credential strings, skipping blanks.
// A bare key whose masked name is already taken is suffixed with its
// position ("abcd…#2"); explicit names must be unique.
func ParseAll(values []string) ([]Credential, error) {
	creds := make([]Credential, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		c, err := Parse(v)
		if err != nil {
			return nil, err
		}
		if seen[c.Name] && isBare(v) {
			c.Name = fmt.Sprintf("%s#%d", c.Name, len(creds)+1)
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateName, c.Name)
		}
		seen[c.Name] = true
		creds = append(creds, c)
	}
	if len(creds) == 0 {
		return nil, ErrNoCredentials
	}
	return creds, nil
}

func isBare(s string) bool {
	return !strings.Contains(strings.TrimSpace(s), ":")
}

// Mask shortens a key to its first four characters.
func Mask(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + "…"
}

// Rotator returns credentials in strict round-robin order.
// It is safe for concurrent use; the cursor is the only mutable state.
type Rotator struct {
	creds  []Credential
	cursor atomic.Uint64
}

// NewRotator creates a rotator over an ordered, non-empty credential set.
// Names must be unique.
func NewRotator(creds []Credential) (*Rotator, error) {
	if len(creds) == 0 {
		return nil, ErrNoCredentials
	}
	seen := make(map[string]bool, len(creds))
	for _, c := range creds {
		if seen[c.Name] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateName, c.Name)
		}
		seen[c.Name] = true
	}
	copied := make([]Credential, len(creds))
	copy(copied, creds)
	return &Rotator{creds: copied}, nil
}

// Next returns the next credential, wrapping after the last.
func (r *Rotator) Next() Credential {
	n := r.cursor.Add(1) - 1
	return r.creds[n%uint64(len(r.creds))]
}

// Len returns the number of credentials.
func (r *Rotator) Len() int {
	return len(r.creds)
}

// All returns a copy of the credential set in rotation order.
func (r *Rotator) All() []Credential {
	out := make([]Credential, len(r.creds))
	copy(out, r.creds)
	return out
}
