package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Sternrassler/lookup-reconciler/pkg/credential"
)

// AuthScheme selects how a credential is presented to the remote API.
type AuthScheme string

const (
	// AuthBasic sends the credential as HTTP basic auth (key as username, secret as password).
	AuthBasic AuthScheme = "basic"

	// AuthQueryToken sends the credential key as a query parameter.
	AuthQueryToken AuthScheme = "token"
)

// Auth is the authentication attached to one outbound request.
type Auth struct {
	Scheme AuthScheme

	// TokenParam names the query parameter used by AuthQueryToken.
	TokenParam string

	Credential credential.Credential
}

// WithCredential returns a copy of the auth using another credential.
func (a Auth) WithCredential(c credential.Credential) Auth {
	a.Credential = c
	return a
}

// Username returns the basic auth username.
func (a Auth) Username() string {
	return a.Credential.Key
}

// Password returns the basic auth password.
func (a Auth) Password() string {
	return a.Credential.Secret
}

// Validate checks the scheme is usable.
func (a Auth) Validate() error {
	switch a.Scheme {
	case AuthBasic:
		return nil
	case AuthQueryToken:
		if a.TokenParam == "" {
			return fmt.Errorf("token auth requires a parameter name")
		}
		return nil
	default:
		return fmt.Errorf("unknown auth scheme %q", a.Scheme)
	}
}

// apply attaches the credential to a request. Token auth writes into params.
func (a Auth) apply(req *http.Request, params url.Values) {
	switch a.Scheme {
	case AuthQueryToken:
		params.Set(a.TokenParam, a.Credential.Key)
	default:
		req.SetBasicAuth(a.Username(), a.Password())
	}
}

// Passthrough is request context echoed back on the Response.
// It is never sent to the remote API.
type Passthrough struct {
	// Subject is the search term or identifier being looked up.
	Subject string

	// Page is the 1-based page index of the request.
	Page int
}

// Query is a fully-formed outbound request.
type Query struct {
	URL         string
	Auth        Auth
	Params      url.Values
	Passthrough Passthrough
}

// Clone returns a deep copy of the query so follow-up requests can be derived safely.
func (q Query) Clone() Query {
	out := q
	out.Params = make(url.Values, len(q.Params))
	for k, v := range q.Params {
		out.Params[k] = append([]string(nil), v...)
	}
	return out
}

// Response is a decoded remote answer plus the originating query's context.
type Response struct {
	Status      int
	Data        json.RawMessage
	URL         string
	Auth        Auth
	Passthrough Passthrough

	// Params are the caller's query parameters, without any auth token.
	Params url.Values

	// Cached is true when the body came from the response cache.
	Cached bool
}

// Query rebuilds the query that produced the response.
func (r *Response) Query() Query {
	return Query{
		URL:         r.URL,
		Auth:        r.Auth,
		Params:      r.Params,
		Passthrough: r.Passthrough,
	}.Clone()
}

// Decode unmarshals the response body into v.
func (r *Response) Decode(v any) error {
	if len(r.Data) == 0 {
		return fmt.Errorf("empty response body")
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
