package transport

import (
	"net/http"
	"strings"

	"github.com/espace/zotsync/pkg/errors"
)

// Authenticator applies authentication to HTTP requests.
type Authenticator interface {
	Apply(req *http.Request, apiKey string)
}

// NoAuth implements no authentication.
type NoAuth struct{}

// Apply implements the Authenticator interface for NoAuth.
func (a *NoAuth) Apply(_ *http.Request, _ string) {}

// BearerAuth implements Bearer token authentication.
type BearerAuth struct{}

// Apply implements the Authenticator interface for BearerAuth.
func (a *BearerAuth) Apply(req *http.Request, apiKey string) {
	req.Header.Set("Authorization", "Bearer "+apiKey)
}

// HeaderAuth implements custom header authentication.
type HeaderAuth struct {
	Header string
}

// Apply implements the Authenticator interface for HeaderAuth.
func (a *HeaderAuth) Apply(req *http.Request, apiKey string) {
	req.Header.Set(a.Header, apiKey)
}

// QueryAuth implements API key as query parameter authentication.
type QueryAuth struct {
	Param string
}

// Apply implements the Authenticator interface for QueryAuth.
func (a *QueryAuth) Apply(req *http.Request, apiKey string) {
	if req.URL == nil {
		return
	}

	query := req.URL.Query()
	query.Set(a.Param, apiKey)
	req.URL.RawQuery = query.Encode()
}

// Authentication schemes accepted by the Zotero Web API.
const (
	SchemeHeader = "header"
	SchemeBearer = "bearer"
	SchemeQuery  = "query"
	SchemeNone   = "none"
)

// KeyHeader and KeyParam carry the API key for the header and query schemes.
const (
	KeyHeader = "Zotero-API-Key"
	KeyParam  = "key"
)

// ForScheme returns the authenticator for a scheme name. The empty name
// selects the Zotero-API-Key header.
func ForScheme(scheme string) (Authenticator, error) {
	switch strings.ToLower(strings.TrimSpace(scheme)) {
	case "", SchemeHeader:
		return &HeaderAuth{Header: KeyHeader}, nil
	case SchemeBearer:
		return &BearerAuth{}, nil
	case SchemeQuery:
		return &QueryAuth{Param: KeyParam}, nil
	case SchemeNone:
		return &NoAuth{}, nil
	}
	return nil, errors.NewValidationError("auth_scheme", scheme, "must be one of header, bearer, query, none")
}
