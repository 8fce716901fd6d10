package session

import (
	"net/http"
	"time"

	"github.com/jrsteele09/go-pos-client/tenants"
	"golang.org/x/oauth2"
)

// Headers attached to every authenticated call
const (
	HeaderAuthorization = "Authorization"
	HeaderTenantID      = "X-Tenant-ID"
	HeaderBusinessID    = "X-Business-ID"
)

type User struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// Session is the live credential set. Only the Manager mutates it.
type Session struct {
	AccessToken  string
	RefreshToken string
	User         User
	Tenant       tenants.Tenant
	Business     tenants.Business
	// ExpiresAtEstimate is read from the token's exp claim when available. Advisory only;
	// expiry is detected from 401 responses because device clocks drift.
	ExpiresAtEstimate *time.Time
}

func (s Session) TenantID() string {
	return s.Tenant.ID
}

func (s Session) BusinessID() string {
	return s.Business.ID
}

// State of the Manager's session lifecycle.
type State int

const (
	StateAnonymous State = iota
	StateAuthenticated
	StateRefreshing
)

func (s State) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshing:
		return "refreshing"
	default:
		return "anonymous"
	}
}

// Credentials is an immutable snapshot of everything a single call needs.
// Headers for one attempt are always built from one snapshot.
type Credentials struct {
	Token  *oauth2.Token
	Tenant tenants.Context
}

// Header returns the bearer, tenant and business headers for this snapshot.
func (c Credentials) Header() http.Header {
	h := http.Header{}
	if c.Token != nil && c.Token.AccessToken != "" {
		h.Set(HeaderAuthorization, c.Token.Type()+" "+c.Token.AccessToken)
	}
	if c.Tenant.TenantID != "" {
		h.Set(HeaderTenantID, c.Tenant.TenantID)
	}
	if c.Tenant.BusinessID != "" {
		h.Set(HeaderBusinessID, c.Tenant.BusinessID)
	}
	return h
}

// AccessToken returns the raw token carried by the snapshot.
func (c Credentials) AccessToken() string {
	if c.Token == nil {
		return ""
	}
	return c.Token.AccessToken
}
