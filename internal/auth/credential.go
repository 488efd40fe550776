package auth

import (
	"strings"
	"time"
)

// Credential is the authoritative OAuth credential for the proxied account.
// At most one exists per process, owned by the Manager; every successful
// exchange or refresh atomically replaces it and persists the replacement
// before returning.
type Credential struct {
	// AccessToken is the current bearer credential. Never empty after a
	// successful load.
	AccessToken string `json:"accessToken"`

	// RefreshToken is empty only in static long-lived-token mode, where
	// no refresh is possible.
	RefreshToken string `json:"refreshToken"`

	// ExpiresAt is the absolute expiry in milliseconds since the epoch.
	ExpiresAt int64 `json:"expiresAt"`

	// Scope holds the granted permission scopes.
	Scope []string `json:"scope"`

	// CodeVerifier is the PKCE verifier from the original authorization.
	// Retained for compatibility; the refresh-token grant does not use it.
	CodeVerifier string `json:"codeVerifier,omitempty"`

	// LastRefreshAttempt is set (ms epoch) on every refresh attempt and
	// cleared on success.
	LastRefreshAttempt int64 `json:"lastRefreshAttempt,omitempty"`

	// RefreshAttempts counts consecutive failures since the last
	// successful refresh.
	RefreshAttempts int `json:"refreshAttempts"`
}

// ExpiresAtTime returns the expiry as a time.Time.
func (c *Credential) ExpiresAtTime() time.Time {
	return time.UnixMilli(c.ExpiresAt)
}

// Status is a snapshot of the credential state safe to expose over the
// auth-status resource. It carries no token material.
type Status struct {
	Authenticated   bool      `json:"authenticated"`
	Scope           []string  `json:"scope,omitempty"`
	ExpiresAt       time.Time `json:"expiresAt,omitzero"`
	CanRefresh      bool      `json:"canRefresh"`
	RefreshAttempts int       `json:"refreshAttempts"`
}

// parseScope splits the provider's space-separated scope string.
func parseScope(scope string) []string {
	return strings.Fields(scope)
}
