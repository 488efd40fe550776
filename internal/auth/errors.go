package auth

import "fmt"

// RefreshErrorKind classifies a token refresh failure.
type RefreshErrorKind string

const (
	// KindInvalidGrant - the refresh token was revoked or expired. The
	// caller must re-run the authorization flow.
	KindInvalidGrant RefreshErrorKind = "invalid_grant"
	// KindNoRefreshToken - the credential has no refresh token (static
	// long-lived-token mode, or never granted offline access).
	KindNoRefreshToken RefreshErrorKind = "no_refresh_token"
	// KindMaxRetries - the consecutive-failure budget is exhausted.
	KindMaxRetries RefreshErrorKind = "max_retries"
	// KindRateLimit - the provider throttled the request, or the local
	// cooldown guard rejected the attempt.
	KindRateLimit RefreshErrorKind = "rate_limit"
	// KindServerError - provider-side 5xx failure.
	KindServerError RefreshErrorKind = "server_error"
	// KindNetworkError - no HTTP response was received.
	KindNetworkError RefreshErrorKind = "network_error"
	// KindUnknown - anything else.
	KindUnknown RefreshErrorKind = "unknown_error"
)

// RefreshError is a classified token refresh failure. Callers match on
// Kind and Retryable rather than string content.
type RefreshError struct {
	Kind      RefreshErrorKind
	Retryable bool
	Message   string
	Err       error
}

func (e *RefreshError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("token refresh failed (%s): %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("token refresh failed (%s): %s", e.Kind, e.Message)
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}

// ErrNotAuthenticated is returned when no credential exists. The caller
// must complete the authorization flow first.
type ErrNotAuthenticated struct {
	Reason string
}

func (e *ErrNotAuthenticated) Error() string {
	return fmt.Sprintf("not authenticated: %s; run the setup flow to authorize", e.Reason)
}
