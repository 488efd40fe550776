package dropbox

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind is a stable classification of provider failures.
type ErrorKind string

const (
	// KindNotFound indicates the path does not exist.
	KindNotFound ErrorKind = "not_found"
	// KindMalformedPath indicates the path was rejected by the provider.
	KindMalformedPath ErrorKind = "malformed_path"
	// KindPermission indicates the operation is not permitted (no write
	// permission, insufficient space).
	KindPermission ErrorKind = "permission"
	// KindInvalidToken indicates the access token was rejected.
	KindInvalidToken ErrorKind = "invalid_token"
	// KindConflict indicates a naming conflict, including "folder already
	// exists" on folder creation.
	KindConflict ErrorKind = "conflict"
	// KindRateLimited indicates the provider throttled the request.
	KindRateLimited ErrorKind = "rate_limited"
	// KindServer indicates a provider-side 5xx failure.
	KindServer ErrorKind = "server"
	// KindUnknown covers everything else.
	KindUnknown ErrorKind = "unknown"
)

// APIError is a classified provider failure.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Summary    string
}

func (e *APIError) Error() string {
	if e.Summary != "" {
		return fmt.Sprintf("dropbox: %s (%s)", e.Summary, e.Kind)
	}
	return fmt.Sprintf("dropbox: http %d (%s)", e.StatusCode, e.Kind)
}

// IsNotFound reports whether err is a provider not-found error.
func IsNotFound(err error) bool {
	return errKind(err) == KindNotFound
}

// IsConflict reports whether err is a provider conflict error.
func IsConflict(err error) bool {
	return errKind(err) == KindConflict
}

func errKind(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}

// classifyError maps a provider HTTP status and error summary to an
// APIError. Summaries look like "path/not_found/." or
// "to/conflict/folder/..".
func classifyError(statusCode int, summary string) *APIError {
	apiErr := &APIError{
		Kind:       KindUnknown,
		StatusCode: statusCode,
		Summary:    summary,
	}

	switch {
	case strings.Contains(summary, "not_found"):
		apiErr.Kind = KindNotFound
	case strings.Contains(summary, "malformed_path"):
		apiErr.Kind = KindMalformedPath
	case strings.Contains(summary, "conflict"):
		apiErr.Kind = KindConflict
	case strings.Contains(summary, "insufficient_space"),
		strings.Contains(summary, "no_write_permission"),
		strings.Contains(summary, "disallowed_name"):
		apiErr.Kind = KindPermission
	case statusCode == http.StatusUnauthorized:
		apiErr.Kind = KindInvalidToken
	case statusCode == http.StatusTooManyRequests:
		apiErr.Kind = KindRateLimited
	case statusCode >= 500:
		apiErr.Kind = KindServer
	}

	return apiErr
}
