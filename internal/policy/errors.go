package policy

import (
	"errors"
	"fmt"
)

// ErrorKind identifies why the policy engine rejected a request.
type ErrorKind string

const (
	// KindBlockedPath means the path matched the block list.
	KindBlockedPath ErrorKind = "BLOCKED_PATH"

	// KindPathNotAllowed means the path was under no allowed prefix.
	KindPathNotAllowed ErrorKind = "PATH_NOT_ALLOWED"

	// KindQuotaExceeded means the user hit the daily delete quota.
	KindQuotaExceeded ErrorKind = "QUOTA_EXCEEDED"
)

// Error is a policy rejection. Policy errors are terminal for the
// current call and are never retried by the engine.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// IsPolicyError reports whether err is a policy rejection.
func IsPolicyError(err error) bool {
	var policyErr *Error
	return errors.As(err, &policyErr)
}
