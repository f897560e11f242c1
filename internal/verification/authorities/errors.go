package authorities

import (
	"context"
	"errors"
	"fmt"

	dErrors "drivematch/pkg/domain-errors"
)

// ErrorCategory is the normalized failure taxonomy for authority checks.
type ErrorCategory string

const (
	// ErrorTimeout indicates the authority did not answer within the step ceiling
	ErrorTimeout ErrorCategory = "timeout"

	// ErrorBadData indicates the subject was missing fields the authority needs
	ErrorBadData ErrorCategory = "bad_data"

	// ErrorNotFound indicates the authority has no record for the subject
	ErrorNotFound ErrorCategory = "not_found"

	// ErrorOutage indicates the authority is unavailable or its breaker is open
	ErrorOutage ErrorCategory = "outage"

	// ErrorRejected indicates the authority answered and refused the subject
	ErrorRejected ErrorCategory = "rejected"

	// ErrorInternal indicates an unexpected failure
	ErrorInternal ErrorCategory = "internal"
)

// AuthorityError wraps authority failures with a normalized category.
type AuthorityError struct {
	Category    ErrorCategory
	AuthorityID string
	Message     string
	Underlying  error
	Retryable   bool
}

func (e *AuthorityError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("authority %s [%s]: %s: %v", e.AuthorityID, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("authority %s [%s]: %s", e.AuthorityID, e.Category, e.Message)
}

func (e *AuthorityError) Unwrap() error {
	return e.Underlying
}

// NewAuthorityError creates a normalized authority error. Timeouts and
// outages are flagged retryable; the pipeline still never retries on its own,
// the flag only tells the user a manual restart is worth trying.
func NewAuthorityError(category ErrorCategory, authorityID, message string, underlying error) *AuthorityError {
	return &AuthorityError{
		Category:    category,
		AuthorityID: authorityID,
		Message:     message,
		Underlying:  underlying,
		Retryable:   category == ErrorTimeout || category == ErrorOutage,
	}
}

// IsRetryable reports whether err is an AuthorityError worth a manual restart.
func IsRetryable(err error) bool {
	var ae *AuthorityError
	if errors.As(err, &ae) {
		return ae.Retryable
	}
	return false
}

// GetCategory extracts the category from err. Bare context errors map to
// timeout so callers that forgot to normalize still classify deadlines.
func GetCategory(err error) ErrorCategory {
	var ae *AuthorityError
	if errors.As(err, &ae) {
		return ae.Category
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTimeout
	}
	return ErrorInternal
}

// ToDomainError maps an authority failure onto the shared error codes.
func ToDomainError(err error) error {
	if err == nil {
		return nil
	}
	switch GetCategory(err) {
	case ErrorTimeout:
		return dErrors.Wrap(err, dErrors.CodeTimeout, "authority timed out")
	case ErrorOutage:
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "authority unavailable")
	case ErrorBadData:
		return dErrors.Wrap(err, dErrors.CodeValidation, "subject rejected as malformed")
	case ErrorNotFound:
		return dErrors.Wrap(err, dErrors.CodeNotFound, "no record for subject")
	case ErrorRejected:
		return dErrors.Wrap(err, dErrors.CodePreconditionFailed, "authority refused subject")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "authority check failed")
	}
}

var (
	ErrAuthorityNotFound  = errors.New("authority not found")
	ErrAuthorityDuplicate = errors.New("authority already registered")
)
