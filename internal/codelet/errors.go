package codelet

import (
	"errors"
	"fmt"
)

// Sentinel errors for use with errors.Is(). Every request the client makes
// folds its failure into exactly one of these kinds; transport-level faults
// never escape as raw errors.
var (
	// ErrUnauthenticated means the request carried no token or the server
	// rejected it. Callers should treat the session as lost.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrInvalidCredentials is returned by Login when the email or password
	// is wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAlreadyExists is returned by Register on a conflicting account.
	ErrAlreadyExists = errors.New("account already exists")

	// ErrRateLimited maps HTTP 429. The caller should wait and retry
	// manually; the client never retries on its own.
	ErrRateLimited = errors.New("rate limited")

	// ErrNotFound maps HTTP 404 for resources addressed by id.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable covers 5xx responses and any network-level failure.
	ErrUnavailable = errors.New("server unavailable")

	// ErrMalformed means the response body could not be decoded into the
	// expected shape. User-facing code treats it like ErrUnavailable.
	ErrMalformed = errors.New("malformed response")
)

// APIError wraps a sentinel kind with the HTTP status and server-provided
// message, when one was available.
type APIError struct {
	Kind    error
	Status  int
	Message string
	cause   error
}

// Error returns a human-readable description of the failure.
func (e *APIError) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("codelet: %v: %s (status %d)", e.Kind, e.Message, e.Status)
	case e.cause != nil:
		return fmt.Sprintf("codelet: %v: %v", e.Kind, e.cause)
	case e.Status != 0:
		return fmt.Sprintf("codelet: %v (status %d)", e.Kind, e.Status)
	default:
		return fmt.Sprintf("codelet: %v", e.Kind)
	}
}

// Is reports whether this error matches the target sentinel.
func (e *APIError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// Unwrap returns the underlying transport or decode error, if any.
func (e *APIError) Unwrap() error {
	return e.cause
}

func apiErr(kind error, status int, message string) *APIError {
	return &APIError{Kind: kind, Status: status, Message: message}
}

func transportErr(kind error, cause error) *APIError {
	return &APIError{Kind: kind, cause: cause}
}
