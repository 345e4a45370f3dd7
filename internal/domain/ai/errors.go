package ai

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrQuotaExceeded indicates the AI provider returned a quota/limit error (HTTP 429 or similar).
var ErrQuotaExceeded = errors.New("ai quota exceeded")

var (
	ErrUnauthenticated = errors.New("ai provider rejected credentials")
	ErrInvalidRequest  = errors.New("ai provider rejected request")
	ErrUnavailable     = errors.New("ai provider unavailable")
	ErrEmptyResponse   = errors.New("ai provider returned no content")
)

// RemoteError is a failure of a call to an external service (model provider
// or search API). Kind is one of the sentinels above and matches errors.Is.
type RemoteError struct {
	Provider   string
	StatusCode int
	Kind       error
	Err        error
}

// NewRemoteError classifies err by the HTTP status the provider answered
// with; status 0 means the call never got an answer.
func NewRemoteError(provider string, status int, err error) *RemoteError {
	return &RemoteError{
		Provider:   provider,
		StatusCode: status,
		Kind:       KindFromStatus(status),
		Err:        err,
	}
}

func (e *RemoteError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: remote call failed (status %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: remote call failed: %v", e.Provider, e.Err)
}

func (e *RemoteError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// KindFromStatus maps an HTTP status code to a remote error sentinel.
func KindFromStatus(status int) error {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrQuotaExceeded
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return ErrUnauthenticated
	case status >= 400 && status < 500:
		return ErrInvalidRequest
	default:
		return ErrUnavailable
	}
}

// ValidationError reports model output that does not conform to the output
// schema: malformed JSON, a missing required field, a bad enum literal or a
// wrongly shaped nested record.
type ValidationError struct {
	Schema     string
	Violations []string
	Raw        string
	Err        error
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "model output does not match schema %q", e.Schema)
	if len(e.Violations) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Violations, "; "))
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ValidationError) Unwrap() error { return e.Err }
