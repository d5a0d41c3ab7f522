package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for callers that need to branch on failure
// class rather than message text.
type Kind string

const (
	KindNotFound    Kind = "not_found"
	KindValidation  Kind = "validation"
	KindUnsupported Kind = "unsupported"
	KindUpstream    Kind = "upstream"
	KindInternal    Kind = "internal"
)

// Error is the shared payload for every typed failure in the service.
// Field is set when the failure is attributable to a single input field.
type Error struct {
	Kind       Kind
	HTTPStatus int
	Field      string
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match on kind: errors.Is(err, &Error{Kind: KindNotFound}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func EntryNotFound(configurationID string) *Error {
	return &Error{
		Kind:       KindNotFound,
		HTTPStatus: http.StatusNotFound,
		Field:      "configurationId",
		Message:    fmt.Sprintf("configuration entry %q not found", configurationID),
	}
}

func SchemaError(err error) *Error {
	return &Error{
		Kind:       KindValidation,
		HTTPStatus: http.StatusInternalServerError,
		Message:    "stored app config failed schema validation",
		Err:        err,
	}
}

// CredentialInvalid reports a live-check failure for one credential field
// ("secretKey" or "publishableKey").
func CredentialInvalid(field string, err error) *Error {
	return &Error{
		Kind:       KindValidation,
		HTTPStatus: http.StatusBadRequest,
		Field:      field,
		Message:    fmt.Sprintf("%s failed live validation", field),
		Err:        err,
	}
}

func UnsupportedKey(field, reason string) *Error {
	return &Error{
		Kind:       KindUnsupported,
		HTTPStatus: http.StatusBadRequest,
		Field:      field,
		Message:    reason,
	}
}

// Upstream reports a collaborator call that itself failed, as opposed to a
// collaborator that answered "invalid".
func Upstream(op string, err error) *Error {
	return &Error{
		Kind:       KindUpstream,
		HTTPStatus: http.StatusBadGateway,
		Message:    fmt.Sprintf("%s failed", op),
		Err:        err,
	}
}

// Internal marks an invariant violation, a gap in a mapping table rather
// than bad input. These must stay distinguishable from validation errors.
func Internal(msg string) *Error {
	return &Error{
		Kind:       KindInternal,
		HTTPStatus: http.StatusInternalServerError,
		Message:    msg,
	}
}

func IsNotFound(err error) bool    { return hasKind(err, KindNotFound) }
func IsValidation(err error) bool  { return hasKind(err, KindValidation) }
func IsUnsupported(err error) bool { return hasKind(err, KindUnsupported) }
func IsUpstream(err error) bool    { return hasKind(err, KindUpstream) }
func IsInternal(err error) bool    { return hasKind(err, KindInternal) }

func hasKind(err error, k Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == k
}

// Status returns the HTTP status for err, defaulting to 500 for untyped
// errors.
func Status(err error) int {
	var e *Error
	if errors.As(err, &e) && e.HTTPStatus != 0 {
		return e.HTTPStatus
	}
	return http.StatusInternalServerError
}
