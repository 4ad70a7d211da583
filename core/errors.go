package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrUnauthorized is returned once the 401/refresh dance has been lost for
// good: refresh failed or the retried request came back 401 again. The
// session has already been cleared when a caller sees this.
var ErrUnauthorized = errors.New("unauthorized")

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// APIError is any non-2xx response outside the handled 401/refresh flow.
type APIError struct {
	Status int
	Body   string
}

func NewAPIError(status int, body string) error {
	return &APIError{Status: status, Body: body}
}

func (err APIError) Error() string {
	return fmt.Sprintf("api error (%d): %s", err.Status, err.Body)
}

// ServerUnreachableError is a transport-level failure translated into
// something the offline/local-mode UX can distinguish from a bad request.
type ServerUnreachableError struct {
	Host  string
	Local bool
	Err   error
}

func NewServerUnreachableError(host string, local bool, err error) error {
	return &ServerUnreachableError{Host: host, Local: local, Err: err}
}

func (err ServerUnreachableError) Error() string {
	if err.Local {
		return fmt.Sprintf("school server %s is unreachable: %v", err.Host, err.Err)
	}
	return fmt.Sprintf("server %s is unreachable: %v", err.Host, err.Err)
}

func (err ServerUnreachableError) Unwrap() error { return err.Err }

func IsUnauthorized(err error) bool {
	return errors.Cause(err) == ErrUnauthorized
}

func IsServerUnreachable(err error) bool {
	_, ok := errors.Cause(err).(*ServerUnreachableError)
	return ok
}
