package core

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Error kinds exposed to callers.
const (
	KindValidation    = "validation_error"
	KindAuthorization = "authorization_error"
	KindNotFound      = "not_found"
	KindConflict      = "conflict"
	KindDependency    = "dependency_error"
	KindInternal      = "internal_error"
)

// Authorization failure reasons
const (
	ReasonUnauthenticated = "authentication required"
	ReasonWrongRole       = "role not allowed"
	ReasonNotOwner        = "not the owner"
)

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

// NewFieldError is a shortcut for a ValidationError on a single field.
func NewFieldError(field, msg string) error {
	return NewValidationError(errors.New(msg), FieldError{Field: field, Error: msg})
}

func (err ValidationError) Error() string {
	if err.Err != nil {
		return err.Err.Error()
	}
	if len(err.Fields) == 0 {
		return "invalid data"
	}
	msgs := make([]string, 0, len(err.Fields))
	for _, fe := range err.Fields {
		msgs = append(msgs, fe.Field+": "+fe.Error)
	}
	return strings.Join(msgs, "; ")
}

// FieldMap returns the field errors keyed by field name.
func (err ValidationError) FieldMap() map[string]string {
	m := make(map[string]string, len(err.Fields))
	for _, fe := range err.Fields {
		if _, ok := m[fe.Field]; !ok { // keep the first error per field
			m[fe.Field] = fe.Error
		}
	}
	return m
}

type AuthorizationError struct {
	Reason string
}

func NewAuthorizationError(reason string) error {
	return &AuthorizationError{Reason: reason}
}

func (err AuthorizationError) Error() string {
	return "permission denied: " + err.Reason
}

// NotFoundError is also returned when a resource exists but is not visible to the caller.
type NotFoundError struct {
	Resource string
}

func NewNotFoundError(resource string) error {
	return &NotFoundError{Resource: resource}
}

func (err NotFoundError) Error() string {
	return err.Resource + " not found"
}

// ConflictError reports a write that lost an optimistic concurrency race.
type ConflictError struct {
	Resource string
}

func NewConflictError(resource string) error {
	return &ConflictError{Resource: resource}
}

func (err ConflictError) Error() string {
	return fmt.Sprintf("%s was modified concurrently, reload and retry", err.Resource)
}

// DependencyError wraps failures of a persistence, pub/sub or other external collaborator.
type DependencyError struct {
	Op  string
	Err error
}

func NewDependencyError(err error, op string) error {
	return &DependencyError{Op: op, Err: err}
}

func (err DependencyError) Error() string {
	return err.Op + ": " + err.Err.Error()
}

// no Cause method: errors.Cause must stop here.
func (err DependencyError) Unwrap() error {
	return err.Err
}

// ErrorKind returns the stable kind of err, looking through pkg/errors wrapping.
func ErrorKind(err error) string {
	switch errors.Cause(err).(type) {
	case *ValidationError:
		return KindValidation
	case *AuthorizationError:
		return KindAuthorization
	case *NotFoundError:
		return KindNotFound
	case *ConflictError:
		return KindConflict
	case *DependencyError:
		return KindDependency
	default:
		return KindInternal
	}
}

// RepoError maps a repository failure to an error kind: notFound (when it matches) becomes a NotFoundError
// on resource, errors that already carry a kind pass through, anything else becomes a DependencyError.
func RepoError(err error, op string, notFound error, resource string) error {
	if err == nil {
		return nil
	}
	cause := errors.Cause(err)
	if notFound != nil && cause == notFound {
		return NewNotFoundError(resource)
	}
	switch cause.(type) {
	case *ValidationError, *AuthorizationError, *NotFoundError, *ConflictError, *DependencyError:
		return err
	}
	return NewDependencyError(err, op)
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
