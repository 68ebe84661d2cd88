/*
Package errs holds the error kinds tenantsql surfaces to HTTP clients. Every kind
carries the status code it maps to, so the handler boundary never has to guess.
*/
package errs

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// Kind is the category of an Error
type Kind int

const (
	// Internal is anything we did not classify
	Internal Kind = iota
	// ClientInput is a missing or unreadable request payload
	ClientInput
	// Validation is a schema failure, Details holds a field path to message map
	Validation
	// Authorization is a failed role or predicate check
	Authorization
	// Connection is a failure to open or talk to a tenant database
	Connection
	// UninitializedBridge is returned when the bridge is used before a tenant was resolved
	UninitializedBridge
	// Unauthenticated is a request without a valid user session
	Unauthenticated
)

var kindNames = map[Kind]string{
	Internal:            "internal",
	ClientInput:         "client_input",
	Validation:          "validation",
	Authorization:       "authorization",
	Connection:          "connection",
	UninitializedBridge: "uninitialized_bridge",
	Unauthenticated:     "unauthenticated",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Status returns the HTTP status code for the kind
func (k Kind) Status() int {
	switch k {
	case ClientInput:
		return http.StatusBadRequest
	case Validation:
		return http.StatusUnprocessableEntity
	case Authorization:
		return http.StatusForbidden
	case Unauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Error is the error type every tenantsql package returns for domain failures
type Error struct {
	Kind    Kind
	Message string
	Details interface{}
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Cause lets github.com/pkg/errors walk through an Error
func (e *Error) Cause() error {
	return e.Err
}

// Status is the HTTP status code for this error
func (e *Error) Status() int {
	return e.Kind.Status()
}

// New returns an Error of the given kind
func New(kind Kind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
	}
}

// Wrap returns an Error of the given kind around err. A stack is attached to err
// when it does not already carry one.
func Wrap(kind Kind, err error, message string) *Error {
	if err == nil {
		return New(kind, message)
	}
	return &Error{
		Kind:    kind,
		Message: message,
		Err:     errors.WithStack(err),
	}
}

/*
NewValidationError returns a Validation error whose details map a dotted field path
to the message for that path.
*/
func NewValidationError(message string, fields map[string]string) *Error {
	return &Error{
		Kind:    Validation,
		Message: message,
		Details: fields,
	}
}

// As returns the first *Error in err's chain
func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// KindOf returns the Kind of err, Internal when err is not an *Error
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return Internal
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}

// StatusOf returns the HTTP status for err
func StatusOf(err error) int {
	return KindOf(err).Status()
}
