/*
Package handler adapts request handlers that return a value and an error into
http.Handlers. Successful results are written as JSON. Errors are written as

	{"code": 422, "message": "...", "details": {...}}

with the status code taken from the error's errs.Kind.
*/
package handler

import (
	"context"
	"fmt"
	"net/http"

	jsoniter "github.com/json-iterator/go"
	uuid "github.com/satori/go.uuid"
	"github.com/skuid/tenantsql/errs"
	"go.uber.org/zap"
)

// RequestIDHeader carries the id logged with every failed request
const RequestIDHeader = "X-Request-Id"

const forbiddenMessage = "You do not have access to this feature"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// User is the signed in user a SessionProvider returns
type User struct {
	ID         string                 `json:"id"`
	Role       int                    `json:"role"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// SessionProvider resolves the user of a request, failing when there is none
type SessionProvider interface {
	RequireUser(r *http.Request) (*User, error)
}

// Authorizer decides whether a signed in user may call a handler
type Authorizer interface {
	Authorize(u *User) bool
}

type anyUser struct{}

func (anyUser) Authorize(*User) bool {
	return true
}

// AnyUser only requires a signed in user
var AnyUser Authorizer = anyUser{}

// Roles allows users whose role is in the list
type Roles []int

// Authorize reports whether u's role is one of r
func (r Roles) Authorize(u *User) bool {
	for _, role := range r {
		if u.Role == role {
			return true
		}
	}
	return false
}

// Predicate allows users for which the function returns true
type Predicate func(u *User) bool

// Authorize calls p
func (p Predicate) Authorize(u *User) bool {
	return p(u)
}

// Func is a request handler returning the value to write as JSON
type Func func(r *http.Request) (interface{}, error)

// ErrorResponse is the body written for failed requests
type ErrorResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// Wrapper turns Funcs into http.Handlers
type Wrapper struct {
	Sessions SessionProvider
	Logger   *zap.Logger
}

// NewWrapper returns a Wrapper using sessions to resolve users
func NewWrapper(sessions SessionProvider, logger *zap.Logger) *Wrapper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Wrapper{
		Sessions: sessions,
		Logger:   logger,
	}
}

/*
Wrap returns an http.Handler running fn. Without authorizers the handler is
public. Otherwise a signed in user is required and every authorizer must allow
them.
*/
func (wr *Wrapper) Wrap(fn Func, authorize ...Authorizer) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				WriteError(w, r, errs.New(errs.Internal, fmt.Sprintf("panic: %v", rec)), wr.logger())
			}
		}()

		if len(authorize) > 0 {
			user, err := wr.requireUser(r)
			if err != nil {
				WriteError(w, r, err, wr.logger())
				return
			}
			for _, a := range authorize {
				if !a.Authorize(user) {
					WriteError(w, r, errs.New(errs.Authorization, forbiddenMessage), wr.logger())
					return
				}
			}
			r = r.WithContext(WithUser(r.Context(), user))
		}

		result, err := fn(r)
		if err != nil {
			WriteError(w, r, err, wr.logger())
			return
		}
		WriteJSON(w, http.StatusOK, result)
	})
}

func (wr *Wrapper) logger() *zap.Logger {
	if wr.Logger == nil {
		return zap.NewNop()
	}
	return wr.Logger
}

func (wr *Wrapper) requireUser(r *http.Request) (*User, error) {
	if wr.Sessions == nil {
		return nil, errs.New(errs.Internal, "no session provider configured")
	}
	user, err := wr.Sessions.RequireUser(r)
	if err != nil {
		if _, ok := errs.As(err); ok {
			return nil, err
		}
		return nil, errs.Wrap(errs.Unauthenticated, err, "Unauthorized")
	}
	if user == nil {
		return nil, errs.New(errs.Unauthenticated, "Unauthorized")
	}
	return user, nil
}

type userContextKey struct{}

// WithUser returns a copy of ctx carrying u
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userContextKey{}, u)
}

// UserFromContext returns the user stored by Wrap, nil for public handlers
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userContextKey{}).(*User)
	return u
}

// WriteJSON writes v with the given status
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

/*
WriteError writes err as an ErrorResponse. Errors that are not an *errs.Error
become a generic 500 so driver messages never reach the client. Everything but
validation failures is logged together with its stack.
*/
func WriteError(w http.ResponseWriter, r *http.Request, err error, logger *zap.Logger) {
	requestID := uuid.NewV4().String()
	w.Header().Set(RequestIDHeader, requestID)

	resp := ErrorResponse{
		Code:    http.StatusInternalServerError,
		Message: http.StatusText(http.StatusInternalServerError),
	}
	kind := errs.Internal
	if e, ok := errs.As(err); ok {
		kind = e.Kind
		resp.Code = e.Status()
		resp.Details = e.Details
		if e.Kind != errs.Internal && e.Kind != errs.Connection {
			resp.Message = e.Message
		}
	}

	if kind != errs.Validation && logger != nil {
		logger.Error("request failed",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("kind", kind.String()),
			zap.Int("status", resp.Code),
			zap.Error(err),
		)
	}

	WriteJSON(w, resp.Code, resp)
}
