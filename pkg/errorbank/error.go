// Package errorbank carries transport-neutral application errors that map onto
// HTTP statuses and gRPC codes.
package errorbank

import (
	"errors"
	"fmt"
	"maps"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind enumerates supported application error categories.
type Kind string

const (
	KindBadRequest  Kind = "bad_request"
	KindConflict    Kind = "conflict"
	KindNotFound    Kind = "not_found"
	KindUnavailable Kind = "unavailable"
	KindInternal    Kind = "internal"
)

var kindTable = map[Kind]struct {
	http int
	grpc codes.Code
}{
	KindBadRequest:  {http.StatusBadRequest, codes.InvalidArgument},
	KindConflict:    {http.StatusConflict, codes.FailedPrecondition},
	KindNotFound:    {http.StatusNotFound, codes.NotFound},
	KindUnavailable: {http.StatusServiceUnavailable, codes.Unavailable},
	KindInternal:    {http.StatusInternalServerError, codes.Internal},
}

// AppError captures error context shared across transports.
type AppError struct {
	kind    Kind
	message string
	details map[string]any
	cause   error
}

// Option mutates an AppError during construction.
type Option func(*AppError)

// WithCause attaches an underlying error.
func WithCause(err error) Option {
	return func(e *AppError) { e.cause = err }
}

// WithDetail adds a single named detail value.
func WithDetail(key string, value any) Option {
	return func(e *AppError) {
		if e.details == nil {
			e.details = make(map[string]any)
		}
		e.details[key] = value
	}
}

// WithDetails merges multiple detail values.
func WithDetails(details map[string]any) Option {
	return func(e *AppError) {
		if len(details) == 0 {
			return
		}
		if e.details == nil {
			e.details = make(map[string]any, len(details))
		}
		maps.Copy(e.details, details)
	}
}

// New constructs an AppError; an empty message defaults to the kind.
func New(kind Kind, message string, opts ...Option) *AppError {
	if _, ok := kindTable[kind]; !ok {
		kind = KindInternal
	}
	if message == "" {
		message = string(kind)
	}
	e := &AppError{kind: kind, message: message}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func BadRequest(message string, opts ...Option) *AppError {
	return New(KindBadRequest, message, opts...)
}

func Conflict(message string, opts ...Option) *AppError {
	return New(KindConflict, message, opts...)
}

func NotFound(message string, opts ...Option) *AppError {
	return New(KindNotFound, message, opts...)
}

func Unavailable(message string, opts ...Option) *AppError {
	return New(KindUnavailable, message, opts...)
}

func Internal(message string, opts ...Option) *AppError {
	return New(KindInternal, message, opts...)
}

func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func (e *AppError) Kind() Kind {
	if e == nil {
		return KindInternal
	}
	return e.kind
}

func (e *AppError) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *AppError) Details() map[string]any {
	if e == nil {
		return nil
	}
	return e.details
}

// StatusCode resolves the HTTP status for the error kind.
func (e *AppError) StatusCode() int {
	return kindTable[e.Kind()].http
}

// GRPCStatus lets status.FromError recover the code and message.
func (e *AppError) GRPCStatus() *status.Status {
	return status.New(kindTable[e.Kind()].grpc, e.Message())
}

// From returns the AppError in err's chain, or wraps err as internal.
func From(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("internal error", WithCause(err))
}

// KindOf reports the kind of err; errors without an AppError are internal.
func KindOf(err error) Kind {
	return From(err).Kind()
}

// Rule maps a sentinel error to an AppError kind and public message.
type Rule struct {
	Target  error
	Kind    Kind
	Message string
}

// Translate wraps err with the first rule whose Target matches it, keeping
// err as the cause. Errors already carrying an AppError and unmatched errors
// are returned unchanged.
func Translate(err error, rules ...Rule) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return err
	}
	for _, r := range rules {
		if errors.Is(err, r.Target) {
			return New(r.Kind, r.Message, WithCause(err))
		}
	}
	return err
}
