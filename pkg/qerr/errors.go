// Package qerr defines the error taxonomy shared by every engine component.
package qerr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind classifies an engine error.
type Kind int

const (
	// KindUnknown is reported for errors that did not originate in the engine.
	KindUnknown Kind = iota
	// KindValidation covers malformed queries, filters and operands.
	KindValidation
	// KindUnsupportedFeature covers constructs the selected dialect cannot express.
	KindUnsupportedFeature
	// KindResourceExhausted covers pool acquisition timeouts.
	KindResourceExhausted
	// KindConnection covers transport failures and pool shutdown.
	KindConnection
	// KindQuery covers errors reported by the database for a statement.
	KindQuery
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnsupportedFeature:
		return "unsupported_feature"
	case KindResourceExhausted:
		return "resource_exhausted"
	case KindConnection:
		return "connection"
	case KindQuery:
		return "query"
	default:
		return "unknown"
	}
}

// Sentinel errors usable with errors.Is against any *Error of the matching kind.
var (
	ErrValidation         = errors.New("validation error")
	ErrUnsupportedFeature = errors.New("unsupported feature")
	ErrResourceExhausted  = errors.New("resource exhausted")
	ErrConnection         = errors.New("connection error")
	ErrQuery              = errors.New("query error")

	// ErrPoolClosed is the cause of every error produced by a pool that is shutting down.
	ErrPoolClosed = errors.New("connection pool is shut down")

	// ErrUniqueConstraint is the cause of unique constraint violations.
	ErrUniqueConstraint = errors.New("unique constraint violation")
	// ErrForeignKeyConstraint is the cause of foreign key violations.
	ErrForeignKeyConstraint = errors.New("foreign key constraint violation")
	// ErrNullConstraint is the cause of NOT NULL violations.
	ErrNullConstraint = errors.New("null constraint violation")
)

// Error codes, following the Prisma engine numbering.
const (
	CodeConnection        = "P1001"
	CodePoolClosed        = "P1017"
	CodeUniqueConstraint  = "P2002"
	CodeForeignKey        = "P2003"
	CodeValidation        = "P2009"
	CodeRawQuery          = "P2010"
	CodeNullConstraint    = "P2011"
	CodePoolTimeout       = "P2024"
	CodeUnsupported       = "P2026"
	CodeTransactionFailed = "P2034"
)

// Error is the single error type returned across engine boundaries.
type Error struct {
	Kind      Kind
	Code      string
	Operation string
	Model     string

	// Dialect and Feature are set for unsupported features.
	Dialect string
	Feature string

	// Timeout is set for pool exhaustion.
	Timeout time.Duration

	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Code != "" {
		fmt.Fprintf(&b, "[%s] ", e.Code)
	}
	if e.Operation != "" {
		b.WriteString(e.Operation)
		if e.Model != "" {
			b.WriteString(" on ")
			b.WriteString(e.Model)
		}
		b.WriteString(": ")
	}
	switch {
	case e.Message != "":
		b.WriteString(e.Message)
		if e.Cause != nil {
			b.WriteString(": ")
			b.WriteString(e.Cause.Error())
		}
	case e.Cause != nil:
		b.WriteString(e.Cause.Error())
	default:
		b.WriteString(e.Kind.String())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches the kind sentinels in addition to the cause chain.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrUnsupportedFeature:
		return e.Kind == KindUnsupportedFeature
	case ErrResourceExhausted:
		return e.Kind == KindResourceExhausted
	case ErrConnection:
		return e.Kind == KindConnection
	case ErrQuery:
		return e.Kind == KindQuery
	}
	return false
}

// Retryable reports whether the failed request may succeed if resubmitted.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindResourceExhausted:
		return true
	case KindConnection:
		return !errors.Is(e.Cause, ErrPoolClosed) && !errors.Is(e.Cause, context.Canceled)
	}
	return false
}

// Validation returns a validation error.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// Unsupported returns an unsupported-feature error naming the dialect and feature.
func Unsupported(dialect, feature string) *Error {
	return &Error{
		Kind:    KindUnsupportedFeature,
		Code:    CodeUnsupported,
		Dialect: dialect,
		Feature: feature,
		Message: fmt.Sprintf("%s is not supported by the %s dialect", feature, dialect),
	}
}

// Exhausted returns the error for an acquisition that waited longer than timeout.
func Exhausted(timeout time.Duration) *Error {
	return &Error{
		Kind:    KindResourceExhausted,
		Code:    CodePoolTimeout,
		Timeout: timeout,
		Message: fmt.Sprintf("timed out fetching a new connection from the pool after %s", timeout),
	}
}

// Connection wraps a transport failure.
func Connection(cause error) *Error {
	return &Error{Kind: KindConnection, Code: CodeConnection, Cause: cause}
}

// PoolClosed returns the error produced by a pool that is shutting down.
func PoolClosed() *Error {
	return &Error{Kind: KindConnection, Code: CodePoolClosed, Cause: ErrPoolClosed}
}

// Query wraps a statement failure reported by the database.
func Query(code string, cause error) *Error {
	if code == "" {
		code = CodeRawQuery
	}
	return &Error{Kind: KindQuery, Code: code, Cause: cause}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsRetryable reports whether err carries a retryable *Error.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable()
	}
	return false
}

// Decorate attaches operation and model context to err. Existing context is kept.
func Decorate(err error, operation, model string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if !errors.As(err, &e) {
		e = &Error{Kind: KindUnknown, Cause: err}
		err = e
	}
	if e.Operation == "" {
		e.Operation = operation
	}
	if e.Model == "" {
		e.Model = model
	}
	return err
}
