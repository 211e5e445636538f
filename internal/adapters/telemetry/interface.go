// Package telemetry reports query execution and connection pool events to a
// metrics backend.
package telemetry

import (
	"context"
	"time"
)

// Telemetry receives engine events. Implementations must be safe for
// concurrent use; Record methods must not block.
type Telemetry interface {
	RecordQuery(ctx context.Context, info QueryInfo)
	RecordError(ctx context.Context, info ErrorInfo)
	RecordConnection(ctx context.Context, info ConnectionInfo)

	// Close releases the backend. Events recorded afterwards are dropped.
	Close(ctx context.Context) error
}

// QueryInfo describes one finished execution.
type QueryInfo struct {
	Model     string
	Operation string
	Dialect   string
	// Duration includes the wait for a pooled connection.
	Duration     time.Duration
	Success      bool
	Cached       bool
	RowsAffected int64
}

// ErrorInfo describes a failed execution. Query is the rendered statement,
// when one was produced.
type ErrorInfo struct {
	Error     error
	Model     string
	Operation string
	Query     string
}

// Pool events carried by ConnectionInfo.Event.
const (
	EventAcquire = "acquire"
	EventTimeout = "timeout"
	EventCreate  = "create"
	EventDestroy = "destroy"
)

// ConnectionInfo describes a pool event. Duration is the wait for acquire
// events and the configured timeout for timeout events; Reason is set on
// destroy events.
type ConnectionInfo struct {
	Event    string
	Duration time.Duration
	Reason   string
}

// Config selects and configures a backend.
type Config struct {
	// Type is a Kind; empty means KindNoop.
	Type string
	// Namespace prefixes every metric name.
	Namespace string
}
