package telemetry

import (
	"context"
	"fmt"
)

// Kind names a telemetry backend.
type Kind string

const (
	KindNoop       Kind = "noop"
	KindPrometheus Kind = "prometheus"
)

// Discard drops every event.
var Discard Telemetry = discard{}

type discard struct{}

func (discard) RecordQuery(context.Context, QueryInfo)           {}
func (discard) RecordError(context.Context, ErrorInfo)           {}
func (discard) RecordConnection(context.Context, ConnectionInfo) {}
func (discard) Close(context.Context) error                      { return nil }

// Open returns the backend named by config.Type. A nil config yields Discard.
func Open(config *Config) (Telemetry, error) {
	if config == nil {
		return Discard, nil
	}
	switch Kind(config.Type) {
	case "", KindNoop:
		return Discard, nil
	case KindPrometheus:
		return NewPrometheusTelemetry(config), nil
	}
	return nil, fmt.Errorf("unknown telemetry type %q", config.Type)
}
