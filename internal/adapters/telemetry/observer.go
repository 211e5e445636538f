package telemetry

import (
	"context"
	"time"

	"github.com/satishbabariya/prisma-engine-go/internal/core/database/pool"
)

// PoolObserver forwards pool events to a Telemetry adapter.
type PoolObserver struct {
	t Telemetry
}

// NewPoolObserver returns a pool observer reporting to t.
func NewPoolObserver(t Telemetry) *PoolObserver {
	return &PoolObserver{t: t}
}

func (o *PoolObserver) AcquireWaited(d time.Duration) {
	o.t.RecordConnection(context.Background(), ConnectionInfo{Event: EventAcquire, Duration: d})
}

func (o *PoolObserver) AcquireTimedOut(timeout time.Duration) {
	o.t.RecordConnection(context.Background(), ConnectionInfo{Event: EventTimeout, Duration: timeout})
}

func (o *PoolObserver) ConnectionCreated() {
	o.t.RecordConnection(context.Background(), ConnectionInfo{Event: EventCreate})
}

func (o *PoolObserver) ConnectionDestroyed(reason string) {
	o.t.RecordConnection(context.Background(), ConnectionInfo{Event: EventDestroy, Reason: reason})
}

var _ pool.Observer = (*PoolObserver)(nil)
