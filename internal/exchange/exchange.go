package exchange

import (
	"context"

	"main/internal/schema"
)

// SnapshotHandler consumes one market snapshot.
type SnapshotHandler func(snap schema.MarketSnapshot)

// AckHandler consumes one order acknowledgement.
type AckHandler func(ack schema.OrderAck)

// FillHandler consumes one fill.
type FillHandler func(fill schema.Fill)

// Feed delivers basket component quotes, push style.
type Feed interface {
	Start(ctx context.Context) error
	ObserveSnapshots(ctx context.Context, handler SnapshotHandler) (unsubscribe func())
	Close()
}

// Gateway issues order actions and delivers their asynchronous outcomes.
// Send never blocks on the exchange; acks and fills arrive through the
// observers.
type Gateway interface {
	Start(ctx context.Context) error
	Send(intent schema.OrderIntent) error
	ObserveAcks(ctx context.Context, handler AckHandler) (unsubscribe func())
	ObserveFills(ctx context.Context, handler FillHandler) (unsubscribe func())
	Close()
}
