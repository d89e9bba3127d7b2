package domain

import "context"

// SnapshotCache shares the latest balance snapshot across processes so the
// UI backend can read balances without touching the chain.
type SnapshotCache interface {
	// SetSnapshot stores the snapshot for its owner.
	SetSnapshot(ctx context.Context, snap *BalanceSnapshot) error
	// GetSnapshot returns the cached snapshot for an owner, or ErrNotFound.
	GetSnapshot(ctx context.Context, owner string) (*BalanceSnapshot, error)
}

// BusMessage is one delivery from the signal bus. Channel is the concrete
// channel the payload was published on: a pattern subscription covers many
// channels, and consumers route on the concrete one.
type BusMessage struct {
	Channel string
	Payload []byte
}

// SignalBus is a cross-process publish/subscribe channel carrying lifecycle
// events to external consumers (websocket hub, other services).
type SignalBus interface {
	// Publish sends a raw payload to a channel.
	Publish(ctx context.Context, channel string, payload []byte) error
	// Subscribe returns a read-only channel of deliveries; channel may be a
	// glob pattern. The subscription ends and the channel closes when ctx is
	// cancelled.
	Subscribe(ctx context.Context, channel string) (<-chan BusMessage, error)
}

// BlobWriter uploads one object to blob storage.
type BlobWriter interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}
