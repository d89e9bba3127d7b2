package ws

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/futarchybot/internal/domain"
)

// fakeBus delivers every published message to every subscriber, preserving
// the concrete channel the way a Redis pattern subscription does.
type fakeBus struct {
	msgs chan domain.BusMessage
}

func newFakeBus() *fakeBus {
	return &fakeBus{msgs: make(chan domain.BusMessage, 16)}
}

func (b *fakeBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.msgs <- domain.BusMessage{Channel: channel, Payload: payload}
	return nil
}

func (b *fakeBus) Subscribe(context.Context, string) (<-chan domain.BusMessage, error) {
	return b.msgs, nil
}

func newTestClient(h *Hub, channels ...string) *client {
	c := &client{
		hub:  h,
		send: make(chan []byte, 8),
		subs: make(map[string]bool),
	}
	for _, ch := range channels {
		c.subs[ch] = true
	}
	return c
}

func recv(t *testing.T, c *client) []byte {
	t.Helper()
	select {
	case msg := <-c.send:
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
		return nil
	}
}

func assertSilent(t *testing.T, c *client) {
	t.Helper()
	select {
	case msg := <-c.send:
		t.Fatalf("unexpected message delivered: %s", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubRoutesConcreteChannel(t *testing.T) {
	bus := newFakeBus()
	hub := NewHub(bus, slog.New(slog.DiscardHandler), Config{Owner: "0xaa"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	wildcard := newTestClient(hub, "futarchy:*")
	narrowed := newTestClient(hub, "futarchy:balances-updated")
	other := newTestClient(hub, "futarchy:operation")
	hub.register <- wildcard
	hub.register <- narrowed
	hub.register <- other

	payload := []byte(`{"type":"balances-updated"}`)
	require.NoError(t, bus.Publish(ctx, "futarchy:balances-updated", payload))

	assert.Equal(t, payload, recv(t, wildcard), "wildcard subscriber sees every event")
	assert.Equal(t, payload, recv(t, narrowed), "narrowed subscriber sees its concrete channel")
	assertSilent(t, other)
}

func TestClientNarrowsSubscription(t *testing.T) {
	hub := NewHub(newFakeBus(), slog.New(slog.DiscardHandler), Config{})
	c := newTestClient(hub, defaultChannels...)

	c.handleSubscription(subscribeMsg{
		Unsubscribe: []string{"futarchy:*"},
		Subscribe:   []string{"futarchy:operation"},
	})

	assert.True(t, c.isSubscribed("futarchy:operation"))
	assert.False(t, c.isSubscribed("futarchy:balances-updated"))
	assert.False(t, c.isSubscribed("futarchy:error"))
}

func TestWildcardSubscriptionMatchesByPrefix(t *testing.T) {
	hub := NewHub(newFakeBus(), slog.New(slog.DiscardHandler), Config{})
	c := newTestClient(hub, "futarchy:*")

	assert.True(t, c.isSubscribed("futarchy:error"))
	assert.True(t, c.isSubscribed("futarchy:balances-updated"))
	assert.False(t, c.isSubscribed("other:error"))
}
