package events

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestEmitDeliversInSubscriptionOrder(t *testing.T) {
	n := NewNotifier(testLogger())

	var order []int
	n.On(EventStatus, func(any) { order = append(order, 1) })
	n.On(EventStatus, func(any) { order = append(order, 2) })
	n.On(EventStatus, func(any) { order = append(order, 3) })

	n.Emit(EventStatus, nil)

	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestEmitPassesPayload(t *testing.T) {
	n := NewNotifier(testLogger())

	var got any
	n.On(EventBalancesUpdated, func(p any) { got = p })

	payload := StatusUpdate{Operation: "split", Stage: "done"}
	n.Emit(EventBalancesUpdated, payload)

	assert.Equal(t, payload, got)
}

func TestPanickingListenerDoesNotStopBroadcast(t *testing.T) {
	n := NewNotifier(testLogger())

	var after bool
	n.On(EventError, func(any) { panic("boom") })
	n.On(EventError, func(any) { after = true })

	assert.NotPanics(t, func() { n.Emit(EventError, nil) })
	assert.True(t, after, "listener after the panicking one must still run")
}

func TestUnsubscribe(t *testing.T) {
	n := NewNotifier(testLogger())

	var calls int
	unsub := n.On(EventStatus, func(any) { calls++ })

	n.Emit(EventStatus, nil)
	unsub()
	n.Emit(EventStatus, nil)
	unsub() // second call is a no-op

	assert.Equal(t, 1, calls)
}

func TestUnsubscribeRemovesOnlyItsListener(t *testing.T) {
	n := NewNotifier(testLogger())

	var a, b int
	unsubA := n.On(EventStatus, func(any) { a++ })
	n.On(EventStatus, func(any) { b++ })

	unsubA()
	n.Emit(EventStatus, nil)

	assert.Equal(t, 0, a)
	assert.Equal(t, 1, b)
}

func TestRemoveAll(t *testing.T) {
	n := NewNotifier(testLogger())

	var calls int
	n.On(EventStatus, func(any) { calls++ })
	n.On(EventError, func(any) { calls++ })

	n.RemoveAll()
	n.Emit(EventStatus, nil)
	n.Emit(EventError, nil)

	assert.Equal(t, 0, calls)
}

func TestEmitWithNoListeners(t *testing.T) {
	n := NewNotifier(testLogger())
	assert.NotPanics(t, func() { n.Emit("nobody-home", nil) })
}
