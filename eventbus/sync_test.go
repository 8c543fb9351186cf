// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package eventbus

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncBusBasicDispatch(t *testing.T) {
	bus := NewSyncBus()

	universal := &recorder{}
	marketData := &recorder{}
	trades := &recorder{}
	require.NoError(t, bus.Subscribe(universal))
	require.NoError(t, bus.SubscribeType(MarketData{}, marketData))
	require.NoError(t, bus.SubscribeType(Trade{}, trades))

	bus.Publish(MarketData{Symbol: "AAPL", Price: 150, Volume: 1000})
	bus.Publish(Trade{ID: "T001", Symbol: "AAPL", Price: 150, Qty: 100, Side: "BUY"})
	bus.Publish("a string")

	assert.Equal(t, 3, universal.count())
	assert.Equal(t, 1, marketData.count())
	assert.Equal(t, 1, trades.count())
}

func TestSyncBusRootAndStringTags(t *testing.T) {
	bus := NewSyncBus()

	root := &recorder{}
	strings := &recorder{}
	require.NoError(t, bus.SubscribeType((*any)(nil), root))
	require.NoError(t, bus.SubscribeType("", strings))

	bus.Publish("hello")
	bus.Publish(42)
	bus.Publish(MarketData{Symbol: "AAPL", Price: 150, Volume: 1000})

	assert.Equal(t, 3, root.count())
	assert.Equal(t, 1, strings.count())
}

func TestSyncBusCovariantInterfaceMatch(t *testing.T) {
	bus := NewSyncBus()

	pricedEvents := &recorder{}
	require.NoError(t, bus.SubscribeType((*priced)(nil), pricedEvents))

	bus.Publish(MarketData{Symbol: "NVDA", Price: 800})
	bus.Publish(Trade{ID: "T002", Symbol: "NVDA", Price: 801, Qty: 10, Side: "SELL"})
	bus.Publish("not priced")

	assert.Equal(t, 2, pricedEvents.count())
}

func TestSyncBusDispatchOrder(t *testing.T) {
	bus := NewSyncBus()

	var order []string
	add := func(name string) Subscriber {
		return HandlerFunc(func(any) error {
			order = append(order, name)
			return nil
		})
	}
	require.NoError(t, bus.SubscribeType(MarketData{}, add("typed-1")))
	require.NoError(t, bus.Subscribe(add("universal-1")))
	require.NoError(t, bus.Subscribe(add("universal-2")))
	require.NoError(t, bus.SubscribeType(MarketData{}, add("typed-2")))
	require.NoError(t, bus.SubscribeType((*priced)(nil), add("interface-1")))

	bus.Publish(MarketData{Symbol: "AAPL"})

	assert.Equal(t, []string{"universal-1", "universal-2", "typed-1", "typed-2", "interface-1"}, order)
}

func TestSyncBusNilEventIsNoop(t *testing.T) {
	bus := NewSyncBus()
	universal := &recorder{}
	require.NoError(t, bus.Subscribe(universal))

	bus.Publish(nil)

	assert.Zero(t, universal.count())
}

func TestSyncBusHandlerFailureDoesNotStopDispatch(t *testing.T) {
	bus := NewSyncBus()

	failing := HandlerFunc(func(any) error {
		return errors.New("boom")
	})
	panicking := HandlerFunc(func(any) error {
		panic("kaboom")
	})
	after := &recorder{}

	require.NoError(t, bus.Subscribe(failing))
	require.NoError(t, bus.Subscribe(panicking))
	require.NoError(t, bus.Subscribe(after))

	bus.Publish("still delivered")

	assert.Equal(t, 1, after.count())
}

func TestSyncBusPublishAfterClose(t *testing.T) {
	bus := NewSyncBus()
	universal := &recorder{}
	require.NoError(t, bus.Subscribe(universal))

	bus.Close()
	bus.Close() // idempotent
	bus.Publish("dropped")

	assert.Zero(t, universal.count())
}

func TestSyncBusSubscriberCounts(t *testing.T) {
	bus := NewSyncBus()
	require.NoError(t, bus.Subscribe(&recorder{}))
	require.NoError(t, bus.SubscribeType(MarketData{}, &recorder{}))
	require.NoError(t, bus.SubscribeType(MarketData{}, &recorder{}))

	assert.Equal(t, 1, bus.SubscriberCount())
	assert.Equal(t, 2, bus.TypedSubscriberCount(MarketData{}))
	assert.Equal(t, 0, bus.TypedSubscriberCount(Trade{}))
}

func TestSyncBusRegistrationValidation(t *testing.T) {
	bus := NewSyncBus()

	require.ErrorIs(t, bus.Subscribe(nil), ErrNilSubscriber)
	require.ErrorIs(t, bus.SubscribeType(MarketData{}, nil), ErrNilSubscriber)
	require.ErrorIs(t, bus.SubscribeType(nil, &recorder{}), ErrNilTag)
}
