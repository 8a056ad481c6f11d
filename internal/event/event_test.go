package event

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

const testEvent Name = "test.event"

func TestEventDispatch(t *testing.T) {
	var event Event
	bus := NewDispatcher()
	bus.ListenFunc(testEvent, func(_ context.Context, ev Event) (err error) {
		event = ev
		return nil
	})
	err := bus.Dispatch(context.Background(), Event{testEvent, 42})
	require.NoError(t, err)
	require.Equal(t, testEvent, event.Name)
	require.Equal(t, 42, event.Data)
}

func TestDispatchOrder(t *testing.T) {
	var order []int
	bus := NewDispatcher()
	for i := range 3 {
		bus.ListenFunc(testEvent, func(context.Context, Event) error {
			order = append(order, i)
			return nil
		})
	}
	require.NoError(t, bus.Dispatch(context.Background(), Event{Name: testEvent}))
	require.Equal(t, []int{0, 1, 2}, order)
}

func TestDispatchStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	var called bool
	bus := NewDispatcher()
	bus.ListenFunc(testEvent, func(context.Context, Event) error { return boom })
	bus.ListenFunc(testEvent, func(context.Context, Event) error {
		called = true
		return nil
	})
	err := bus.Dispatch(context.Background(), Event{Name: testEvent})
	require.ErrorIs(t, err, boom)
	require.False(t, called)
}

func TestListenerMayDispatch(t *testing.T) {
	const other Name = "test.other"
	var got any
	bus := NewDispatcher()
	bus.ListenFunc(other, func(_ context.Context, ev Event) error {
		got = ev.Data
		return nil
	})
	bus.ListenFunc(testEvent, func(ctx context.Context, ev Event) error {
		return bus.Dispatch(ctx, Event{other, ev.Data})
	})
	require.NoError(t, bus.Dispatch(context.Background(), Event{testEvent, "hi"}))
	require.Equal(t, "hi", got)
}

func TestRemoveListener(t *testing.T) {
	var called bool
	fn := func(context.Context, Event) error {
		called = true
		return nil
	}

	bus := NewDispatcher()
	l := bus.ListenFunc(testEvent, fn)
	bus.RemoveListener(testEvent, l)
	err := bus.Dispatch(context.Background(), Event{testEvent, 42})
	require.NoError(t, err)
	require.False(t, called)
}
