package audit_test

import (
	"testing"
	"time"

	"github.com/halcyonsec/authcore/internal/authcore/audit"
	"github.com/stretchr/testify/require"
)

func TestDispatcherDeliversToSink(t *testing.T) {
	sink := audit.NewChannelSink(4)
	d := audit.NewDispatcher(sink, 4)
	defer d.Close()

	d.Emit(audit.Event{EventType: audit.EventAuthSuccess, PrincipalID: "p1", Success: true})

	select {
	case ev := <-sink.Events():
		require.Equal(t, audit.EventAuthSuccess, ev.EventType)
		require.Equal(t, "p1", ev.PrincipalID)
		require.False(t, ev.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("event never reached sink")
	}
}

func TestDispatcherDrainsOnClose(t *testing.T) {
	sink := audit.NewChannelSink(16)
	d := audit.NewDispatcher(sink, 16)

	for i := 0; i < 5; i++ {
		d.Emit(audit.Event{EventType: audit.EventTokenRefreshed, Success: true})
	}
	d.Close()

	got := 0
	for {
		select {
		case <-sink.Events():
			got++
		default:
			require.Equal(t, 5, got)
			return
		}
	}
}

func TestDispatcherNilAndClosedAreNoops(t *testing.T) {
	var d *audit.Dispatcher
	d.Emit(audit.Event{EventType: audit.EventAuthFailure}) // must not panic
	d.Close()
	require.Zero(t, d.Dropped())

	real := audit.NewDispatcher(audit.NoopSink{}, 1)
	real.Close()
	real.Emit(audit.Event{EventType: audit.EventAuthFailure})
	require.Zero(t, real.Dropped())
}
