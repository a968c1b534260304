package events

import (
	"testing"
	"time"
)

func TestBusDeliversToSubscriber(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	received := make(chan Event, 1)
	bus.Subscribe(func(ev Event) { received <- ev })

	bus.Publish(NewRequestHandledEvent("stdio", "ping", false))

	select {
	case ev := <-received:
		if ev.Type != EventRequestHandled || ev.Transport != "stdio" || ev.Method != "ping" {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	first := make(chan Event, 1)
	second := make(chan Event, 1)
	unsub := bus.Subscribe(func(ev Event) { first <- ev })
	bus.Subscribe(func(ev Event) { second <- ev })

	unsub()
	bus.Publish(NewRelayReconnectEvent(3, "dial failed"))

	select {
	case ev := <-second:
		if ev.Failures != 3 {
			t.Errorf("failures = %d", ev.Failures)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("second subscriber missed the event")
	}

	select {
	case <-first:
		t.Error("unsubscribed handler still received an event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBusSlowSubscriberDoesNotBlockOthers(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	stall := make(chan struct{})
	defer close(stall)
	bus.Subscribe(func(Event) { <-stall })

	fast := make(chan Event, 8)
	bus.Subscribe(func(ev Event) { fast <- ev })

	for i := 0; i < 4; i++ {
		bus.Publish(NewRequestHandledEvent("stdio", "ping", false))
	}

	for i := 0; i < 4; i++ {
		select {
		case <-fast:
		case <-time.After(2 * time.Second):
			t.Fatalf("fast subscriber got %d of 4 events", i)
		}
	}
}

func TestTransportStateString(t *testing.T) {
	tests := []struct {
		state TransportState
		want  string
	}{
		{StateIdle, "idle"},
		{StateConnecting, "connecting"},
		{StateConnected, "connected"},
		{StateDisconnected, "disconnected"},
		{StateStopped, "stopped"},
		{TransportState(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("String(%d) = %q, want %q", tt.state, got, tt.want)
		}
	}
}
