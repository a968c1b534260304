// Package events provides the lifecycle event system for the bridge.
package events

import "time"

// TransportState represents the current state of a bridge transport.
type TransportState int

const (
	StateIdle TransportState = iota
	StateConnecting
	StateConnected
	StateDisconnected
	StateStopped
)

func (s TransportState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// EventType identifies the kind of event.
type EventType int

const (
	EventTransportState EventType = iota
	EventRequestHandled
	EventRelayReconnect
)

// Event is a single bridge lifecycle event.
type Event struct {
	Type      EventType
	Transport string // "stdio" or "relay"
	State     TransportState
	Method    string // for EventRequestHandled
	IsError   bool   // for EventRequestHandled
	Failures  int    // for EventRelayReconnect
	Detail    string
	Timestamp time.Time
}

// NewTransportStateEvent records a transport state change.
func NewTransportStateEvent(transport string, state TransportState, detail string) Event {
	return Event{
		Type:      EventTransportState,
		Transport: transport,
		State:     state,
		Detail:    detail,
		Timestamp: time.Now(),
	}
}

// NewRequestHandledEvent records one dispatched request.
func NewRequestHandledEvent(transport, method string, isError bool) Event {
	return Event{
		Type:      EventRequestHandled,
		Transport: transport,
		Method:    method,
		IsError:   isError,
		Timestamp: time.Now(),
	}
}

// NewRelayReconnectEvent records a relay reconnect attempt being scheduled.
func NewRelayReconnectEvent(failures int, detail string) Event {
	return Event{
		Type:      EventRelayReconnect,
		Transport: "relay",
		Failures:  failures,
		Detail:    detail,
		Timestamp: time.Now(),
	}
}
