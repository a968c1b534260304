package bridge

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/synobridge/synobridge/internal/events"
)

// Keepalive timing for the relay WebSocket.
const (
	relayHandshakeTimeout = 10 * time.Second
	relayPingInterval     = 20 * time.Second
	relayPingTimeout      = 10 * time.Second
	relayProbeTimeout     = 5 * time.Second
	relayWriteTimeout     = 10 * time.Second
)

// Relay maintains an outbound WebSocket connection to the MCP relay and
// reconnects with backoff when the link drops. A malformed endpoint is a
// fatal configuration error; everything else is retried.
type Relay struct {
	dispatcher *Dispatcher
	bus        *events.Bus
	tracker    *Tracker
	backoff    *Backoff
	endpoint   string
	token      string
	dialer     *websocket.Dialer
}

// NewRelay creates a relay client for the given endpoint and access token.
func NewRelay(d *Dispatcher, bus *events.Bus, tracker *Tracker, endpoint, token string) *Relay {
	return &Relay{
		dispatcher: d,
		bus:        bus,
		tracker:    tracker,
		backoff:    NewBackoff(),
		endpoint:   endpoint,
		token:      token,
		dialer: &websocket.Dialer{
			HandshakeTimeout: relayHandshakeTimeout,
		},
	}
}

// target validates the endpoint and appends the token as a query parameter.
func (r *Relay) target() (string, error) {
	u, err := url.Parse(r.endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid relay endpoint %q: %w", r.endpoint, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("relay endpoint must use ws:// or wss://, got %q", r.endpoint)
	}
	if u.Host == "" {
		return "", fmt.Errorf("relay endpoint has no host: %q", r.endpoint)
	}
	q := u.Query()
	q.Set("token", r.token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Run connects to the relay and keeps the session alive until ctx is
// cancelled. Connection failures and drops trigger reconnects with backoff;
// an invalid endpoint returns immediately without dialing.
func (r *Relay) Run(ctx context.Context) error {
	target, err := r.target()
	if err != nil {
		r.publishState(events.StateStopped, err.Error())
		return err
	}

	defer r.publishState(events.StateStopped, "")

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		r.publishState(events.StateConnecting, "")
		conn, _, err := r.dialer.DialContext(ctx, target, nil)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.backoff.Failure()
			r.scheduleRetry(ctx, fmt.Sprintf("dial failed: %v", err))
			continue
		}

		start := time.Now()
		err = r.serve(ctx, conn)
		uptime := time.Since(start)

		if ctx.Err() != nil {
			log.Println("Relay shutting down")
			return ctx.Err()
		}

		if uptime >= stabilityWindow {
			log.Printf("Relay connection dropped after %s (was stable): %v", uptime.Round(time.Second), err)
		} else {
			log.Printf("Relay connection lost after %s: %v", uptime.Round(time.Second), err)
		}
		r.backoff.ConnectionClosed(uptime)
		r.scheduleRetry(ctx, fmt.Sprintf("connection lost: %v", err))
	}
}

// scheduleRetry waits out the backoff delay, returning early on shutdown.
func (r *Relay) scheduleRetry(ctx context.Context, detail string) {
	delay := r.backoff.Next()
	failures := r.backoff.Failures()
	log.Printf("Relay reconnect in %s (%d consecutive failure(s))", delay.Round(time.Millisecond), failures)

	r.publishState(events.StateDisconnected, detail)
	if r.bus != nil {
		r.bus.Publish(events.NewRelayReconnectEvent(failures, detail))
	}

	select {
	case <-ctx.Done():
	case <-time.After(delay):
	}
}

// serve runs one relay session until the connection ends.
func (r *Relay) serve(ctx context.Context, conn *websocket.Conn) error {
	id := r.tracker.Add(conn)
	defer r.tracker.Remove(id)
	defer conn.Close()

	log.Printf("Relay connected to %s", r.endpoint)
	r.publishState(events.StateConnected, "")

	pong := make(chan struct{}, 1)
	_ = conn.SetReadDeadline(time.Now().Add(relayPingInterval + relayPingTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(relayPingInterval + relayPingTimeout))
		select {
		case pong <- struct{}{}:
		default:
		}
		return nil
	})

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Unblock the read loop when shutdown is requested.
	go func() {
		<-sessionCtx.Done()
		if ctx.Err() != nil {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutting down")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		}
		conn.Close()
	}()

	go r.keepalive(sessionCtx, conn)
	// Pong handlers only run while a read is in progress, so the probe must
	// wait alongside the read loop, not ahead of it.
	go r.probe(conn, pong)

	// A link that survives the stability window clears the failure history.
	stable := time.AfterFunc(stabilityWindow, r.backoff.Reset)
	defer stable.Stop()

	var writeMu sync.Mutex
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_ = conn.SetReadDeadline(time.Now().Add(relayPingInterval + relayPingTimeout))

		resp := r.dispatcher.Dispatch(ctx, msg, "relay")
		if resp == nil {
			continue
		}
		writeMu.Lock()
		_ = conn.SetWriteDeadline(time.Now().Add(relayWriteTimeout))
		err = conn.WriteMessage(websocket.TextMessage, resp)
		writeMu.Unlock()
		if err != nil {
			return err
		}
	}
}

// probe sends a control ping right after connect to verify the link is live.
// It runs beside the message pump and never delays it. A missing reply is
// logged but not fatal; the relay may not answer control pings until a
// client attaches.
func (r *Relay) probe(conn *websocket.Conn, pong <-chan struct{}) {
	deadline := time.Now().Add(relayProbeTimeout)
	if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
		log.Printf("Relay probe ping failed: %v", err)
		return
	}
	select {
	case <-pong:
		log.Println("Relay probe pong received, link verified")
	case <-time.After(relayProbeTimeout):
		log.Println("No probe pong within 5s, continuing anyway")
	}
}

// keepalive sends a control ping every interval; a peer that stops answering
// trips the read deadline and ends the session.
func (r *Relay) keepalive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(relayPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(relayPingTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

func (r *Relay) publishState(state events.TransportState, detail string) {
	if r.bus != nil {
		r.bus.Publish(events.NewTransportStateEvent("relay", state, detail))
	}
}
