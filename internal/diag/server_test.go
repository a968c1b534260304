package diag

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/synobridge/synobridge/internal/events"
)

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s := NewServer("127.0.0.1:0", nil)
	rec := get(t, s, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestStatusReflectsEvents(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	s := NewServer("127.0.0.1:0", bus)

	bus.Publish(events.NewTransportStateEvent("relay", events.StateConnected, ""))
	bus.Publish(events.NewRequestHandledEvent("relay", "tools/call", false))
	bus.Publish(events.NewRelayReconnectEvent(1, "test"))

	// The bus dispatches asynchronously.
	deadline := time.Now().Add(2 * time.Second)
	for {
		rec := get(t, s, "/status")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var body struct {
			Transports      map[string]string `json:"transports"`
			RequestsHandled int64             `json:"requests_handled"`
			RelayReconnects int64             `json:"relay_reconnects"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode status: %v", err)
		}
		if body.Transports["relay"] == "connected" && body.RequestsHandled == 1 && body.RelayReconnects == 1 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("status never reflected events: %+v", body)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	s := NewServer("127.0.0.1:0", bus)
	bus.Publish(events.NewRequestHandledEvent("stdio", "ping", false))

	deadline := time.Now().Add(2 * time.Second)
	for {
		rec := get(t, s, "/metrics")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		body := rec.Body.String()
		if strings.Contains(body, "synobridge_requests_total") {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("metrics never exposed counters:\n%s", body)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
