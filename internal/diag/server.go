// Package diag serves the optional diagnostics endpoint: health, runtime
// status, and Prometheus metrics. It is only started when BRIDGE_DIAG_ADDR
// is set; the MCP protocol surface never depends on it.
package diag

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/synobridge/synobridge/internal/events"
)

// Server exposes /healthz, /status, and /metrics over HTTP.
type Server struct {
	addr    string
	bus     *events.Bus
	engine  *gin.Engine
	metrics *metrics
	started time.Time

	mu          sync.RWMutex
	states      map[string]string
	requests    int64
	reconnects  int64
	unsubscribe func()
}

// NewServer creates a diagnostics server listening on addr and subscribes
// it to the event bus.
func NewServer(addr string, bus *events.Bus) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		addr:    addr,
		bus:     bus,
		metrics: newMetrics(),
		started: time.Now(),
		states:  make(map[string]string),
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.GET("/healthz", s.handleHealthz)
	engine.GET("/status", s.handleStatus)
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})))
	s.engine = engine

	if bus != nil {
		s.unsubscribe = bus.Subscribe(s.onEvent)
	}
	return s
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if s.unsubscribe != nil {
		defer s.unsubscribe()
	}

	srv := &http.Server{Addr: s.addr, Handler: s.engine}

	errc := make(chan error, 1)
	go func() {
		log.Printf("Diagnostics listening on %s", s.addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	}
}

// Handler returns the HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) onEvent(ev events.Event) {
	switch ev.Type {
	case events.EventRequestHandled:
		s.metrics.requests.WithLabelValues(ev.Transport, ev.Method).Inc()
		if ev.IsError {
			s.metrics.requestErrors.WithLabelValues(ev.Transport, ev.Method).Inc()
		}
		s.mu.Lock()
		s.requests++
		s.mu.Unlock()

	case events.EventRelayReconnect:
		s.metrics.relayReconnect.Inc()
		s.mu.Lock()
		s.reconnects++
		s.mu.Unlock()

	case events.EventTransportState:
		if ev.Transport == "relay" {
			if ev.State == events.StateConnected {
				s.metrics.relayConnected.Set(1)
			} else {
				s.metrics.relayConnected.Set(0)
			}
		}
		s.mu.Lock()
		s.states[ev.Transport] = ev.State.String()
		s.mu.Unlock()
	}
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStatus(c *gin.Context) {
	s.mu.RLock()
	states := make(map[string]string, len(s.states))
	for k, v := range s.states {
		states[k] = v
	}
	requests := s.requests
	reconnects := s.reconnects
	s.mu.RUnlock()

	c.JSON(http.StatusOK, gin.H{
		"uptime_seconds":   int64(time.Since(s.started).Seconds()),
		"transports":       states,
		"requests_handled": requests,
		"relay_reconnects": reconnects,
	})
}
