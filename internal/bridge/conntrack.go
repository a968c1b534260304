package bridge

import (
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Tracker holds the open connections of the bridge so shutdown can close
// them within a bounded time.
type Tracker struct {
	mu    sync.Mutex
	conns map[string]io.Closer
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{conns: make(map[string]io.Closer)}
}

// Add registers a connection and returns its tracking id.
func (t *Tracker) Add(c io.Closer) string {
	id := uuid.NewString()
	t.mu.Lock()
	t.conns[id] = c
	t.mu.Unlock()
	return id
}

// Remove drops a connection from the tracker without closing it.
func (t *Tracker) Remove(id string) {
	t.mu.Lock()
	delete(t.conns, id)
	t.mu.Unlock()
}

// Len returns the number of tracked connections.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.conns)
}

// CloseAll closes every tracked connection, waiting at most timeout for the
// close calls to finish. Connections still open after the deadline are
// abandoned; their close goroutines finish in the background.
func (t *Tracker) CloseAll(timeout time.Duration) {
	t.mu.Lock()
	conns := make([]io.Closer, 0, len(t.conns))
	for _, c := range t.conns {
		conns = append(conns, c)
	}
	t.conns = make(map[string]io.Closer)
	t.mu.Unlock()

	if len(conns) == 0 {
		return
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	for _, c := range conns {
		wg.Add(1)
		go func(c io.Closer) {
			defer wg.Done()
			if err := c.Close(); err != nil {
				log.Printf("Close connection: %v", err)
			}
		}(c)
	}
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		log.Printf("Timed out closing %d connection(s)", len(conns))
	}
}
