package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/synobridge/synobridge/internal/config"
	"github.com/synobridge/synobridge/internal/diag"
	"github.com/synobridge/synobridge/internal/events"
	"github.com/synobridge/synobridge/internal/provider"
)

// Shutdown phase limits. Each phase is bounded so a wedged connection or a
// slow NAS cannot hang process exit; overruns are logged and skipped.
const (
	taskWaitTimeout  = 3 * time.Second
	connCloseTimeout = 2 * time.Second
	cleanupTimeout   = 2 * time.Second
)

// ToolBackend is the provider surface the supervisor manages: tool dispatch
// plus the lifecycle hooks for login, credential reload, and cleanup.
type ToolBackend interface {
	provider.ToolProvider
	UpdateCredentials(ctx context.Context, cfg *config.Config) error
}

// Supervisor wires the provider, dispatcher, and transports together and
// owns the shutdown sequence.
type Supervisor struct {
	cfg        *config.Config
	provider   ToolBackend
	bus        *events.Bus
	tracker    *Tracker
	dispatcher *Dispatcher
	diag       *diag.Server
	envFile    string

	stdin  io.Reader
	stdout io.Writer

	mu       sync.Mutex
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewSupervisor builds a supervisor for the given config. stdin/stdout are
// the stdio transport endpoints, injectable for tests.
func NewSupervisor(cfg *config.Config, prov ToolBackend, bus *events.Bus, envFile string, stdin io.Reader, stdout io.Writer) *Supervisor {
	s := &Supervisor{
		cfg:      cfg,
		provider: prov,
		bus:      bus,
		tracker:  NewTracker(),
		envFile:  envFile,
		stdin:    stdin,
		stdout:   stdout,
	}
	s.dispatcher = NewDispatcher(ServerInfo{Name: cfg.ServerName, Version: cfg.ServerVersion}, prov, bus, cfg.Debug)
	if cfg.DiagAddr != "" {
		s.diag = diag.NewServer(cfg.DiagAddr, bus)
	}
	return s
}

// Dispatcher exposes the shared dispatcher, mainly for tests.
func (s *Supervisor) Dispatcher() *Dispatcher {
	return s.dispatcher
}

type taskResult struct {
	name string
	err  error
}

// Run starts every configured component and blocks until a transport
// finishes or ctx is cancelled. A clean stdin EOF and a cancelled context
// both return nil; a fatal transport error is returned to the caller.
func (s *Supervisor) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	defer s.Stop()

	log.Printf("Starting %s v%s", s.cfg.ServerName, s.cfg.ServerVersion)

	if err := s.provider.AutoLogin(runCtx); err != nil {
		// Tools report their own session errors; a failed login at startup
		// should not prevent the transports from coming up.
		log.Printf("Warning: %v", err)
	}

	if s.envFile != "" {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			config.Watch(runCtx, s.envFile, s.onConfigChange)
		}()
	}

	if s.diag != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.diag.Run(runCtx); err != nil {
				log.Printf("Diagnostics server stopped: %v", err)
			}
		}()
	}

	results := make(chan taskResult, 2)

	stdio := NewStdio(s.dispatcher, s.bus, s.stdin, s.stdout)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		results <- taskResult{"stdio", stdio.Run(runCtx)}
	}()

	if s.cfg.RelayEnabled {
		relay := NewRelay(s.dispatcher, s.bus, s.tracker, s.cfg.RelayEndpoint, s.cfg.RelayToken)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			results <- taskResult{"relay", relay.Run(runCtx)}
		}()
		log.Printf("Relay transport enabled: %s", s.cfg.RelayEndpoint)
	}

	select {
	case <-runCtx.Done():
		log.Println("Shutdown requested")
		return nil
	case res := <-results:
		if res.err == nil || errors.Is(res.err, context.Canceled) {
			log.Printf("Transport %s finished", res.name)
			return nil
		}
		return fmt.Errorf("%s transport: %w", res.name, res.err)
	}
}

// onConfigChange applies a reloaded config. Credential changes re-login;
// everything else takes effect on the next restart.
func (s *Supervisor) onConfigChange(cfg *config.Config) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.provider.UpdateCredentials(ctx, cfg); err != nil {
		log.Printf("Credential reload failed: %v", err)
	}
}

// Stop shuts the bridge down in bounded phases: cancel everything, wait for
// the tasks, close tracked connections, then log out NAS sessions. Safe to
// call more than once and from any goroutine.
func (s *Supervisor) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		cancel := s.cancel
		s.mu.Unlock()
		if cancel != nil {
			cancel()
		}

		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(taskWaitTimeout):
			log.Println("Timed out waiting for transport tasks")
		}

		s.tracker.CloseAll(connCloseTimeout)

		// Run cleanup off to the side so a provider that ignores its
		// context cannot hold up process exit.
		ctx, cancelCleanup := context.WithTimeout(context.Background(), cleanupTimeout)
		defer cancelCleanup()
		cleanupDone := make(chan error, 1)
		go func() { cleanupDone <- s.provider.Cleanup(ctx) }()
		select {
		case err := <-cleanupDone:
			if err != nil {
				log.Printf("Session cleanup: %v", err)
			}
		case <-ctx.Done():
			log.Println("Timed out waiting for session cleanup")
		}

		log.Println("Bridge stopped")
	})
}
