// Package provider implements the backend tool provider: the tool catalog
// exposed over MCP and its dispatch onto the Synology API clients.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/synobridge/synobridge/internal/config"
	"github.com/synobridge/synobridge/internal/jsonrpc"
	"github.com/synobridge/synobridge/internal/synology"
)

// ToolProvider is the interface the bridge core consumes. It is shared by
// every connected transport, so implementations must tolerate concurrent
// calls.
type ToolProvider interface {
	// ListTools returns the current tool catalog.
	ListTools(ctx context.Context) ([]jsonrpc.Tool, error)
	// CallTool invokes a tool by name and returns its content items.
	CallTool(ctx context.Context, name string, args json.RawMessage) ([]jsonrpc.Content, error)
	// AutoLogin performs the configured auto-login. Idempotent.
	AutoLogin(ctx context.Context) error
	// Cleanup logs out all active sessions.
	Cleanup(ctx context.Context) error
}

// handler executes one tool call.
type handler func(ctx context.Context, args json.RawMessage) ([]jsonrpc.Content, error)

// Provider is the Synology-backed ToolProvider. Session state is keyed by
// NAS base URL so multiple hosts can be driven from one bridge.
type Provider struct {
	cfg *config.Config

	mu       sync.Mutex
	clients  map[string]*synology.Client
	auths    map[string]*synology.Auth
	sessions map[string]string // base URL -> session id
	fs       map[string]*synology.FileStation
	ds       map[string]*synology.DownloadStation

	handlers map[string]handler
}

// New creates a Provider for the given configuration.
func New(cfg *config.Config) *Provider {
	p := &Provider{
		cfg:      cfg,
		clients:  make(map[string]*synology.Client),
		auths:    make(map[string]*synology.Auth),
		sessions: make(map[string]string),
		fs:       make(map[string]*synology.FileStation),
		ds:       make(map[string]*synology.DownloadStation),
	}
	p.handlers = p.buildHandlers()
	return p
}

// config returns the active configuration. Guarded because the env watcher
// may swap it at runtime.
func (p *Provider) config() *config.Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg
}

// ListTools returns the tool catalog. Login/logout tools are only listed
// when auto-login is not handling authentication.
func (p *Provider) ListTools(ctx context.Context) ([]jsonrpc.Tool, error) {
	cfg := p.config()
	tools := catalog()
	if !cfg.AutoLogin || !cfg.HasSynologyCredentials() {
		tools = append(tools, authTools()...)
	}
	return tools, nil
}

// CallTool dispatches a tool call. Handler failures are reported as text
// content so the assistant sees them; an unknown tool name is an error.
func (p *Provider) CallTool(ctx context.Context, name string, args json.RawMessage) ([]jsonrpc.Content, error) {
	h, ok := p.handlers[name]
	if !ok {
		return nil, fmt.Errorf("unknown tool: %s", name)
	}

	content, err := h(ctx, args)
	if err != nil {
		return []jsonrpc.Content{
			jsonrpc.TextContent(fmt.Sprintf("Error executing %s: %v", name, err)),
		}, nil
	}
	return content, nil
}

// AutoLogin logs in with the configured credentials when AUTO_LOGIN is set.
// Re-running it is safe; an existing session for the host is replaced.
func (p *Provider) AutoLogin(ctx context.Context) error {
	cfg := p.config()
	if !cfg.AutoLogin {
		log.Println("Auto-login disabled (AUTO_LOGIN=false)")
		return nil
	}
	if !cfg.HasSynologyCredentials() {
		log.Println("No Synology credentials configured")
		return nil
	}

	baseURL := cfg.SynologyURL
	auth := p.authFor(baseURL)

	sid, err := auth.Login(ctx, cfg.SynologyUsername, cfg.SynologyPassword)
	if err != nil {
		return fmt.Errorf("auto-login failed for %s: %w", baseURL, err)
	}

	p.mu.Lock()
	p.sessions[baseURL] = sid
	// Drop cached station clients so they pick up the new session.
	delete(p.fs, baseURL)
	delete(p.ds, baseURL)
	p.mu.Unlock()

	log.Printf("Auto-login successful for %s (session %s...)", baseURL, truncateSID(sid))
	return nil
}

// UpdateCredentials swaps the active configuration and re-runs auto-login.
// Invoked by the env watcher on credential rotation.
func (p *Provider) UpdateCredentials(ctx context.Context, cfg *config.Config) error {
	p.mu.Lock()
	p.cfg = cfg
	p.mu.Unlock()
	return p.AutoLogin(ctx)
}

// Cleanup logs out every active session. Expired sessions are tolerated.
func (p *Provider) Cleanup(ctx context.Context) error {
	p.mu.Lock()
	type entry struct {
		baseURL string
		sid     string
		auth    *synology.Auth
	}
	entries := make([]entry, 0, len(p.sessions))
	for baseURL, sid := range p.sessions {
		entries = append(entries, entry{baseURL, sid, p.auths[baseURL]})
	}
	p.sessions = make(map[string]string)
	p.fs = make(map[string]*synology.FileStation)
	p.ds = make(map[string]*synology.DownloadStation)
	p.mu.Unlock()

	var firstErr error
	for _, e := range entries {
		if e.auth == nil {
			continue
		}
		if err := e.auth.Logout(ctx, e.sid); err != nil {
			log.Printf("Failed to logout %s: %v", e.baseURL, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		log.Printf("Session %s... logged out", truncateSID(e.sid))
	}
	return firstErr
}

// SessionCount returns the number of active sessions.
func (p *Provider) SessionCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}

// baseURLFrom resolves the NAS base URL from tool arguments or config.
func (p *Provider) baseURLFrom(argURL string) (string, error) {
	if argURL != "" {
		return argURL, nil
	}
	if cfg := p.config(); cfg.SynologyURL != "" {
		return cfg.SynologyURL, nil
	}
	return "", fmt.Errorf("no base_url provided and SYNOLOGY_URL not configured")
}

// clientFor returns the API client for a host, creating it on first use.
func (p *Provider) clientFor(baseURL string) *synology.Client {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[baseURL]; ok {
		return c
	}
	c := synology.NewClient(baseURL, p.cfg.VerifySSL)
	p.clients[baseURL] = c
	return c
}

// fileStationForArg resolves the host from a tool argument and returns its
// FileStation client.
func (p *Provider) fileStationForArg(argURL string) (*synology.FileStation, error) {
	baseURL, err := p.baseURLFrom(argURL)
	if err != nil {
		return nil, err
	}
	return p.fileStationFor(baseURL)
}

// downloadStationForArg resolves the host from a tool argument and returns
// its Download Station client.
func (p *Provider) downloadStationForArg(argURL string) (*synology.DownloadStation, error) {
	baseURL, err := p.baseURLFrom(argURL)
	if err != nil {
		return nil, err
	}
	return p.downloadStationFor(baseURL)
}

// authFor returns the authenticator for a host, creating it on first use.
func (p *Provider) authFor(baseURL string) *synology.Auth {
	client := p.clientFor(baseURL)
	p.mu.Lock()
	defer p.mu.Unlock()
	if a, ok := p.auths[baseURL]; ok {
		return a
	}
	a := synology.NewAuth(client)
	p.auths[baseURL] = a
	return a
}

// fileStationFor returns a FileStation client for the host's active session.
func (p *Provider) fileStationFor(baseURL string) (*synology.FileStation, error) {
	client := p.clientFor(baseURL)
	p.mu.Lock()
	defer p.mu.Unlock()

	sid, ok := p.sessions[baseURL]
	if !ok {
		return nil, fmt.Errorf("no active session for %s, please login first", baseURL)
	}
	if fs, ok := p.fs[baseURL]; ok {
		return fs, nil
	}
	fs := synology.NewFileStation(client, sid)
	p.fs[baseURL] = fs
	return fs, nil
}

// downloadStationFor returns a DownloadStation client for the host's session.
func (p *Provider) downloadStationFor(baseURL string) (*synology.DownloadStation, error) {
	client := p.clientFor(baseURL)
	p.mu.Lock()
	defer p.mu.Unlock()

	sid, ok := p.sessions[baseURL]
	if !ok {
		return nil, fmt.Errorf("no active session for %s, please login first", baseURL)
	}
	if ds, ok := p.ds[baseURL]; ok {
		return ds, nil
	}
	ds := synology.NewDownloadStation(client, sid)
	p.ds[baseURL] = ds
	return ds, nil
}

func truncateSID(sid string) string {
	if len(sid) > 8 {
		return sid[:8]
	}
	return sid
}
