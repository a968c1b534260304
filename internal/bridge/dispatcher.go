// Package bridge contains the transport-independent MCP dispatcher, the
// stdio and relay transports, and the supervisor that runs them together.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/synobridge/synobridge/internal/events"
	"github.com/synobridge/synobridge/internal/jsonrpc"
	"github.com/synobridge/synobridge/internal/provider"
)

// protocolVersion is the MCP protocol revision the bridge speaks.
const protocolVersion = "2024-11-05"

// ServerInfo identifies the bridge to MCP clients.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Dispatcher routes JSON-RPC messages to the tool provider. It is shared by
// all transports and safe for concurrent use.
type Dispatcher struct {
	info  ServerInfo
	tp    provider.ToolProvider
	bus   *events.Bus
	debug bool
}

// NewDispatcher creates a dispatcher for the given provider. With debug set,
// full message payloads are logged; otherwise only method-level lines.
func NewDispatcher(info ServerInfo, tp provider.ToolProvider, bus *events.Bus, debug bool) *Dispatcher {
	return &Dispatcher{info: info, tp: tp, bus: bus, debug: debug}
}

// Dispatch handles one raw JSON-RPC message and returns the serialized
// response, or nil when the message is a notification. Panics inside a
// handler become internal errors rather than killing the transport.
func (d *Dispatcher) Dispatch(ctx context.Context, raw []byte, transport string) (out []byte) {
	if d.debug {
		log.Printf("[%s] <- %s", transport, raw)
	}

	req, err := jsonrpc.Decode(raw)
	if err != nil {
		log.Printf("[%s] parse error: %v", transport, err)
		return d.encode(jsonrpc.NewError(nil, jsonrpc.ErrParseError(err.Error())))
	}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("[%s] panic handling %s: %v", transport, req.Method, r)
			out = nil
			if !req.IsNotification() {
				out = d.encode(jsonrpc.NewError(req.ID, jsonrpc.ErrInternalError(fmt.Sprint(r))))
			}
		}
	}()

	if req.IsNotification() {
		d.handleNotification(req, transport)
		return nil
	}

	log.Printf("[%s] %s id=%s", transport, req.Method, req.ID)
	resp := d.handleRequest(ctx, req, transport)
	if d.bus != nil {
		d.bus.Publish(events.NewRequestHandledEvent(transport, req.Method, resp.Error != nil))
	}
	out = d.encode(resp)
	if d.debug && out != nil {
		log.Printf("[%s] -> %s", transport, out)
	}
	return out
}

func (d *Dispatcher) handleNotification(req *jsonrpc.Request, transport string) {
	switch req.Method {
	case "notifications/initialized":
		log.Printf("[%s] client initialized", transport)
	default:
		if strings.HasPrefix(req.Method, "notifications/") {
			log.Printf("[%s] notification: %s", transport, req.Method)
		}
	}
}

func (d *Dispatcher) handleRequest(ctx context.Context, req *jsonrpc.Request, transport string) *jsonrpc.Response {
	switch req.Method {
	case "initialize":
		return d.handleInitialize(req)
	case "ping":
		return d.result(req.ID, "pong")
	case "tools/list":
		return d.handleToolsList(ctx, req)
	case "tools/call":
		return d.handleToolsCall(ctx, req)
	default:
		return jsonrpc.NewError(req.ID, jsonrpc.ErrMethodNotFound(req.Method))
	}
}

func (d *Dispatcher) handleInitialize(req *jsonrpc.Request) *jsonrpc.Response {
	return d.result(req.ID, map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities": map[string]any{
			"tools":     map[string]any{},
			"logging":   map[string]any{},
			"prompts":   map[string]any{},
			"resources": map[string]any{},
		},
		"serverInfo": d.info,
	})
}

func (d *Dispatcher) handleToolsList(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response {
	tools, err := d.tp.ListTools(ctx)
	if err != nil {
		return jsonrpc.NewError(req.ID, jsonrpc.ErrInternalError(err.Error()))
	}
	if tools == nil {
		tools = []jsonrpc.Tool{}
	}
	return d.result(req.ID, map[string]any{"tools": tools})
}

func (d *Dispatcher) handleToolsCall(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response {
	var params struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := jsonrpc.Unmarshal(req.Params, &params); err != nil || params.Name == "" {
		return jsonrpc.NewError(req.ID, jsonrpc.ErrInvalidParams("missing tool name"))
	}

	content, err := d.tp.CallTool(ctx, params.Name, params.Arguments)
	if err != nil {
		return jsonrpc.NewError(req.ID, jsonrpc.ErrInternalError(err.Error()))
	}
	if content == nil {
		content = []jsonrpc.Content{}
	}
	return d.result(req.ID, map[string]any{
		"content": content,
		"isError": false,
	})
}

func (d *Dispatcher) result(id json.RawMessage, v any) *jsonrpc.Response {
	resp, err := jsonrpc.NewResult(id, v)
	if err != nil {
		return jsonrpc.NewError(id, jsonrpc.ErrInternalError(err.Error()))
	}
	return resp
}

func (d *Dispatcher) encode(resp *jsonrpc.Response) []byte {
	data, err := jsonrpc.Encode(resp)
	if err != nil {
		log.Printf("encode response: %v", err)
		return nil
	}
	return data
}
