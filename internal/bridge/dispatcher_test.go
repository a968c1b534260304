package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/synobridge/synobridge/internal/jsonrpc"
)

// fakeProvider is a scriptable ToolProvider for dispatcher tests.
type fakeProvider struct {
	tools    []jsonrpc.Tool
	listErr  error
	content  []jsonrpc.Content
	callErr  error
	panicMsg string

	lastTool string
	lastArgs json.RawMessage
}

func (f *fakeProvider) ListTools(ctx context.Context) ([]jsonrpc.Tool, error) {
	return f.tools, f.listErr
}

func (f *fakeProvider) CallTool(ctx context.Context, name string, args json.RawMessage) ([]jsonrpc.Content, error) {
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	f.lastTool = name
	f.lastArgs = args
	return f.content, f.callErr
}

func (f *fakeProvider) AutoLogin(ctx context.Context) error { return nil }
func (f *fakeProvider) Cleanup(ctx context.Context) error   { return nil }

func newTestDispatcher(fp *fakeProvider) *Dispatcher {
	return NewDispatcher(ServerInfo{Name: "synobridge-test", Version: "0.0.1"}, fp, nil, false)
}

type wireResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func dispatch(t *testing.T, d *Dispatcher, raw string) *wireResponse {
	t.Helper()
	out := d.Dispatch(context.Background(), []byte(raw), "stdio")
	if out == nil {
		return nil
	}
	var resp wireResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		t.Fatalf("response is not valid JSON: %v\n%s", err, out)
	}
	return &resp
}

func TestDispatchPing(t *testing.T) {
	d := newTestDispatcher(&fakeProvider{})
	resp := dispatch(t, d, `{"jsonrpc":"2.0","id":7,"method":"ping"}`)
	if resp == nil {
		t.Fatal("expected response")
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	if string(resp.Result) != `"pong"` {
		t.Errorf("result = %s, want \"pong\"", resp.Result)
	}
	if string(resp.ID) != "7" {
		t.Errorf("id = %s, want 7", resp.ID)
	}
}

func TestDispatchMethodNotFound(t *testing.T) {
	d := newTestDispatcher(&fakeProvider{})
	resp := dispatch(t, d, `{"jsonrpc":"2.0","id":"abc","method":"resources/read"}`)
	if resp == nil || resp.Error == nil {
		t.Fatal("expected error response")
	}
	if resp.Error.Code != -32601 {
		t.Errorf("code = %d, want -32601", resp.Error.Code)
	}
	if !strings.Contains(resp.Error.Message, "resources/read") {
		t.Errorf("message %q does not name the method", resp.Error.Message)
	}
	if string(resp.ID) != `"abc"` {
		t.Errorf("id = %s, want \"abc\"", resp.ID)
	}
}

func TestDispatchParseError(t *testing.T) {
	d := newTestDispatcher(&fakeProvider{})
	resp := dispatch(t, d, `{"jsonrpc":"2.0",`)
	if resp == nil || resp.Error == nil {
		t.Fatal("expected error response")
	}
	if resp.Error.Code != -32700 {
		t.Errorf("code = %d, want -32700", resp.Error.Code)
	}
}

func TestDispatchNotificationProducesNoResponse(t *testing.T) {
	d := newTestDispatcher(&fakeProvider{})
	for _, raw := range []string{
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":null,"method":"notifications/cancelled"}`,
	} {
		if out := d.Dispatch(context.Background(), []byte(raw), "stdio"); out != nil {
			t.Errorf("notification produced a response: %s", out)
		}
	}
}

func TestDispatchInitialize(t *testing.T) {
	d := newTestDispatcher(&fakeProvider{})
	resp := dispatch(t, d, `{"jsonrpc":"2.0","id":0,"method":"initialize","params":{"protocolVersion":"2024-11-05"}}`)
	if resp == nil || resp.Error != nil {
		t.Fatalf("unexpected response: %+v", resp)
	}

	var result struct {
		ProtocolVersion string                    `json:"protocolVersion"`
		Capabilities    map[string]map[string]any `json:"capabilities"`
		ServerInfo      ServerInfo                `json:"serverInfo"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.ProtocolVersion != "2024-11-05" {
		t.Errorf("protocolVersion = %q", result.ProtocolVersion)
	}
	if result.ServerInfo.Name != "synobridge-test" {
		t.Errorf("serverInfo.name = %q", result.ServerInfo.Name)
	}
	for _, name := range []string{"tools", "logging", "prompts", "resources"} {
		if _, ok := result.Capabilities[name]; !ok {
			t.Errorf("capabilities missing %q", name)
		}
	}
}

func TestDispatchToolsList(t *testing.T) {
	fp := &fakeProvider{tools: []jsonrpc.Tool{{Name: "list_shares"}, {Name: "ds_list_tasks"}}}
	d := newTestDispatcher(fp)
	resp := dispatch(t, d, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	if resp == nil || resp.Error != nil {
		t.Fatalf("unexpected response: %+v", resp)
	}

	var result struct {
		Tools []jsonrpc.Tool `json:"tools"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if len(result.Tools) != 2 || result.Tools[0].Name != "list_shares" {
		t.Errorf("tools = %+v", result.Tools)
	}
}

func TestDispatchToolsCall(t *testing.T) {
	fp := &fakeProvider{content: []jsonrpc.Content{jsonrpc.TextContent("done")}}
	d := newTestDispatcher(fp)
	resp := dispatch(t, d, `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"rename_file","arguments":{"path":"/music/a.mp3","new_name":"b.mp3"}}}`)
	if resp == nil || resp.Error != nil {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if fp.lastTool != "rename_file" {
		t.Errorf("called tool = %q", fp.lastTool)
	}

	var result struct {
		Content []jsonrpc.Content `json:"content"`
		IsError bool              `json:"isError"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.IsError {
		t.Error("isError = true")
	}
	if len(result.Content) != 1 || result.Content[0].Text != "done" {
		t.Errorf("content = %+v", result.Content)
	}
}

func TestDispatchToolsCallProviderError(t *testing.T) {
	fp := &fakeProvider{callErr: errors.New("unknown tool: bogus")}
	d := newTestDispatcher(fp)
	resp := dispatch(t, d, `{"jsonrpc":"2.0","id":9,"method":"tools/call","params":{"name":"bogus"}}`)
	if resp == nil || resp.Error == nil {
		t.Fatal("expected error response")
	}
	if resp.Error.Code != -32603 {
		t.Errorf("code = %d, want -32603", resp.Error.Code)
	}
	if !strings.HasPrefix(resp.Error.Message, "Internal error: ") {
		t.Errorf("message = %q", resp.Error.Message)
	}
	if string(resp.ID) != "9" {
		t.Errorf("id = %s, want 9", resp.ID)
	}
}

func TestDispatchToolsCallMissingName(t *testing.T) {
	d := newTestDispatcher(&fakeProvider{})
	resp := dispatch(t, d, `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{}}`)
	if resp == nil || resp.Error == nil {
		t.Fatal("expected error response")
	}
	if resp.Error.Code != -32602 {
		t.Errorf("code = %d, want -32602", resp.Error.Code)
	}
}

func TestDispatchRecoversFromPanic(t *testing.T) {
	fp := &fakeProvider{panicMsg: "handler blew up"}
	d := newTestDispatcher(fp)
	resp := dispatch(t, d, `{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"list_shares"}}`)
	if resp == nil || resp.Error == nil {
		t.Fatal("expected error response after panic")
	}
	if resp.Error.Code != -32603 {
		t.Errorf("code = %d, want -32603", resp.Error.Code)
	}
	if string(resp.ID) != "5" {
		t.Errorf("id = %s, want 5", resp.ID)
	}
}
