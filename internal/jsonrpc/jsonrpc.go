// Package jsonrpc provides the JSON-RPC 2.0 message types shared by every
// bridge transport.
package jsonrpc

import (
	"encoding/json"

	jsoniter "github.com/json-iterator/go"
)

// Version is the JSON-RPC protocol version string.
const Version = "2.0"

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// Request is an inbound JSON-RPC 2.0 request or notification.
// A nil or JSON-null ID marks a notification (no response expected).
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the request carries no usable ID.
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0 || string(r.ID) == "null"
}

// Response is an outbound JSON-RPC 2.0 response. Exactly one of Result and
// Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// NewResult builds a success response, marshalling result with the codec.
func NewResult(id json.RawMessage, result any) (*Response, error) {
	data, err := codec.Marshal(result)
	if err != nil {
		return nil, err
	}
	return &Response{JSONRPC: Version, ID: id, Result: data}, nil
}

// NewError builds an error response.
func NewError(id json.RawMessage, rpcErr *Error) *Response {
	return &Response{JSONRPC: Version, ID: id, Error: rpcErr}
}

// Decode parses raw bytes into a Request.
func Decode(data []byte) (*Request, error) {
	var req Request
	if err := codec.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// Encode serializes a response for the wire.
func Encode(resp *Response) ([]byte, error) {
	return codec.Marshal(resp)
}

// Marshal exposes the codec for callers that shape params or results.
func Marshal(v any) ([]byte, error) {
	return codec.Marshal(v)
}

// Unmarshal exposes the codec for callers that decode params.
func Unmarshal(data []byte, v any) error {
	return codec.Unmarshal(data, v)
}

// MarshalIndent renders v as indented JSON for human-readable tool output.
func MarshalIndent(v any) ([]byte, error) {
	return codec.MarshalIndent(v, "", "  ")
}

// Tool describes a callable tool as forwarded to MCP clients.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	InputSchema any    `json:"inputSchema,omitempty"`
}

// Content is a single tool-result content item.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// TextContent builds a plain-text content item.
func TextContent(text string) Content {
	return Content{Type: "text", Text: text}
}
