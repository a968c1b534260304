package jsonrpc

import "fmt"

// Standard JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Error represents a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// NewRPCError creates an error with an explicit code.
func NewRPCError(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Error constructors for common cases

func ErrParseError(detail string) *Error {
	return NewRPCError(CodeParseError, "Parse error: "+detail)
}

func ErrInvalidRequest(detail string) *Error {
	return NewRPCError(CodeInvalidRequest, "Invalid Request: "+detail)
}

func ErrMethodNotFound(method string) *Error {
	return NewRPCError(CodeMethodNotFound, fmt.Sprintf("Method not found: %s", method))
}

func ErrInvalidParams(detail string) *Error {
	return NewRPCError(CodeInvalidParams, "Invalid params: "+detail)
}

func ErrInternalError(detail string) *Error {
	return NewRPCError(CodeInternalError, "Internal error: "+detail)
}
