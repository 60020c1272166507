// Package mcpserver implements the tool-call server: a hand-rolled JSON-RPC
// 2.0 request/response loop exposing the search, graph, and memory
// subsystems as callable tools over stdio or HTTP.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	codeerrors "github.com/sourcelens/sourcelens/internal/errors"
)

// JSON-RPC 2.0 standard error codes, plus domain-specific codes in the same
// -320xx private range the protocol reserves for implementation-defined
// errors.
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603

	ErrCodeIndexNotFound   = -32001
	ErrCodeEmbeddingFailed = -32002
	ErrCodeTimeout         = -32003
	ErrCodeFileNotFound    = -32004
	ErrCodeFileTooLarge    = -32005
)

// Sentinel errors mapped onto the domain-specific codes above.
var (
	ErrIndexNotFound   = errors.New("index not found")
	ErrEmbeddingFailed = errors.New("embedding generation failed")
	ErrFileTooLarge    = errors.New("file too large")
	ErrToolNotFound    = errors.New("tool not found")
	ErrInvalidParams   = errors.New("invalid parameters")
)

// Request is a JSON-RPC 2.0 request object.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a JSON-RPC 2.0 response object. Exactly one of Result/Error is
// set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is a JSON-RPC 2.0 error object. Data carries the failing tool
// name and an error-type tag so a client can distinguish "tool errored" from
// "tool does not exist" without string-matching Message.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    *ErrorData `json:"data,omitempty"`
}

// ErrorData tags an RPCError with the tool that produced it and a coarse
// error-type classification.
type ErrorData struct {
	Tool      string `json:"tool,omitempty"`
	ErrorType string `json:"error_type,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("mcpserver: %d %s", e.Code, e.Message)
}

func newError(code int, msg string) *RPCError {
	return &RPCError{Code: code, Message: msg}
}

func newToolError(tool string, code int, errType, msg string) *RPCError {
	return &RPCError{Code: code, Message: msg, Data: &ErrorData{Tool: tool, ErrorType: errType}}
}

// mapToolError converts an error raised while executing a tool call into an
// RPCError, tagging it with the tool name that produced it. Mirrors the
// category-based mapping the rest of the codebase uses for CLI/log output.
func mapToolError(tool string, err error) *RPCError {
	if err == nil {
		return nil
	}

	var ce *codeerrors.CodeError
	if errors.As(err, &ce) {
		return mapCodeError(tool, ce)
	}

	switch {
	case errors.Is(err, ErrIndexNotFound):
		return newToolError(tool, ErrCodeIndexNotFound, "index_not_found", "Index not found. Run 'sourcelens index' first.")
	case errors.Is(err, ErrEmbeddingFailed):
		return newToolError(tool, ErrCodeEmbeddingFailed, "embedding_failed", "Embedding generation failed.")
	case errors.Is(err, context.DeadlineExceeded):
		return newToolError(tool, ErrCodeTimeout, "timeout", "Request timed out.")
	case errors.Is(err, context.Canceled):
		return newToolError(tool, ErrCodeTimeout, "canceled", "Request was canceled.")
	case errors.Is(err, ErrFileTooLarge):
		return newToolError(tool, ErrCodeFileTooLarge, "file_too_large", "File is too large to process.")
	case errors.Is(err, ErrInvalidParams):
		return newToolError(tool, ErrCodeInvalidParams, "invalid_params", err.Error())
	default:
		return newToolError(tool, ErrCodeInternalError, "internal_error", "Internal server error.")
	}
}

func mapCodeError(tool string, ce *codeerrors.CodeError) *RPCError {
	message := ce.Message
	if ce.Suggestion != "" {
		message = fmt.Sprintf("%s %s", ce.Message, ce.Suggestion)
	}

	switch ce.Category {
	case codeerrors.CategoryIO:
		switch ce.Code {
		case codeerrors.ErrCodeFileNotFound:
			return newToolError(tool, ErrCodeFileNotFound, "file_not_found", message)
		case codeerrors.ErrCodeFileTooLarge:
			return newToolError(tool, ErrCodeFileTooLarge, "file_too_large", message)
		case codeerrors.ErrCodeCorruptIndex:
			return newToolError(tool, ErrCodeIndexNotFound, "index_not_found", message)
		default:
			return newToolError(tool, ErrCodeInternalError, "io_error", message)
		}
	case codeerrors.CategoryNetwork:
		return newToolError(tool, ErrCodeTimeout, "network_error", message)
	case codeerrors.CategoryValidation:
		return newToolError(tool, ErrCodeInvalidParams, "invalid_params", message)
	default:
		return newToolError(tool, ErrCodeInternalError, "internal_error", message)
	}
}
