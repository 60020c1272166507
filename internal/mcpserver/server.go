package mcpserver

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// maxRequestBytes caps a single JSON-RPC request's wire size.
const maxRequestBytes = 10 << 20 // 10 MiB

// protocolVersion is the tool-call protocol version this server implements.
const protocolVersion = "2024-11-05"

// Server dispatches JSON-RPC 2.0 requests against one Bundle's tool catalog.
// It is transport-agnostic: HandleMessage takes and returns raw JSON, so the
// same Server can be driven from a stdio loop or an HTTP handler.
type Server struct {
	bundle  *Bundle
	tools   map[string]Tool
	logger  *slog.Logger
	initMu  sync.Mutex
	started bool
}

// NewServer creates a Server over bundle's tool catalog.
func NewServer(bundle *Bundle, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	tools := make(map[string]Tool)
	for _, t := range Catalog() {
		tools[t.Name] = t
	}
	return &Server{bundle: bundle, tools: tools, logger: logger}
}

// HandleMessage decodes, dispatches, and encodes a single JSON-RPC request.
// Notifications (no ID) return nil, nil: no response is written.
func (s *Server) HandleMessage(ctx context.Context, raw []byte) ([]byte, error) {
	if len(raw) > maxRequestBytes {
		return encodeResponse(nil, nil, newError(ErrCodeInvalidRequest, "request exceeds 10MiB limit"))
	}

	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return encodeResponse(nil, nil, newError(ErrCodeParseError, "invalid JSON: "+err.Error()))
	}
	if req.JSONRPC != "2.0" {
		return encodeResponse(req.ID, nil, newError(ErrCodeInvalidRequest, "jsonrpc must be \"2.0\""))
	}

	result, rpcErr := s.dispatch(ctx, req)
	if len(req.ID) == 0 {
		return nil, nil // notification: no response
	}
	return encodeResponse(req.ID, result, rpcErr)
}

func (s *Server) dispatch(ctx context.Context, req Request) (any, *RPCError) {
	s.logger.Debug("mcpserver request", slog.String("method", req.Method))

	switch req.Method {
	case "initialize":
		s.initMu.Lock()
		s.started = true
		s.initMu.Unlock()
		return map[string]any{
			"protocolVersion": protocolVersion,
			"serverInfo":      map[string]string{"name": "sourcelens", "version": "dev"},
			"capabilities":    map[string]any{"tools": map[string]any{}},
		}, nil
	case "ping":
		return map[string]any{}, nil
	case "tools/list":
		return s.listTools(), nil
	case "tools/call":
		return s.callTool(ctx, req.Params)
	default:
		return nil, newError(ErrCodeMethodNotFound, fmt.Sprintf("method %q not found", req.Method))
	}
}

type toolListing struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

func (s *Server) listTools() map[string]any {
	out := make([]toolListing, 0, len(s.tools))
	for _, t := range Catalog() {
		out = append(out, toolListing{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
	}
	return map[string]any{"tools": out}
}

type toolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

func (s *Server) callTool(ctx context.Context, raw json.RawMessage) (any, *RPCError) {
	var p toolCallParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, newError(ErrCodeInvalidParams, "invalid tools/call params: "+err.Error())
	}

	tool, ok := s.tools[p.Name]
	if !ok {
		return nil, newToolError(p.Name, ErrCodeMethodNotFound, "unknown_tool", fmt.Sprintf("tool %q not found", p.Name))
	}

	result, err := tool.Handler(ctx, s.bundle, p.Arguments)
	if err != nil {
		s.logger.Warn("tool call failed", slog.String("tool", p.Name), slog.String("error", err.Error()))
		return nil, mapToolError(p.Name, err)
	}

	content, err := json.Marshal(result)
	if err != nil {
		return nil, newToolError(p.Name, ErrCodeInternalError, "internal_error", "failed to encode result")
	}
	return map[string]any{
		"content": []map[string]any{{"type": "text", "text": string(content)}},
	}, nil
}

// CallTool invokes a registered tool directly, bypassing the JSON-RPC
// envelope. For internal callers (the validation harness) that want a typed
// Go result instead of dispatching a full request/response message.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	tool, ok := s.tools[name]
	if !ok {
		return nil, fmt.Errorf("tool %q not found", name)
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encoding tool args: %w", err)
	}
	return tool.Handler(ctx, s.bundle, raw)
}

func encodeResponse(id json.RawMessage, result any, rpcErr *RPCError) ([]byte, error) {
	resp := Response{JSONRPC: "2.0", ID: id, Result: result, Error: rpcErr}
	return json.Marshal(resp)
}

// ServeStdio runs the read-eval-respond loop over r/w, one JSON value per
// line, until r is exhausted or ctx is canceled. This is the transport the
// `serve --transport stdio` CLI command uses.
func (s *Server) ServeStdio(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRequestBytes)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		respBytes, err := s.HandleMessage(ctx, line)
		if err != nil {
			return fmt.Errorf("handling message: %w", err)
		}
		if respBytes == nil {
			continue
		}
		if _, err := w.Write(append(respBytes, '\n')); err != nil {
			return fmt.Errorf("writing response: %w", err)
		}
	}
	return scanner.Err()
}
