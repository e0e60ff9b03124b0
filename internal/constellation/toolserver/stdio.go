package toolserver

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
)

// rpcRequest is the minimal JSON-RPC 2.0 envelope stdio mode reads (spec
// §4.8 "bidirectional JSON messages").
type rpcRequest struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type callToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// StdioServer runs one fixed-facade session over stdin/stdout, with
// diagnostics on stderr (spec §4.8 "Stdio mode (single-session)").
type StdioServer struct {
	Session *Session
	Logger  *slog.Logger
}

// Serve reads one JSON-RPC request per line from in and writes one response
// per line to out, until in is exhausted or ctx is cancelled.
func (s *StdioServer) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	enc := json.NewEncoder(out)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req rpcRequest
		if err := json.Unmarshal(line, &req); err != nil {
			logger.Warn("stdio: malformed request", "error", err)
			continue
		}

		resp := s.handle(ctx, req)
		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("stdio: failed to write response: %w", err)
		}
	}
	return scanner.Err()
}

func (s *StdioServer) handle(ctx context.Context, req rpcRequest) rpcResponse {
	switch req.Method {
	case "tools/list":
		return rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: mcp.ListToolsResult{Tools: ToolDefinitions()}}
	case "tools/call":
		var params callToolParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: -32602, Message: "invalid params: " + err.Error()}}
		}
		result, err := Dispatch(ctx, s.Session, params.Name, params.Arguments)
		if err != nil {
			return rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: -32602, Message: err.Error()}}
		}
		return rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: result}
	default:
		return rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: -32601, Message: "unknown method " + req.Method}}
	}
}
