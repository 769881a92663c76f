package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ironsheep/vision-mcp/internal/logging"
)

// ProtocolVersion is the MCP revision the server speaks.
const ProtocolVersion = "2024-11-05"

// JSON-RPC error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

// maxLineSize is the default bound on a single JSON-RPC message.
const maxLineSize = 16 * 1024 * 1024

// Server handles MCP protocol communication over a line-delimited stream.
type Server struct {
	dispatcher *Dispatcher
	name       string
	version    string
	log        logging.Logger

	// maxLine bounds one input line in bytes.
	maxLine int
}

// MCPRequest represents an incoming JSON-RPC request
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an outgoing JSON-RPC response
type MCPResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *MCPError `json:"error,omitempty"`
}

// MCPError represents a JSON-RPC error
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// New creates a new MCP server instance
func New(dispatcher *Dispatcher, name, version string, log logging.Logger) *Server {
	if log == nil {
		log = logging.Default
	}
	return &Server{dispatcher: dispatcher, name: name, version: version, log: log, maxLine: maxLineSize}
}

// Run serves requests from r, writing responses to w, one at a time. It
// returns nil when r reaches EOF and ctx.Err() when ctx ends first. A line
// longer than the message limit is answered with an invalid request error
// and skipped.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	lines := make(chan inputLine)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		br := bufio.NewReaderSize(r, 64*1024)
		for {
			line, tooLong, err := readLine(br, s.maxLine)
			if err != nil {
				if !errors.Is(err, io.EOF) {
					readErr <- err
				}
				return
			}
			select {
			case lines <- inputLine{data: line, tooLong: tooLong}:
			case <-ctx.Done():
				return
			}
		}
	}()

	encoder := json.NewEncoder(w)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case in, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					return fmt.Errorf("failed to read input: %w", err)
				default:
				}
				if err := ctx.Err(); err != nil {
					return err
				}
				s.log.Infof("input closed, stopping")
				return nil
			}
			var resp *MCPResponse
			if in.tooLong {
				s.log.Warnf("dropping message over %d bytes", s.maxLine)
				resp = s.errorResponse(nil, codeInvalidRequest, "Invalid request",
					fmt.Sprintf("message exceeds %d bytes", s.maxLine))
			} else {
				resp = s.handleLine(ctx, in.data)
			}
			if resp == nil {
				continue
			}
			if err := encoder.Encode(resp); err != nil {
				return fmt.Errorf("failed to encode response: %w", err)
			}
		}
	}
}

type inputLine struct {
	data    []byte
	tooLong bool
}

// readLine returns the next newline-terminated line without its terminator.
// A line over limit bytes is consumed and reported as tooLong with no data.
// A final unterminated line is returned before io.EOF.
func readLine(br *bufio.Reader, limit int) (line []byte, tooLong bool, err error) {
	for {
		chunk, err := br.ReadSlice('\n')
		if !tooLong {
			if len(line)+len(bytes.TrimRight(chunk, "\r\n")) > limit {
				tooLong = true
				line = nil
			} else {
				line = append(line, chunk...)
			}
		}
		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if len(line) == 0 && !tooLong {
				return nil, false, io.EOF
			}
			return bytes.TrimRight(line, "\r\n"), tooLong, nil
		case err != nil:
			return nil, false, err
		}
		return bytes.TrimRight(line, "\r\n"), tooLong, nil
	}
}

// handleLine decodes one message and routes it. Notifications get no reply.
func (s *Server) handleLine(ctx context.Context, line []byte) *MCPResponse {
	if len(strings.TrimSpace(string(line))) == 0 {
		return nil
	}
	var req MCPRequest
	if err := json.Unmarshal(line, &req); err != nil {
		s.log.Warnf("failed to parse request: %v", err)
		return s.errorResponse(nil, codeParseError, "Parse error", err.Error())
	}
	return s.handleRequest(ctx, &req)
}

// handleRequest routes requests to appropriate handlers
func (s *Server) handleRequest(ctx context.Context, req *MCPRequest) *MCPResponse {
	if req.Method == "" {
		return s.errorResponse(req.ID, codeInvalidRequest, "Invalid request", "missing method")
	}
	s.log.Debugf("request %v: %s", req.ID, req.Method)

	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	case "ping":
		return s.resultResponse(req.ID, map[string]any{})
	}
	if strings.HasPrefix(req.Method, "notifications/") {
		// Client acknowledgments such as notifications/initialized.
		return nil
	}
	return s.errorResponse(req.ID, codeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method), nil)
}

// handleInitialize responds to the initialize request
func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return s.resultResponse(req.ID, map[string]any{
		"protocolVersion": ProtocolVersion,
		"capabilities": map[string]any{
			"tools": map[string]any{},
		},
		"serverInfo": map[string]any{
			"name":    s.name,
			"version": s.version,
		},
	})
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return s.resultResponse(req.ID, map[string]any{
		"tools": s.dispatcher.Registry().List(),
	})
}

// handleToolsCall runs a tool. Tool failures are reported inside the result
// with isError set; only malformed params produce a JSON-RPC error.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, codeInvalidParams, "Invalid params", err.Error())
	}
	if params.Name == "" {
		return s.errorResponse(req.ID, codeInvalidParams, "Invalid params", "missing tool name")
	}
	return s.resultResponse(req.ID, s.dispatcher.Call(ctx, params.Name, params.Arguments))
}

func (s *Server) resultResponse(id any, result any) *MCPResponse {
	return &MCPResponse{JSONRPC: "2.0", ID: id, Result: result}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id any, code int, message string, data any) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}
