// Package mcp exposes the operations lifecycle and the grounded assistant
// over the Model Context Protocol.
//
// Tools mirror the HTTP API one to one. Failures are reported as tool
// results with IsError set, never as protocol errors, so MCP clients can
// show the message to the model.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/yami-59/network-ops-demo/internal/ctxutil"
	"github.com/yami-59/network-ops-demo/internal/model"
	"github.com/yami-59/network-ops-demo/internal/service/assistant"
	"github.com/yami-59/network-ops-demo/internal/service/operations"
)

const serverInstructions = `netops tracks network configuration operations (OP-YYYY-NNNN) through
PENDING, PLANNED, EXECUTED and FAILED. Every status change is an append-only
ledger entry.

Use netops_list_operations and netops_get_operation to read records,
netops_create_operation and netops_transition_operation to change them, and
netops_ask for a grounded natural-language summary. netops_ask only ever
cites stored operations; if it says the data is not available, it is not.`

// Server wraps the MCP server with the netops service layer.
type Server struct {
	mcpServer *mcpserver.MCPServer
	ops       *operations.Service
	assistant *assistant.Gateway
	logger    *slog.Logger
}

// New creates an MCP server with all resources and tools registered.
func New(ops *operations.Service, gw *assistant.Gateway, logger *slog.Logger, version string) *Server {
	s := &Server{
		ops:       ops,
		assistant: gw,
		logger:    logger,
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"netops",
		version,
		mcpserver.WithResourceCapabilities(false, true),
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithInstructions(serverInstructions),
		mcpserver.WithRecovery(),
	)

	s.registerResources()
	s.registerTools()
	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

type toolHandler = func(context.Context, mcplib.CallToolRequest) (*mcplib.CallToolResult, error)

// tool tags the context so service logs show the call came over MCP.
func (s *Server) tool(h toolHandler) toolHandler {
	return func(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		ctx = ctxutil.WithTransport(ctx, "mcp")
		return h(ctx, req)
	}
}

// jsonResult renders v as indented JSON text content.
func jsonResult(v any) (*mcplib.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal result: %w", err)
	}
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(data)},
		},
	}, nil
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}

// serviceErrorResult turns a lifecycle error into a tool error. Storage
// failures are logged and reported without their cause.
func (s *Server) serviceErrorResult(ctx context.Context, tool string, err error) *mcplib.CallToolResult {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		data, _ := json.Marshal(verr.Fields)
		return errorResult("validation failed: " + string(data))
	case errors.Is(err, model.ErrNotFound):
		return errorResult(err.Error())
	default:
		s.logger.ErrorContext(ctx, "mcp: tool failed", append(ctxutil.LogAttrs(ctx), "tool", tool, "error", err)...)
		return errorResult("internal error, see server logs")
	}
}
