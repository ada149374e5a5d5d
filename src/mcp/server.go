// Package mcp exposes the publisher as a Model Context Protocol tool over stdio.
package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"kafka-bridge/src/contracts"
	"kafka-bridge/src/ingress"
)

// Server is the MCP server for the bridge.
type Server struct {
	mcpServer *server.MCPServer
	publisher ingress.Publisher
}

// NewServer creates a new MCP server publishing through pub.
func NewServer(pub ingress.Publisher, version string) *Server {
	s := server.NewMCPServer(
		"kafka-bridge",
		version,
		server.WithToolCapabilities(true),
	)

	srv := &Server{
		mcpServer: s,
		publisher: pub,
	}
	srv.registerTools()

	return srv
}

// registerTools registers all available tools.
func (s *Server) registerTools() {
	sendTool := mcp.NewTool("send_message",
		mcp.WithDescription("Publish a JSON document to the bridge topic. The call returns as soon as the payload is handed off; it does not report whether delivery succeeded. Consumers classify the document's \"message\" field."),
		mcp.WithString("payload",
			mcp.Required(),
			mcp.Description(`JSON document to publish, e.g. {"message": "hello"}`),
		),
	)

	s.mcpServer.AddTool(sendTool, s.handleSendMessage)
}

// Run starts the MCP server on stdio.
func (s *Server) Run() error {
	return server.ServeStdio(s.mcpServer)
}

// handleSendMessage handles the send_message tool call.
func (s *Server) handleSendMessage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	payload := request.GetString("payload", "")
	if payload == "" {
		return mcp.NewToolResultError("payload parameter is required"), nil
	}
	if !json.Valid([]byte(payload)) {
		return mcp.NewToolResultError("payload must be a JSON document"), nil
	}

	s.publisher.PublishAndForget(ctx, json.RawMessage(payload))
	return mcp.NewToolResultText(contracts.Acknowledgment), nil
}
