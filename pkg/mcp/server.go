// SPDX-License-Identifier: Apache-2.0
// Package mcp exposes the module registry and orchestrator as MCP tools so
// agent frontends can run and inspect compositions over stdio.
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ziel-io/cognitive-modules/pkg/compose"
	"github.com/ziel-io/cognitive-modules/pkg/module"
)

// Service holds the dependencies the tool handlers need.
type Service struct {
	registry     *module.Registry
	orchestrator *compose.Orchestrator
}

// NewServer creates an MCP server with the cogmod tools registered.
func NewServer(version string, registry *module.Registry, orchestrator *compose.Orchestrator) *server.MCPServer {
	svc := &Service{registry: registry, orchestrator: orchestrator}

	s := server.NewMCPServer(
		"cogmod",
		version,
		server.WithToolCapabilities(true),
	)

	s.AddTool(
		mcp.NewTool("cogmod/run",
			mcp.WithDescription("Execute a registered module (composite or atomic) against a JSON input document"),
			mcp.WithString("module", mcp.Required(), mcp.Description("Name of the registered module to run")),
			mcp.WithString("input", mcp.Description("JSON input document (defaults to an empty object)")),
		),
		svc.HandleRun,
	)

	s.AddTool(
		mcp.NewTool("cogmod/validate",
			mcp.WithDescription("Validate a module manifest file (YAML or JSON)"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the module manifest")),
		),
		svc.HandleValidate,
	)

	s.AddTool(
		mcp.NewTool("cogmod/list",
			mcp.WithDescription("List registered modules with version and composition pattern"),
		),
		svc.HandleList,
	)

	return s
}

// ServeStdio runs the server over stdin/stdout.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}
