// SPDX-License-Identifier: Apache-2.0
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziel-io/cognitive-modules/pkg/module"
)

// HandleRun implements the cogmod/run tool.
func (s *Service) HandleRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	name, _ := args["module"].(string)
	if name == "" {
		return errorResult("module argument is required"), nil
	}

	mod, ok := s.registry.Get(name)
	if !ok {
		return errorResult(fmt.Sprintf("module %q is not registered", name)), nil
	}

	var input any = map[string]any{}
	if raw, _ := args["input"].(string); raw != "" {
		if err := json.Unmarshal([]byte(raw), &input); err != nil {
			return errorResult(fmt.Sprintf("input is not valid JSON: %s", err)), nil
		}
	}

	result, tr := s.orchestrator.Execute(ctx, mod, input)

	response := map[string]any{
		"result": result,
		"trace":  tr.Entries(),
	}
	data, err := json.MarshalIndent(response, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("encode response: %s", err)), nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(string(data))},
		IsError: !result.OK,
	}, nil
}

// HandleValidate implements the cogmod/validate tool.
func (s *Service) HandleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	if path == "" {
		return errorResult("path argument is required"), nil
	}

	mod, err := module.LoadFile(path)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	if mod.IsComposite() {
		return textResult(fmt.Sprintf("✓ %s@%s is valid (%s composition, %d dependencies)",
			mod.Name, mod.Version, mod.Composition.Pattern, len(mod.Composition.Requires))), nil
	}
	return textResult(fmt.Sprintf("✓ %s@%s is valid (atomic)", mod.Name, mod.Version)), nil
}

// HandleList implements the cogmod/list tool.
func (s *Service) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	type entry struct {
		Name    string `json:"name"`
		Version string `json:"version"`
		Pattern string `json:"pattern,omitempty"`
	}

	mods := s.registry.List()
	entries := make([]entry, 0, len(mods))
	for _, mod := range mods {
		e := entry{Name: mod.Name, Version: mod.Version}
		if mod.IsComposite() {
			e.Pattern = string(mod.Composition.Pattern)
		}
		entries = append(entries, e)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("encode response: %s", err)), nil
	}
	return textResult(string(data)), nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(msg),
		},
		IsError: true,
	}
}
