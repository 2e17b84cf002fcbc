// SPDX-License-Identifier: Apache-2.0
package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziel-io/cognitive-modules/pkg/compose"
	"github.com/ziel-io/cognitive-modules/pkg/envelope"
	"github.com/ziel-io/cognitive-modules/pkg/executor"
	"github.com/ziel-io/cognitive-modules/pkg/module"
)

func testService(t *testing.T) (*Service, *executor.MockInvoker) {
	t.Helper()
	registry := module.NewRegistry()
	mods := []*module.Module{
		{Name: "sentiment", Version: "1.0.0", Instructions: "classify sentiment"},
		{
			Name: "pipeline", Version: "1.1.0",
			Composition: &module.CompositionConfig{
				Pattern: module.PatternSequential,
				Dataflow: []module.DataflowStep{
					{From: module.StringList{"input"}, To: module.StringList{"sentiment"}},
				},
			},
		},
	}
	for _, mod := range mods {
		if err := registry.Register(mod); err != nil {
			t.Fatalf("register %s: %v", mod.Name, err)
		}
	}

	mock := executor.NewMockInvoker()
	mock.SetResult("sentiment", envelope.Success(
		map[string]any{"sentiment": "positive"},
		envelope.Meta{Confidence: 0.9, Risk: envelope.RiskNone},
	))
	orch := compose.New(registry.Get, mock)
	return &Service{registry: registry, orchestrator: orch}, mock
}

func TestHandleRun(t *testing.T) {
	svc, _ := testService(t)

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{
		"module": "pipeline",
		"input":  `{"text": "lovely"}`,
	}

	result, err := svc.HandleRun(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if result.IsError {
		t.Fatalf("expected success: %+v", result.Content)
	}

	text := result.Content[0].(mcp.TextContent).Text
	var response struct {
		Result struct {
			OK   bool           `json:"ok"`
			Data map[string]any `json:"data"`
		} `json:"result"`
		Trace []map[string]any `json:"trace"`
	}
	if err := json.Unmarshal([]byte(text), &response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !response.Result.OK || response.Result.Data["sentiment"] != "positive" {
		t.Fatalf("unexpected result payload: %s", text)
	}
	if len(response.Trace) != 1 {
		t.Fatalf("expected 1 trace entry, got %d", len(response.Trace))
	}
}

func TestHandleRunUnknownModule(t *testing.T) {
	svc, _ := testService(t)

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"module": "missing"}

	result, err := svc.HandleRun(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError {
		t.Error("expected error for unknown module")
	}
}

func TestHandleRunRejectsBadInput(t *testing.T) {
	svc, _ := testService(t)

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"module": "sentiment", "input": "{not json"}

	result, err := svc.HandleRun(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError {
		t.Error("expected error for malformed input")
	}
}

func TestHandleValidateFile(t *testing.T) {
	svc, _ := testService(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "mod.yaml")
	manifest := `
name: summarize
version: 2.0.0
instructions: Summarize the text.
`
	if err := os.WriteFile(path, []byte(manifest), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"path": path}

	result, err := svc.HandleValidate(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if result.IsError {
		t.Fatalf("expected valid manifest: %+v", result.Content)
	}
	text := result.Content[0].(mcp.TextContent).Text
	if !strings.Contains(text, "summarize@2.0.0") {
		t.Fatalf("unexpected validation output: %s", text)
	}
}

func TestHandleValidateMissingPath(t *testing.T) {
	svc, _ := testService(t)

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{}

	result, err := svc.HandleValidate(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError {
		t.Error("expected error for missing path")
	}
}

func TestHandleList(t *testing.T) {
	svc, _ := testService(t)

	result, err := svc.HandleList(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %+v", result.Content)
	}

	text := result.Content[0].(mcp.TextContent).Text
	var entries []map[string]any
	if err := json.Unmarshal([]byte(text), &entries); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 modules, got %d", len(entries))
	}
	if entries[0]["name"] != "pipeline" || entries[0]["pattern"] != "sequential" {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
}
