package module

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sequentialManifest = `
name: research-pipeline
version: 1.0.0
description: Gathers and summarizes sources.
composition:
  pattern: sequential
  max_depth: 3
  timeout_ms: 30000
  requires:
    - module: gather
      version: "^1.0.0"
    - module: summarize
      version: ">=2.1.0"
      optional: true
      fallback: summarize-lite
      timeout_ms: 5000
  dataflow:
    - from: input
      to: gather
    - from: gather.output
      to: summarize
      mapping:
        text: $.body
      condition: '$.gather.meta.confidence > 0.5'
    - from: summarize
      to: output
`

func TestParseYAMLManifest(t *testing.T) {
	m, err := ParseYAML([]byte(sequentialManifest))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if m.Name != "research-pipeline" || m.Version != "1.0.0" {
		t.Fatalf("unexpected identity: %s@%s", m.Name, m.Version)
	}
	c := m.Composition
	if c == nil || c.Pattern != PatternSequential {
		t.Fatalf("unexpected composition: %+v", c)
	}
	if len(c.Requires) != 2 {
		t.Fatalf("expected 2 requires, got %d", len(c.Requires))
	}
	dep := c.Requires[1]
	if !dep.Optional || dep.Fallback != "summarize-lite" || dep.TimeoutMS != 5000 {
		t.Fatalf("dependency options lost: %+v", dep)
	}
	if len(c.Dataflow) != 3 {
		t.Fatalf("expected 3 dataflow steps, got %d", len(c.Dataflow))
	}
	step := c.Dataflow[1]
	if len(step.From) != 1 || step.From[0] != "gather.output" {
		t.Fatalf("scalar from not normalized: %v", step.From)
	}
	if step.Mapping["text"] != "$.body" {
		t.Fatalf("mapping lost: %v", step.Mapping)
	}
	if !c.Dataflow[2].HasOutputTarget() {
		t.Fatalf("output sentinel target not recognized")
	}
}

func TestParseYAMLListForm(t *testing.T) {
	manifest := `
name: fanout
version: 0.1.0
composition:
  pattern: parallel
  dataflow:
    - from: input
      to: [check-a, check-b]
    - from: [check-a, check-b]
      to: output
      aggregate: array
`
	m, err := ParseYAML([]byte(manifest))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	step := m.Composition.Dataflow[0]
	if len(step.To) != 2 || step.To[0] != "check-a" {
		t.Fatalf("list targets not parsed: %v", step.To)
	}
	if m.Composition.Dataflow[1].Aggregate != "array" {
		t.Fatalf("aggregate strategy lost")
	}
}

func TestValidateRejectsBadManifests(t *testing.T) {
	cases := []struct {
		name     string
		manifest string
		wantErr  string
	}{
		{
			"unknown pattern",
			"name: x\nversion: 1.0.0\ncomposition:\n  pattern: recursive\n",
			"invalid composition pattern",
		},
		{
			"conditional without routing",
			"name: x\nversion: 1.0.0\ncomposition:\n  pattern: conditional\n",
			"requires routing",
		},
		{
			"iterative without iteration",
			"name: x\nversion: 1.0.0\ncomposition:\n  pattern: iterative\n",
			"requires an iteration block",
		},
		{
			"sequential without dataflow",
			"name: x\nversion: 1.0.0\ncomposition:\n  pattern: sequential\n",
			"at least one dataflow step",
		},
		{
			"missing version",
			"name: x\n",
			"version is required",
		},
		{
			"step without target",
			"name: x\nversion: 1.0.0\ncomposition:\n  pattern: sequential\n  dataflow:\n    - from: input\n",
			"to is required",
		},
	}
	for _, tc := range cases {
		_, err := ParseYAML([]byte(tc.manifest))
		if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
			t.Fatalf("%s: error %v, want substring %q", tc.name, err, tc.wantErr)
		}
	}
}

func TestRoutingNextNull(t *testing.T) {
	manifest := `
name: triage
version: 1.0.0
composition:
  pattern: conditional
  routing:
    - condition: '$.triage.meta.confidence > 0.8'
      next: null
    - condition: '$.triage.meta.risk == "high"'
      next: escalate
`
	m, err := ParseYAML([]byte(manifest))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	rules := m.Composition.Routing
	if rules[0].Next != nil {
		t.Fatalf("explicit null next should decode to nil")
	}
	if rules[1].Next == nil || *rules[1].Next != "escalate" {
		t.Fatalf("named next lost: %v", rules[1].Next)
	}
}

func TestRegistryLoadDir(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	write("gather.yaml", "name: gather\nversion: 1.2.0\ninstructions: collect sources\n")
	write("summarize.yml", "name: summarize\nversion: 2.1.0\n")
	write("notes.txt", "not a manifest")

	r := NewRegistry()
	if err := r.LoadDir(dir); err != nil {
		t.Fatalf("load dir: %v", err)
	}
	if r.Len() != 2 {
		t.Fatalf("expected 2 modules, got %d", r.Len())
	}
	if _, ok := r.Get("gather"); !ok {
		t.Fatalf("gather not registered")
	}
	names := []string{}
	for _, m := range r.List() {
		names = append(names, m.Name)
	}
	if names[0] != "gather" || names[1] != "summarize" {
		t.Fatalf("list not sorted: %v", names)
	}
}

func TestRegistryReloadDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gather.yaml")
	if err := os.WriteFile(path, []byte("name: gather\nversion: 1.0.0\n"), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	r := NewRegistry()
	if err := r.LoadDir(dir); err != nil {
		t.Fatalf("load dir: %v", err)
	}

	if err := os.WriteFile(path, []byte("name: gather\nversion: 2.0.0\n"), 0o644); err != nil {
		t.Fatalf("rewrite manifest: %v", err)
	}
	if err := r.ReloadDir(dir); err != nil {
		t.Fatalf("reload dir: %v", err)
	}
	m, ok := r.Get("gather")
	if !ok || m.Version != "2.0.0" {
		t.Fatalf("reload did not replace contents: %+v", m)
	}

	// A failed re-scan keeps what is already loaded.
	if err := os.WriteFile(path, []byte("name: [broken\n"), 0o644); err != nil {
		t.Fatalf("corrupt manifest: %v", err)
	}
	if err := r.ReloadDir(dir); err == nil {
		t.Fatalf("expected reload error for broken manifest")
	}
	if m, ok := r.Get("gather"); !ok || m.Version != "2.0.0" {
		t.Fatalf("failed reload should not clear registry")
	}
}

func TestRegistryDuplicate(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&Module{Name: "dup", Version: "1.0.0"}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := r.Register(&Module{Name: "dup", Version: "2.0.0"}); err == nil {
		t.Fatalf("duplicate register should fail")
	}
}
