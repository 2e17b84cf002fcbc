// SPDX-License-Identifier: Apache-2.0
package audit

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/ziel-io/cognitive-modules/pkg/compose"
	"github.com/ziel-io/cognitive-modules/pkg/envelope"
	"github.com/ziel-io/cognitive-modules/pkg/module"
)

func sampleRun() (Run, []Step) {
	run := Run{
		RunID:      "run-1",
		Module:     "triage",
		Pattern:    "sequential",
		OK:         true,
		Confidence: 0.85,
		Risk:       "low",
		Output:     map[string]any{"verdict": "benign"},
		StartedAt:  time.Now().UTC(),
		FinishedAt: time.Now().UTC(),
	}
	steps := []Step{
		{RunID: "run-1", Module: "quick-check", Status: StatusSuccess},
		{RunID: "run-1", Module: "deep-analysis", Status: StatusSkipped, Reason: "condition not met"},
	}
	return run, steps
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	run, steps := sampleRun()
	if err := store.RecordRun(context.Background(), run, steps); err != nil {
		t.Fatalf("record: %v", err)
	}

	runs, err := store.ListRuns(context.Background(), Filter{Module: "triage"})
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != "run-1" {
		t.Fatalf("unexpected runs: %+v", runs)
	}

	got, err := store.ListSteps(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("list steps: %v", err)
	}
	if len(got) != 2 || got[1].Status != StatusSkipped {
		t.Fatalf("unexpected steps: %+v", got)
	}
}

func TestSQLiteStore(t *testing.T) {
	db, err := sql.Open("sqlite", "file:audit_test?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()

	store, err := NewSQLiteStore(db)
	if err != nil {
		t.Fatalf("new sqlite store: %v", err)
	}
	run, steps := sampleRun()
	if err := store.RecordRun(context.Background(), run, steps); err != nil {
		t.Fatalf("record: %v", err)
	}

	runs, err := store.ListRuns(context.Background(), Filter{Module: "triage", Limit: 10})
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	if runs[0].Pattern != "sequential" || runs[0].Risk != "low" {
		t.Fatalf("unexpected run: %+v", runs[0])
	}
	output, ok := runs[0].Output.(map[string]any)
	if !ok || output["verdict"] != "benign" {
		t.Fatalf("output round-trip failed: %#v", runs[0].Output)
	}

	got, err := store.ListSteps(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("list steps: %v", err)
	}
	if len(got) != 2 || got[0].Module != "quick-check" {
		t.Fatalf("unexpected steps: %+v", got)
	}

	okOnly := true
	filtered, err := store.ListRuns(context.Background(), Filter{OK: &okOnly})
	if err != nil {
		t.Fatalf("list filtered: %v", err)
	}
	if len(filtered) != 1 {
		t.Fatalf("expected 1 successful run, got %d", len(filtered))
	}
}

func TestNewRunFromOutcome(t *testing.T) {
	mod := &module.Module{
		Name: "triage", Version: "1.0.0",
		Composition: &module.CompositionConfig{Pattern: module.PatternConditional},
	}
	result := envelope.Success(map[string]any{"verdict": "benign"},
		envelope.Meta{Confidence: 0.9, Risk: envelope.RiskLow})
	tr := compose.NewTrace()

	run, steps := NewRun(mod, result, tr, time.Now())
	if run.RunID == "" {
		t.Fatalf("expected a generated run id")
	}
	if run.Module != "triage" || run.Pattern != "conditional" || !run.OK {
		t.Fatalf("unexpected run: %+v", run)
	}
	if len(steps) != 0 {
		t.Fatalf("expected no steps from an empty trace")
	}

	failure := envelope.Failure(envelope.CodeCompositionTimeout, "budget exhausted")
	run, _ = NewRun(mod, failure, tr, time.Now())
	if run.OK || run.ErrorCode != "COMPOSITION_TIMEOUT" {
		t.Fatalf("unexpected failure run: %+v", run)
	}
}
