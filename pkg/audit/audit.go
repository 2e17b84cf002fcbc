// SPDX-License-Identifier: Apache-2.0
// Package audit persists composition runs and their per-module trace for
// later inspection.
package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ziel-io/cognitive-modules/pkg/compose"
	"github.com/ziel-io/cognitive-modules/pkg/envelope"
	"github.com/ziel-io/cognitive-modules/pkg/module"
)

// Run is one completed composition call.
type Run struct {
	RunID      string
	Module     string
	Pattern    string
	OK         bool
	ErrorCode  string
	Confidence float64
	Risk       string
	Output     any
	StartedAt  time.Time
	FinishedAt time.Time
}

// Step is one trace entry of a run.
type Step struct {
	RunID      string
	Module     string
	Status     string
	Reason     string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Step status values.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusSkipped = "skipped"
)

// Filter limits run queries.
type Filter struct {
	Module string
	OK     *bool
	Limit  int
}

// Store persists composition runs.
type Store interface {
	RecordRun(ctx context.Context, run Run, steps []Step) error
	ListRuns(ctx context.Context, filter Filter) ([]Run, error)
	ListSteps(ctx context.Context, runID string) ([]Step, error)
}

// NewRun builds a Run plus its Steps from an execution outcome. The run ID
// is freshly generated.
func NewRun(mod *module.Module, result *envelope.Result, tr *compose.Trace, started time.Time) (Run, []Step) {
	run := Run{
		RunID:      uuid.NewString(),
		Module:     mod.Name,
		OK:         result.OK,
		Confidence: result.Meta.Confidence,
		Risk:       string(result.Meta.Risk),
		StartedAt:  started.UTC(),
		FinishedAt: time.Now().UTC(),
	}
	if mod.Composition != nil {
		run.Pattern = string(mod.Composition.Pattern)
	}
	if result.OK {
		run.Output = result.Data
	} else if result.Error != nil {
		run.ErrorCode = string(result.Error.Code)
	}

	entries := tr.Entries()
	steps := make([]Step, 0, len(entries))
	for _, e := range entries {
		step := Step{
			RunID:      run.RunID,
			Module:     e.Module,
			Status:     StatusSuccess,
			Reason:     e.Reason,
			StartedAt:  e.Start.UTC(),
			FinishedAt: e.End.UTC(),
		}
		if e.Skipped {
			step.Status = StatusSkipped
		} else if !e.Success {
			step.Status = StatusFailure
		}
		steps = append(steps, step)
	}
	return run, steps
}

// MemoryStore keeps runs in memory.
type MemoryStore struct {
	mu    sync.Mutex
	runs  []Run
	steps map[string][]Step
}

// NewMemoryStore returns an in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{steps: make(map[string][]Step)}
}

// RecordRun appends a run and its steps.
func (s *MemoryStore) RecordRun(_ context.Context, run Run, steps []Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	s.steps[run.RunID] = append([]Step(nil), steps...)
	return nil
}

// ListRuns returns runs matching the filter, oldest first.
func (s *MemoryStore) ListRuns(_ context.Context, filter Filter) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Run, 0, len(s.runs))
	for _, run := range s.runs {
		if filter.Module != "" && run.Module != filter.Module {
			continue
		}
		if filter.OK != nil && run.OK != *filter.OK {
			continue
		}
		out = append(out, run)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// ListSteps returns the steps of a run in trace order.
func (s *MemoryStore) ListSteps(_ context.Context, runID string) ([]Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Step(nil), s.steps[runID]...), nil
}

// encodeOutput marshals a run output payload into JSON.
func encodeOutput(output any) ([]byte, error) {
	if output == nil {
		return []byte("null"), nil
	}
	return json.Marshal(output)
}

// decodeOutput parses a JSON output payload.
func decodeOutput(raw []byte) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
