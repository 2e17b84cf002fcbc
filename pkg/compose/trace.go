// SPDX-License-Identifier: Apache-2.0
package compose

import (
	"sort"
	"sync"
	"time"
)

// TraceEntry records one invocation attempt, including skipped and failed ones.
type TraceEntry struct {
	Module   string        `json:"module"`
	Start    time.Time     `json:"start"`
	End      time.Time     `json:"end"`
	Duration time.Duration `json:"duration"`
	Success  bool          `json:"success"`
	Skipped  bool          `json:"skipped,omitempty"`
	Reason   string        `json:"reason,omitempty"`
}

// Trace is the append-only record of a composition run, ordered by
// invocation start. Parallel branches append concurrently.
type Trace struct {
	mu      sync.Mutex
	entries []TraceEntry
}

// NewTrace creates an empty trace.
func NewTrace() *Trace {
	return &Trace{}
}

func (t *Trace) append(e TraceEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, e)
}

// addSkipped records a step that was bypassed by a false condition.
func (t *Trace) addSkipped(module, reason string) {
	now := time.Now()
	t.append(TraceEntry{Module: module, Start: now, End: now, Skipped: true, Reason: reason})
}

// Entries returns a copy of the recorded entries ordered by invocation
// start. Parallel branches append at completion, so the stored order can
// differ from the order the branches were launched in.
func (t *Trace) Entries() []TraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TraceEntry, len(t.entries))
	copy(out, t.entries)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// Len returns the number of recorded entries.
func (t *Trace) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
