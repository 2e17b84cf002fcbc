// SPDX-License-Identifier: Apache-2.0
package compose

import (
	"testing"
	"time"
)

func TestTraceEntriesOrderedByStart(t *testing.T) {
	base := time.Now()
	tr := NewTrace()

	// Completion order differs from start order, as under parallel fan-out.
	tr.append(TraceEntry{Module: "fast", Start: base.Add(20 * time.Millisecond), Success: true})
	tr.append(TraceEntry{Module: "slow", Start: base, Success: true})
	tr.append(TraceEntry{Module: "mid", Start: base.Add(10 * time.Millisecond), Success: true})

	entries := tr.Entries()
	want := []string{"slow", "mid", "fast"}
	for i, name := range want {
		if entries[i].Module != name {
			t.Fatalf("entry %d: expected %s, got %s", i, name, entries[i].Module)
		}
	}
}

func TestTraceSkippedEntryKeepsAppendOrder(t *testing.T) {
	tr := NewTrace()
	now := time.Now()
	tr.append(TraceEntry{Module: "a", Start: now, Success: true})
	tr.addSkipped("b", "condition not met: $.x > 1")

	entries := tr.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if !entries[1].Skipped || entries[1].Module != "b" {
		t.Fatalf("expected skipped entry for b last, got %+v", entries[1])
	}
}
