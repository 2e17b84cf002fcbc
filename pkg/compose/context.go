// SPDX-License-Identifier: Apache-2.0
package compose

import (
	"sync"
	"time"

	"github.com/ziel-io/cognitive-modules/pkg/envelope"
)

// execState is the portion of an execution context shared by every branch of
// one top-level composition call: completed results, the cycle-guard
// running-set, and the wall-clock budget. Branches only ever read entries
// that were finalized before they started, so a single mutex over the maps
// is enough.
type execState struct {
	input   any
	results map[string]*envelope.Result
	running map[string]struct{}
	trace   *Trace
	start   time.Time

	// timeout is the total wall-clock budget. Nil means unlimited.
	timeout *time.Duration

	mu sync.Mutex
}

// execContext is passed by value down each call chain so that depth
// bookkeeping stays branch-local under parallel fan-out. The shared state
// travels by pointer.
type execContext struct {
	state    *execState
	depth    int
	maxDepth int
}

func newExecContext(input any, maxDepth int, timeoutMS *int64) execContext {
	state := &execState{
		input:   input,
		results: make(map[string]*envelope.Result),
		running: make(map[string]struct{}),
		trace:   NewTrace(),
		start:   time.Now(),
	}
	if timeoutMS != nil {
		d := time.Duration(*timeoutMS) * time.Millisecond
		state.timeout = &d
	}
	return execContext{state: state, maxDepth: maxDepth}
}

// child returns a context one level deeper. The receiver is a value, so the
// parent's depth is untouched.
func (c execContext) child() execContext {
	c.depth = c.depth + 1
	return c
}

// enter adds a module to the running-set, reporting false when it is already
// present (a cycle).
func (c execContext) enter(name string) bool {
	c.state.mu.Lock()
	defer c.state.mu.Unlock()
	if _, running := c.state.running[name]; running {
		return false
	}
	c.state.running[name] = struct{}{}
	return true
}

// leave removes a module from the running-set. It must run on every exit
// path of an invocation, including panics.
func (c execContext) leave(name string) {
	c.state.mu.Lock()
	defer c.state.mu.Unlock()
	delete(c.state.running, name)
}

func (c execContext) setResult(name string, r *envelope.Result) {
	c.state.mu.Lock()
	defer c.state.mu.Unlock()
	c.state.results[name] = r
}

func (c execContext) result(name string) (*envelope.Result, bool) {
	c.state.mu.Lock()
	defer c.state.mu.Unlock()
	r, ok := c.state.results[name]
	return r, ok
}

// expired reports whether the total composition budget has elapsed.
func (c execContext) expired() bool {
	if c.state.timeout == nil {
		return false
	}
	return time.Since(c.state.start) >= *c.state.timeout
}

// remaining returns the time left in the total budget, or 0 when unlimited.
func (c execContext) remaining() time.Duration {
	if c.state.timeout == nil {
		return 0
	}
	left := *c.state.timeout - time.Since(c.state.start)
	if left < 0 {
		return 0
	}
	return left
}

// conditionDoc builds the document conditions and routing rules evaluate
// against: the original input plus the full envelope of every completed
// module, so expressions like $.quick-check.meta.confidence resolve.
func (c execContext) conditionDoc(extra map[string]any) map[string]any {
	doc := map[string]any{"input": c.state.input}
	c.state.mu.Lock()
	for name, r := range c.state.results {
		doc[name] = resultDoc(r)
	}
	c.state.mu.Unlock()
	for k, v := range extra {
		doc[k] = v
	}
	return doc
}

// resultDoc flattens an envelope into the plain map shape path expressions
// traverse.
func resultDoc(r *envelope.Result) map[string]any {
	if r == nil {
		return nil
	}
	doc := map[string]any{
		"ok": r.OK,
		"meta": map[string]any{
			"confidence": r.Meta.Confidence,
			"risk":       string(r.Meta.Risk),
			"explain":    r.Meta.Explain,
		},
	}
	if r.OK {
		doc["data"] = r.Data
	} else if r.Error != nil {
		doc["error"] = map[string]any{
			"code":    string(r.Error.Code),
			"message": r.Error.Message,
		}
		if r.PartialData != nil {
			doc["partial_data"] = r.PartialData
		}
	}
	return doc
}
