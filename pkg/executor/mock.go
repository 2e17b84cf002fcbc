// SPDX-License-Identifier: Apache-2.0
package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ziel-io/cognitive-modules/pkg/envelope"
	"github.com/ziel-io/cognitive-modules/pkg/module"
)

// MockInvoker is a test double keyed by module name. Handlers take priority
// over static results; modules with neither configured get a default success.
type MockInvoker struct {
	mu       sync.Mutex
	results  map[string]*envelope.Result
	handlers map[string]func(input any) (*envelope.Result, error)
	delays   map[string]time.Duration
	errs     map[string]error
	calls    []string
	inputs   map[string][]any
}

// NewMockInvoker creates an empty mock.
func NewMockInvoker() *MockInvoker {
	return &MockInvoker{
		results:  make(map[string]*envelope.Result),
		handlers: make(map[string]func(input any) (*envelope.Result, error)),
		delays:   make(map[string]time.Duration),
		errs:     make(map[string]error),
		inputs:   make(map[string][]any),
	}
}

// SetResult configures a fixed result for a module.
func (m *MockInvoker) SetResult(name string, result *envelope.Result) *MockInvoker {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[name] = result
	return m
}

// SetHandler configures a per-call handler for a module.
func (m *MockInvoker) SetHandler(name string, fn func(input any) (*envelope.Result, error)) *MockInvoker {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[name] = fn
	return m
}

// SetDelay makes invocations of a module block for d before responding.
// The block is interrupted by context cancellation.
func (m *MockInvoker) SetDelay(name string, d time.Duration) *MockInvoker {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delays[name] = d
	return m
}

// SetError makes invocations of a module fail at the invocation boundary.
func (m *MockInvoker) SetError(name string, err error) *MockInvoker {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[name] = err
	return m
}

// Calls returns the module names invoked, in order.
func (m *MockInvoker) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times the named module was invoked.
func (m *MockInvoker) CallCount(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == name {
			n++
		}
	}
	return n
}

// Inputs returns the inputs each invocation of the named module received.
func (m *MockInvoker) Inputs(name string) []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]any, len(m.inputs[name]))
	copy(out, m.inputs[name])
	return out
}

func (m *MockInvoker) Invoke(ctx context.Context, mod *module.Module, input any) (*envelope.Result, error) {
	m.mu.Lock()
	m.calls = append(m.calls, mod.Name)
	m.inputs[mod.Name] = append(m.inputs[mod.Name], input)
	delay := m.delays[mod.Name]
	err := m.errs[mod.Name]
	handler := m.handlers[mod.Name]
	result := m.results[mod.Name]
	m.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if err != nil {
		return nil, err
	}
	if handler != nil {
		return handler(input)
	}
	if result != nil {
		return result, nil
	}
	return envelope.Success(
		map[string]any{"module": mod.Name},
		envelope.Meta{Confidence: 0.9, Risk: envelope.RiskNone, Explain: fmt.Sprintf("mock result for %s", mod.Name)},
	), nil
}
