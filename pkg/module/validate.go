// SPDX-License-Identifier: Apache-2.0

package module

import "fmt"

var validPatterns = map[Pattern]bool{
	PatternSequential:  true,
	PatternParallel:    true,
	PatternConditional: true,
	PatternIterative:   true,
}

// Validate checks a module descriptor and its composition configuration.
// Structural problems are caught here, once, at load time rather than
// re-checked during execution.
func (m *Module) Validate() error {
	if m == nil {
		return fmt.Errorf("module is nil")
	}
	if m.Name == "" {
		return fmt.Errorf("module name is required")
	}
	if m.Version == "" {
		return fmt.Errorf("module %q: version is required", m.Name)
	}
	if m.Composition != nil {
		if err := m.Composition.Validate(); err != nil {
			return fmt.Errorf("module %q: %w", m.Name, err)
		}
	}
	return nil
}

// Validate enforces the pattern-specific required fields.
func (c *CompositionConfig) Validate() error {
	if !validPatterns[c.Pattern] {
		return fmt.Errorf("invalid composition pattern %q", c.Pattern)
	}

	for i, dep := range c.Requires {
		if dep.Module == "" {
			return fmt.Errorf("requires[%d]: module name is required", i)
		}
	}

	for i, step := range c.Dataflow {
		if len(step.From) == 0 {
			return fmt.Errorf("dataflow[%d]: from is required", i)
		}
		if len(step.To) == 0 {
			return fmt.Errorf("dataflow[%d]: to is required", i)
		}
	}

	switch c.Pattern {
	case PatternSequential, PatternParallel:
		if len(c.Dataflow) == 0 {
			return fmt.Errorf("%s pattern requires at least one dataflow step", c.Pattern)
		}
	case PatternConditional:
		if len(c.Routing) == 0 {
			return fmt.Errorf("conditional pattern requires routing rules")
		}
		for i, rule := range c.Routing {
			if rule.Condition == "" {
				return fmt.Errorf("routing[%d]: condition is required", i)
			}
		}
	case PatternIterative:
		if c.Iteration == nil {
			return fmt.Errorf("iterative pattern requires an iteration block")
		}
		if c.Iteration.MaxIterations < 0 {
			return fmt.Errorf("iteration.max_iterations must not be negative")
		}
	}

	if c.MaxDepth < 0 {
		return fmt.Errorf("max_depth must not be negative")
	}
	if c.TimeoutMS != nil && *c.TimeoutMS < 0 {
		return fmt.Errorf("timeout_ms must not be negative")
	}
	return nil
}
