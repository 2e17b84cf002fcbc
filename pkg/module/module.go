// SPDX-License-Identifier: Apache-2.0
// Package module defines module descriptors and their composition
// configuration, loads manifests from disk, and resolves declared
// dependencies against a registry.
package module

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Pattern selects the orchestrator state machine driving a composition.
type Pattern string

const (
	PatternSequential  Pattern = "sequential"
	PatternParallel    Pattern = "parallel"
	PatternConditional Pattern = "conditional"
	PatternIterative   Pattern = "iterative"
)

// Defaults applied when a composition config omits them.
const (
	DefaultMaxDepth      = 5
	DefaultMaxIterations = 10
)

// OutputTarget is the sentinel dataflow target naming the composition's own
// output, and InputSource the sentinel source naming the original input.
const (
	OutputTarget = "output"
	InputSource  = "input"
)

// Module is a named, versioned task unit with a declared contract and
// optional composition configuration.
type Module struct {
	Name         string             `yaml:"name" json:"name"`
	Version      string             `yaml:"version" json:"version"`
	Description  string             `yaml:"description,omitempty" json:"description,omitempty"`
	Instructions string             `yaml:"instructions,omitempty" json:"instructions,omitempty"`
	Composition  *CompositionConfig `yaml:"composition,omitempty" json:"composition,omitempty"`
}

// IsComposite reports whether the module declares composition configuration.
func (m *Module) IsComposite() bool {
	return m != nil && m.Composition != nil
}

// CompositionConfig declares how a composite module drives its dependencies.
type CompositionConfig struct {
	Pattern   Pattern                 `yaml:"pattern" json:"pattern"`
	Requires  []DependencyDeclaration `yaml:"requires,omitempty" json:"requires,omitempty"`
	Dataflow  []DataflowStep          `yaml:"dataflow,omitempty" json:"dataflow,omitempty"`
	Routing   []RoutingRule           `yaml:"routing,omitempty" json:"routing,omitempty"`
	Iteration *IterationConfig        `yaml:"iteration,omitempty" json:"iteration,omitempty"`
	MaxDepth  int                     `yaml:"max_depth,omitempty" json:"max_depth,omitempty"`
	// TimeoutMS is the total wall-clock budget for the composition call.
	// Nil means unlimited; an explicit 0 expires immediately.
	TimeoutMS *int64 `yaml:"timeout_ms,omitempty" json:"timeout_ms,omitempty"`
}

// EffectiveMaxDepth returns the configured recursion ceiling or the default.
func (c *CompositionConfig) EffectiveMaxDepth() int {
	if c == nil || c.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return c.MaxDepth
}

// DependencyDeclaration names a module this composition requires.
type DependencyDeclaration struct {
	Module    string `yaml:"module" json:"module"`
	Version   string `yaml:"version,omitempty" json:"version,omitempty"`
	Optional  bool   `yaml:"optional,omitempty" json:"optional,omitempty"`
	Fallback  string `yaml:"fallback,omitempty" json:"fallback,omitempty"`
	TimeoutMS int64  `yaml:"timeout_ms,omitempty" json:"timeout_ms,omitempty"`
}

// DataflowStep declares a transformation from one or more sources to one or
// more targets, with optional field mapping, guard condition and fan-in
// aggregation strategy.
type DataflowStep struct {
	From      StringList        `yaml:"from" json:"from"`
	To        StringList        `yaml:"to" json:"to"`
	Mapping   map[string]string `yaml:"mapping,omitempty" json:"mapping,omitempty"`
	Condition string            `yaml:"condition,omitempty" json:"condition,omitempty"`
	Aggregate string            `yaml:"aggregate,omitempty" json:"aggregate,omitempty"`
}

// HasOutputTarget reports whether the step routes to the composition output.
func (s DataflowStep) HasOutputTarget() bool {
	for _, t := range s.To {
		if t == OutputTarget {
			return true
		}
	}
	return false
}

// RoutingRule is a conditional-pattern branch. A nil Next means "use the
// current result unchanged".
type RoutingRule struct {
	Condition string  `yaml:"condition" json:"condition"`
	Next      *string `yaml:"next" json:"next"`
}

// IterationConfig bounds the iterative pattern.
type IterationConfig struct {
	MaxIterations     int    `yaml:"max_iterations,omitempty" json:"max_iterations,omitempty"`
	ContinueCondition string `yaml:"continue_condition,omitempty" json:"continue_condition,omitempty"`
	StopCondition     string `yaml:"stop_condition,omitempty" json:"stop_condition,omitempty"`
}

// EffectiveMaxIterations returns the configured bound or the default.
func (c *IterationConfig) EffectiveMaxIterations() int {
	if c == nil || c.MaxIterations <= 0 {
		return DefaultMaxIterations
	}
	return c.MaxIterations
}

// StringList accepts either a single scalar or a sequence in YAML/JSON, so
// manifests can write `from: input` as well as `from: [a, b]`.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *StringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		*l = StringList{s}
		return nil
	case yaml.SequenceNode:
		var ss []string
		if err := value.Decode(&ss); err != nil {
			return err
		}
		*l = StringList(ss)
		return nil
	default:
		return fmt.Errorf("expected string or list of strings, got yaml kind %d", value.Kind)
	}
}

// UnmarshalJSON implements json.Unmarshaler with the same scalar-or-list rule.
func (l *StringList) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = StringList{s}
		return nil
	}
	var ss []string
	if err := json.Unmarshal(data, &ss); err != nil {
		return err
	}
	*l = StringList(ss)
	return nil
}
