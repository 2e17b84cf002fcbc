// SPDX-License-Identifier: Apache-2.0
package compose

import (
	"strings"

	"github.com/ziel-io/cognitive-modules/pkg/envelope"
	"github.com/ziel-io/cognitive-modules/pkg/expression"
	"github.com/ziel-io/cognitive-modules/pkg/module"
)

// resolveSources turns a step's from references into the source document.
// A single source is used as-is; multiple sources are wrapped as
// {"sources": [...]}. References are the literal "input", "<module>.output",
// or a bare module name. A reference to a module with no completed result
// is a dataflow error.
func (o *Orchestrator) resolveSources(ec execContext, from module.StringList) (any, *envelope.Result) {
	values := make([]any, 0, len(from))
	for _, ref := range from {
		if ref == module.InputSource {
			values = append(values, ec.state.input)
			continue
		}
		name := sourceModuleName(ref)
		r, ok := ec.result(name)
		if !ok {
			return nil, envelope.Failuref(envelope.CodeDataflowError,
				"dataflow source %q has no completed result", ref)
		}
		if r == nil || !r.OK {
			values = append(values, nil)
			continue
		}
		values = append(values, r.Data)
	}

	switch len(values) {
	case 0:
		return nil, envelope.Failure(envelope.CodeDataflowError, "dataflow step has no sources")
	case 1:
		return values[0], nil
	default:
		return map[string]any{"sources": values}, nil
	}
}

// sourceModuleName strips the ".output" suffix from a source reference.
func sourceModuleName(ref string) string {
	return strings.TrimSuffix(ref, ".output")
}

// applyMapping shapes a source document through a step's field mapping.
// Steps without a mapping pass the source through unchanged.
func applyMapping(step module.DataflowStep, source any) any {
	if len(step.Mapping) == 0 {
		return source
	}
	return expression.EvaluateMapping(step.Mapping, source)
}

// stepPayload evaluates a step's sources and mapping into the input document
// for its targets.
func (o *Orchestrator) stepPayload(ec execContext, step module.DataflowStep) (any, *envelope.Result) {
	source, failure := o.resolveSources(ec, step.From)
	if failure != nil {
		return nil, failure
	}
	return applyMapping(step, source), nil
}

// skipStep appends one skipped trace entry per non-output target.
func skipStep(ec execContext, step module.DataflowStep) {
	for _, target := range step.To {
		if target == module.OutputTarget {
			continue
		}
		ec.state.trace.addSkipped(target, "condition not met: "+step.Condition)
	}
}
