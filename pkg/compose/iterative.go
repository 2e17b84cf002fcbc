// SPDX-License-Identifier: Apache-2.0
package compose

import (
	"context"
	"fmt"

	"github.com/ziel-io/cognitive-modules/pkg/envelope"
	"github.com/ziel-io/cognitive-modules/pkg/module"
)

// runIterative invokes the pattern's own module repeatedly, feeding each
// iteration's output data into the next one. A declared stop_condition ends
// the loop when it turns true; a declared continue_condition ends it when it
// turns false; with neither declared the module runs exactly once.
// Exhausting max_iterations without a stop signal is a failure carrying the
// last output as partial data.
func (o *Orchestrator) runIterative(ctx context.Context, ec execContext, mod *module.Module, input any) *envelope.Result {
	iter := mod.Composition.Iteration
	if iter == nil {
		return envelope.Failuref(envelope.CodeDataflowError, "module %s has no iteration config", mod.Name)
	}
	maxIterations := iter.EffectiveMaxIterations()

	current := input
	var result *envelope.Result

	for i := 0; i < maxIterations; i++ {
		result = o.invokeLeaf(ctx, ec, mod, current, 0)
		ec.setResult(fmt.Sprintf("%s_iteration_%d", mod.Name, i), result)
		if !result.OK {
			return result
		}

		doc := map[string]any{
			"input":     ec.state.input,
			"current":   resultDoc(result),
			"iteration": i,
			"meta": map[string]any{
				"confidence": result.Meta.Confidence,
				"risk":       string(result.Meta.Risk),
				"explain":    result.Meta.Explain,
			},
			"data": result.Data,
		}

		if iter.StopCondition != "" && o.cond.Evaluate(iter.StopCondition, doc) {
			return result
		}
		if iter.ContinueCondition != "" && !o.cond.Evaluate(iter.ContinueCondition, doc) {
			return result
		}
		if iter.StopCondition == "" && iter.ContinueCondition == "" {
			return result
		}

		current = result.Data
	}

	failure := envelope.Failuref(envelope.CodeIterationLimitExceeded,
		"module %s gave no stop signal after %d iterations", mod.Name, maxIterations)
	if result != nil {
		failure = failure.WithPartialData(result.Data)
	}
	return failure
}
