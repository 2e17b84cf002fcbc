// SPDX-License-Identifier: Apache-2.0
package compose

import (
	"context"

	"github.com/ziel-io/cognitive-modules/pkg/envelope"
	"github.com/ziel-io/cognitive-modules/pkg/module"
)

// runSequential walks the dataflow steps in declaration order. Each step
// feeds the data of its last successful invocation into the next; a failing
// mandatory target aborts the whole run with that failure. When no step
// produced a final result, the pattern's own module is invoked with the
// accumulated data.
func (o *Orchestrator) runSequential(ctx context.Context, ec execContext, mod *module.Module, input any) *envelope.Result {
	current := input
	var last *envelope.Result

	for _, step := range mod.Composition.Dataflow {
		if step.Condition != "" {
			doc := ec.conditionDoc(map[string]any{"current": current})
			if !o.cond.Evaluate(step.Condition, doc) {
				skipStep(ec, step)
				continue
			}
		}

		payload, failure := o.stepPayload(ec, step)
		if failure != nil {
			return failure
		}

		for _, target := range step.To {
			if target == module.OutputTarget {
				continue
			}
			result, fatal := o.invokeDependency(ctx, ec, mod, findDecl(mod, target), payload)
			if fatal != nil {
				return fatal
			}
			if result != nil {
				last = result
				current = result.Data
			}
		}
	}

	if last != nil {
		return last
	}
	return o.invokeLeaf(ctx, ec, mod, current, 0)
}
