// SPDX-License-Identifier: Apache-2.0
package compose

import (
	"context"

	"github.com/ziel-io/cognitive-modules/pkg/envelope"
	"github.com/ziel-io/cognitive-modules/pkg/module"
)

// runConditional first materializes any data the routing rules need by
// running the non-routing dataflow steps, then evaluates the rules in order.
// The first true rule decides the outcome; when no rule matches, the
// pattern's own module runs with the original input.
func (o *Orchestrator) runConditional(ctx context.Context, ec execContext, mod *module.Module, input any) *envelope.Result {
	cfg := mod.Composition

	routed := make(map[string]bool)
	for _, rule := range cfg.Routing {
		if rule.Next != nil {
			routed[*rule.Next] = true
		}
	}

	current := input
	var last *envelope.Result

	for _, step := range cfg.Dataflow {
		if step.Condition != "" {
			doc := ec.conditionDoc(map[string]any{"current": current})
			if !o.cond.Evaluate(step.Condition, doc) {
				skipStep(ec, step)
				continue
			}
		}

		targets := preRoutingTargets(step, routed)
		if len(targets) == 0 {
			continue
		}

		payload, failure := o.stepPayload(ec, step)
		if failure != nil {
			return failure
		}

		for _, target := range targets {
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

	doc := ec.conditionDoc(nil)
	for _, rule := range cfg.Routing {
		if !o.cond.Evaluate(rule.Condition, doc) {
			continue
		}
		if rule.Next == nil {
			// Pass the current result through unchanged.
			if last != nil {
				return last
			}
			return o.invokeLeaf(ctx, ec, mod, input, 0)
		}
		return o.routeTo(ctx, ec, mod, *rule.Next, input)
	}

	return o.invokeLeaf(ctx, ec, mod, input, 0)
}

// routeTo invokes a routing destination, deriving its input from the
// dataflow step that targets it when one exists.
func (o *Orchestrator) routeTo(ctx context.Context, ec execContext, mod *module.Module, next string, input any) *envelope.Result {
	payload := input
	if step := stepTargeting(mod.Composition.Dataflow, next); step != nil {
		p, failure := o.stepPayload(ec, *step)
		if failure != nil {
			return failure
		}
		payload = p
	}

	result, fatal := o.invokeDependency(ctx, ec, mod, findDecl(mod, next), payload)
	if fatal != nil {
		return fatal
	}
	if result != nil {
		return result
	}
	// Optional destination that could not deliver: surface whatever failure
	// was recorded for it.
	if r, ok := ec.result(next); ok && r != nil {
		return r
	}
	return envelope.Failuref(envelope.CodeDependencyNotFound, "routing destination %s unavailable", next)
}

// preRoutingTargets returns the step targets that are not routing
// destinations and not the output sentinel.
func preRoutingTargets(step module.DataflowStep, routed map[string]bool) []string {
	var out []string
	for _, target := range step.To {
		if target == module.OutputTarget || routed[target] {
			continue
		}
		out = append(out, target)
	}
	return out
}

// stepTargeting finds the first dataflow step listing name as a target.
func stepTargeting(steps []module.DataflowStep, name string) *module.DataflowStep {
	for i := range steps {
		for _, target := range steps[i].To {
			if target == name {
				return &steps[i]
			}
		}
	}
	return nil
}
