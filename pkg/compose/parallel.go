// SPDX-License-Identifier: Apache-2.0
package compose

import (
	"context"
	"sync"

	"github.com/ziel-io/cognitive-modules/pkg/aggregate"
	"github.com/ziel-io/cognitive-modules/pkg/envelope"
	"github.com/ziel-io/cognitive-modules/pkg/module"
)

// runParallel fans each fan-out step's targets into concurrent invocations
// and joins before anything else runs: no branch result is consulted until
// every branch has settled. After the join, the step targeting output
// drives the aggregator over the referenced results.
func (o *Orchestrator) runParallel(ctx context.Context, ec execContext, mod *module.Module, input any) *envelope.Result {
	cfg := mod.Composition
	var outputStep *module.DataflowStep
	var invoked []string

	for i := range cfg.Dataflow {
		step := cfg.Dataflow[i]
		if step.HasOutputTarget() {
			if outputStep == nil {
				outputStep = &cfg.Dataflow[i]
			}
			continue
		}

		if step.Condition != "" {
			doc := ec.conditionDoc(map[string]any{"current": input})
			if !o.cond.Evaluate(step.Condition, doc) {
				skipStep(ec, step)
				continue
			}
		}

		payload, failure := o.stepPayload(ec, step)
		if failure != nil {
			return failure
		}

		// Fork: one branch per target, each with its own copy of the
		// context value so depth bookkeeping stays branch-local.
		fatals := make([]*envelope.Result, len(step.To))
		var wg sync.WaitGroup
		for j, target := range step.To {
			if target == module.OutputTarget {
				continue
			}
			invoked = append(invoked, target)
			wg.Add(1)
			go func(j int, target string) {
				defer wg.Done()
				_, fatal := o.invokeDependency(ctx, ec, mod, findDecl(mod, target), payload)
				fatals[j] = fatal
			}(j, target)
		}
		wg.Wait()

		// Join: a single mandatory failure aborts the whole run.
		for _, fatal := range fatals {
			if fatal != nil {
				return fatal
			}
		}
	}

	refs := invoked
	strategy := aggregate.StrategyMerge
	if outputStep != nil {
		strategy = outputStep.Aggregate
		refs = make([]string, 0, len(outputStep.From))
		for _, ref := range outputStep.From {
			if ref == module.InputSource {
				continue
			}
			refs = append(refs, sourceModuleName(ref))
		}
	}

	results := make([]*envelope.Result, 0, len(refs))
	for _, name := range refs {
		if r, ok := ec.result(name); ok && r != nil {
			results = append(results, r)
		}
	}
	return aggregate.Aggregate(results, strategy)
}
