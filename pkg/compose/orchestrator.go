// SPDX-License-Identifier: Apache-2.0
// Package compose implements the composition orchestrator: the state machine
// that resolves a composite module's dependencies and drives them through
// one of four execution patterns (sequential, parallel, conditional,
// iterative) under cycle, depth, and timeout safeguards.
package compose

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ziel-io/cognitive-modules/pkg/condition"
	"github.com/ziel-io/cognitive-modules/pkg/envelope"
	"github.com/ziel-io/cognitive-modules/pkg/executor"
	"github.com/ziel-io/cognitive-modules/pkg/module"
	"github.com/ziel-io/cognitive-modules/pkg/resilience"
	"github.com/ziel-io/cognitive-modules/pkg/telemetry"
)

// Orchestrator executes modules. Atomic modules go straight to the invoker;
// composite modules are driven through their configured pattern, recursively
// re-entering the orchestrator for dependencies that are themselves
// composite.
type Orchestrator struct {
	lookup  module.Lookup
	invoker executor.Invoker
	cond    *condition.Evaluator
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *telemetry.CompositionMetrics
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
		o.cond = condition.New(logger)
	}
}

// WithMetrics enables composition metrics.
func WithMetrics(m *telemetry.CompositionMetrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// New creates an orchestrator over the given module lookup and invoker.
func New(lookup module.Lookup, invoker executor.Invoker, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		lookup:  lookup,
		invoker: invoker,
		cond:    condition.New(nil),
		logger:  slog.Default(),
		tracer:  otel.Tracer("cogmod/compose"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Execute runs a module against an input document and returns a well-formed
// result envelope plus the execution trace. It never panics and never
// returns a nil result: every internal failure is converted into a failure
// envelope carrying one of the stable error codes.
func (o *Orchestrator) Execute(ctx context.Context, mod *module.Module, input any) (result *envelope.Result, tr *Trace) {
	cfg := mod.Composition
	ec := newExecContext(input, cfg.EffectiveMaxDepth(), totalTimeout(cfg))
	tr = ec.state.trace

	ctx, span := o.tracer.Start(ctx, "Compose.Execute", trace.WithAttributes(
		attribute.String("module.name", mod.Name),
		attribute.String("module.pattern", string(patternOf(mod))),
	))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("composition panicked", "module", mod.Name, "panic", r)
			result = envelope.Failuref(envelope.CodeModuleExecutionError, "internal error: %v", r)
		}
		ec.leave(mod.Name)
	}()

	ec.enter(mod.Name)
	if !mod.IsComposite() {
		result = o.invokeLeaf(ctx, ec, mod, input, 0)
		return result, tr
	}
	result = o.compose(ctx, ec, mod, input)
	elapsed := time.Since(ec.state.start)
	if o.metrics != nil {
		o.metrics.RecordRun(ctx, mod.Name, string(cfg.Pattern), result.OK, elapsed)
		if !result.OK && result.Error != nil {
			o.metrics.RecordFailure(ctx, mod.Name, string(result.Error.Code))
		}
	}
	o.logger.Info("composition finished",
		"module", mod.Name,
		"pattern", string(cfg.Pattern),
		"ok", result.OK,
		"steps", tr.Len(),
		"elapsed", elapsed)
	return result, tr
}

// compose runs the pattern state machine for one composite module. The
// caller holds the module's slot in the running-set.
func (o *Orchestrator) compose(ctx context.Context, ec execContext, mod *module.Module, input any) *envelope.Result {
	cfg := mod.Composition

	if ec.expired() {
		return envelope.Failuref(envelope.CodeCompositionTimeout, "composition %s exceeded its time budget", mod.Name)
	}

	// Every declared dependency must resolve before any pattern runs.
	for _, decl := range cfg.Requires {
		if _, err := module.Resolve(decl, o.lookup); err != nil {
			return envelope.Failuref(envelope.CodeDependencyNotFound,
				"dependency %s of %s: %v", decl.Module, mod.Name, err)
		}
	}

	switch cfg.Pattern {
	case module.PatternSequential:
		return o.runSequential(ctx, ec, mod, input)
	case module.PatternParallel:
		return o.runParallel(ctx, ec, mod, input)
	case module.PatternConditional:
		return o.runConditional(ctx, ec, mod, input)
	case module.PatternIterative:
		return o.runIterative(ctx, ec, mod, input)
	default:
		return envelope.Failuref(envelope.CodeDataflowError, "unknown pattern %q in %s", cfg.Pattern, mod.Name)
	}
}

// run invokes a dependency with the full safeguard set: timeout, cycle, and
// depth checks on entry, scoped release of the running-set slot on every
// exit path, one trace entry per attempt, and the result stored under the
// module's name.
func (o *Orchestrator) run(ctx context.Context, ec execContext, mod *module.Module, input any, perDep time.Duration) (result *envelope.Result) {
	start := time.Now()

	finish := func(r *envelope.Result) *envelope.Result {
		end := time.Now()
		entry := TraceEntry{
			Module:   mod.Name,
			Start:    start,
			End:      end,
			Duration: end.Sub(start),
			Success:  r.OK,
		}
		if !r.OK && r.Error != nil {
			entry.Reason = r.Error.Message
		}
		ec.state.trace.append(entry)
		ec.setResult(mod.Name, r)
		if o.metrics != nil {
			o.metrics.RecordInvocation(ctx, mod.Name, r.OK)
		}
		return r
	}

	if ec.expired() {
		return finish(envelope.Failuref(envelope.CodeCompositionTimeout,
			"composition budget exhausted before invoking %s", mod.Name))
	}

	child := ec.child()
	if child.depth > ec.maxDepth {
		return finish(envelope.Failuref(envelope.CodeMaxDepthExceeded,
			"invoking %s would exceed max depth %d", mod.Name, ec.maxDepth))
	}

	if !ec.enter(mod.Name) {
		return finish(envelope.Failuref(envelope.CodeCircularDependency,
			"module %s is already executing", mod.Name))
	}

	ctx, span := o.tracer.Start(ctx, "Compose.Invoke", trace.WithAttributes(
		attribute.String("module.name", mod.Name),
		attribute.Int("depth", child.depth),
	))

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("module invocation panicked", "module", mod.Name, "panic", r)
			result = finish(envelope.Failuref(envelope.CodeModuleExecutionError,
				"module %s: internal error: %v", mod.Name, r))
		}
		ec.leave(mod.Name)
		span.End()
	}()

	r, err := resilience.WithTimeoutResult(ctx, ec.raceBudget(perDep),
		func(ctx context.Context) (*envelope.Result, error) {
			if mod.IsComposite() {
				return o.compose(ctx, child, mod, input), nil
			}
			return o.invoker.Invoke(ctx, mod, input)
		})
	if err != nil {
		if errors.Is(err, resilience.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return finish(envelope.Failuref(envelope.CodeCompositionTimeout,
				"module %s timed out", mod.Name))
		}
		// Invocation boundary broke; converted, never re-raised.
		return finish(envelope.Failure(envelope.CodeModuleExecutionError, err.Error()))
	}
	return finish(r.Normalize())
}

// invokeLeaf executes the pattern's own module as a plain invocation. The
// module already holds its running-set slot, so only the timeout guard
// applies. Used by sequential and conditional fall-through and by every
// iteration of the iterative pattern.
func (o *Orchestrator) invokeLeaf(ctx context.Context, ec execContext, mod *module.Module, input any, perDep time.Duration) (result *envelope.Result) {
	start := time.Now()

	finish := func(r *envelope.Result) *envelope.Result {
		end := time.Now()
		entry := TraceEntry{
			Module:   mod.Name,
			Start:    start,
			End:      end,
			Duration: end.Sub(start),
			Success:  r.OK,
		}
		if !r.OK && r.Error != nil {
			entry.Reason = r.Error.Message
		}
		ec.state.trace.append(entry)
		if o.metrics != nil {
			o.metrics.RecordInvocation(ctx, mod.Name, r.OK)
		}
		return r
	}

	if ec.expired() {
		return finish(envelope.Failuref(envelope.CodeCompositionTimeout,
			"composition budget exhausted before invoking %s", mod.Name))
	}

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("module invocation panicked", "module", mod.Name, "panic", r)
			result = finish(envelope.Failuref(envelope.CodeModuleExecutionError,
				"module %s: internal error: %v", mod.Name, r))
		}
	}()

	r, err := resilience.WithTimeoutResult(ctx, ec.raceBudget(perDep),
		func(ctx context.Context) (*envelope.Result, error) {
			return o.invoker.Invoke(ctx, mod, input)
		})
	if err != nil {
		if errors.Is(err, resilience.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return finish(envelope.Failuref(envelope.CodeCompositionTimeout,
				"module %s timed out", mod.Name))
		}
		return finish(envelope.Failure(envelope.CodeModuleExecutionError, err.Error()))
	}
	return finish(r.Normalize())
}

// invokeDependency resolves a declaration, invokes the resolved module, and
// applies the at-most-once fallback policy on failure. The first return
// value is the successful result (nil when an optional dependency could not
// deliver one); the second is a fatal failure that must abort the pattern.
func (o *Orchestrator) invokeDependency(ctx context.Context, ec execContext, mod *module.Module, decl module.DependencyDeclaration, input any) (*envelope.Result, *envelope.Result) {
	resolved, err := module.Resolve(decl, o.lookup)
	if err != nil {
		return nil, envelope.Failuref(envelope.CodeDependencyNotFound,
			"dependency %s of %s: %v", decl.Module, mod.Name, err)
	}
	if resolved == nil {
		// Optional and unresolvable.
		return nil, nil
	}

	result := o.run(ctx, ec, resolved, input, depTimeout(decl))
	if !result.OK && !terminal(ec, result) && decl.Fallback != "" && resolved.Name != decl.Fallback {
		if fb, ok := o.lookup(decl.Fallback); ok {
			o.logger.Warn("dependency failed, substituting fallback",
				"module", resolved.Name, "fallback", decl.Fallback)
			result = o.run(ctx, ec, fb, input, depTimeout(decl))
		}
	}

	if result.OK {
		// The declared slot points at whichever module delivered, so later
		// steps can reference the dependency by its declared name even when
		// the fallback answered.
		ec.setResult(decl.Module, result)
		return result, nil
	}
	if terminal(ec, result) || !decl.Optional {
		return nil, result
	}
	ec.setResult(decl.Module, result)
	return nil, nil
}

// terminal reports whether a failure must abort the whole composition
// regardless of the dependency's optionality.
func terminal(ec execContext, r *envelope.Result) bool {
	if r.OK || r.Error == nil {
		return false
	}
	switch r.Error.Code {
	case envelope.CodeCircularDependency, envelope.CodeMaxDepthExceeded:
		return true
	case envelope.CodeCompositionTimeout:
		return ec.expired()
	}
	return false
}

// raceBudget returns the duration for the invocation-vs-timer race: the
// tighter of the per-dependency budget and what remains of the total one.
// Zero means no limit.
func (c execContext) raceBudget(perDep time.Duration) time.Duration {
	budget := perDep
	if c.state.timeout != nil {
		if rem := c.remaining(); budget <= 0 || (rem > 0 && rem < budget) {
			budget = rem
		}
	}
	return budget
}

func depTimeout(decl module.DependencyDeclaration) time.Duration {
	if decl.TimeoutMS <= 0 {
		return 0
	}
	return time.Duration(decl.TimeoutMS) * time.Millisecond
}

// findDecl returns the declaration matching a dataflow target, or a plain
// mandatory declaration when the target was never declared in requires.
func findDecl(mod *module.Module, name string) module.DependencyDeclaration {
	for _, decl := range mod.Composition.Requires {
		if decl.Module == name {
			return decl
		}
	}
	return module.DependencyDeclaration{Module: name}
}

func totalTimeout(cfg *module.CompositionConfig) *int64 {
	if cfg == nil {
		return nil
	}
	return cfg.TimeoutMS
}

func patternOf(mod *module.Module) module.Pattern {
	if mod.Composition == nil {
		return ""
	}
	return mod.Composition.Pattern
}
