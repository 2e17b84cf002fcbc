// SPDX-License-Identifier: Apache-2.0
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// CompositionMetrics tracks composition runs and module invocations.
type CompositionMetrics struct {
	// runsTotal counts completed composition calls by module, pattern
	// and outcome.
	runsTotal metric.Int64Counter

	// runDuration measures end-to-end composition latency.
	runDuration metric.Float64Histogram

	// invocationsTotal counts individual module invocations.
	invocationsTotal metric.Int64Counter

	// failuresTotal counts failures by stable error code.
	failuresTotal metric.Int64Counter
}

// NewCompositionMetrics registers the composition instruments on the global
// meter provider.
func NewCompositionMetrics() (*CompositionMetrics, error) {
	meter := otel.Meter("cogmod/compose")

	runsTotal, err := meter.Int64Counter(
		"cogmod.compositions.total",
		metric.WithDescription("Completed composition calls by module, pattern and outcome"),
	)
	if err != nil {
		return nil, err
	}

	runDuration, err := meter.Float64Histogram(
		"cogmod.compositions.duration",
		metric.WithDescription("End-to-end composition latency"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	invocationsTotal, err := meter.Int64Counter(
		"cogmod.invocations.total",
		metric.WithDescription("Individual module invocations by module and outcome"),
	)
	if err != nil {
		return nil, err
	}

	failuresTotal, err := meter.Int64Counter(
		"cogmod.failures.total",
		metric.WithDescription("Composition failures by error code"),
	)
	if err != nil {
		return nil, err
	}

	return &CompositionMetrics{
		runsTotal:        runsTotal,
		runDuration:      runDuration,
		invocationsTotal: invocationsTotal,
		failuresTotal:    failuresTotal,
	}, nil
}

// RecordRun records one completed composition call.
func (m *CompositionMetrics) RecordRun(ctx context.Context, moduleName, pattern string, ok bool, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("module", moduleName),
		attribute.String("pattern", pattern),
		attribute.Bool("ok", ok),
	)
	m.runsTotal.Add(ctx, 1, attrs)
	m.runDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// RecordInvocation records one module invocation attempt.
func (m *CompositionMetrics) RecordInvocation(ctx context.Context, moduleName string, ok bool) {
	m.invocationsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("module", moduleName),
		attribute.Bool("ok", ok),
	))
}

// RecordFailure records a composition failure by its stable error code.
func (m *CompositionMetrics) RecordFailure(ctx context.Context, moduleName, code string) {
	m.failuresTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("module", moduleName),
		attribute.String("code", code),
	))
}
