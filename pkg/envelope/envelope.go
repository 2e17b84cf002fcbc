// SPDX-License-Identifier: Apache-2.0
// Package envelope defines the standard success-or-failure wrapper returned
// by every module invocation, carrying confidence, risk and explanation
// metadata alongside the payload.
package envelope

import (
	"encoding/json"
	"fmt"
)

// ErrorCode classifies composition-level failures for callers and monitoring.
// These strings are part of the wire contract and must not change.
type ErrorCode string

const (
	// CodeCircularDependency indicates a module reappeared in the running-set.
	CodeCircularDependency ErrorCode = "CIRCULAR_DEPENDENCY"

	// CodeMaxDepthExceeded indicates recursion depth exceeded the configured ceiling.
	CodeMaxDepthExceeded ErrorCode = "MAX_DEPTH_EXCEEDED"

	// CodeCompositionTimeout indicates a total or per-dependency timeout elapsed.
	CodeCompositionTimeout ErrorCode = "COMPOSITION_TIMEOUT"

	// CodeDependencyNotFound indicates a mandatory dependency could not be resolved.
	CodeDependencyNotFound ErrorCode = "DEPENDENCY_NOT_FOUND"

	// CodeDataflowError indicates a dataflow step referenced an invalid source or target.
	CodeDataflowError ErrorCode = "DATAFLOW_ERROR"

	// CodeConditionEvalError is logged when a condition fails to evaluate.
	// The evaluator returns false instead of surfacing a hard failure.
	CodeConditionEvalError ErrorCode = "CONDITION_EVAL_ERROR"

	// CodeAggregationError indicates aggregation was invoked with zero results.
	CodeAggregationError ErrorCode = "AGGREGATION_ERROR"

	// CodeIterationLimitExceeded indicates the iterative pattern exhausted its
	// iteration budget without a stop signal.
	CodeIterationLimitExceeded ErrorCode = "ITERATION_LIMIT_EXCEEDED"

	// CodeModuleExecutionError indicates a module invocation itself failed.
	CodeModuleExecutionError ErrorCode = "MODULE_EXECUTION_ERROR"

	// CodeInvalidModuleOutput indicates a module produced output that could not
	// be repaired into a well-formed envelope.
	CodeInvalidModuleOutput ErrorCode = "INVALID_MODULE_OUTPUT"
)

// RiskLevel is an ordered severity summarizing a result's downside.
type RiskLevel string

const (
	RiskNone   RiskLevel = "none"
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// riskOrder maps levels to their ordering; unknown levels rank lowest.
var riskOrder = map[RiskLevel]int{
	RiskNone:   0,
	RiskLow:    1,
	RiskMedium: 2,
	RiskHigh:   3,
}

// MaxExplainLen is the maximum length of Meta.Explain. Longer strings are
// truncated with an ellipsis marker.
const MaxExplainLen = 280

// Meta annotates every result with confidence, risk and a short explanation.
type Meta struct {
	Confidence float64   `json:"confidence" yaml:"confidence"`
	Risk       RiskLevel `json:"risk" yaml:"risk"`
	Explain    string    `json:"explain,omitempty" yaml:"explain,omitempty"`
}

// ResultError carries the typed failure of a module or composition call.
type ResultError struct {
	Code    ErrorCode `json:"code" yaml:"code"`
	Message string    `json:"message" yaml:"message"`
}

// Error implements the error interface.
func (e *ResultError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Result is the envelope around a module's output. It is exclusively
// success-shaped (Data set, Error nil) or failure-shaped (Error set, Data
// nil, PartialData optional) — never both.
type Result struct {
	OK          bool         `json:"ok" yaml:"ok"`
	Meta        Meta         `json:"meta" yaml:"meta"`
	Data        any          `json:"data,omitempty" yaml:"data,omitempty"`
	Error       *ResultError `json:"error,omitempty" yaml:"error,omitempty"`
	PartialData any          `json:"partial_data,omitempty" yaml:"partial_data,omitempty"`
}

// Success builds a success-shaped result with normalized metadata.
func Success(data any, meta Meta) *Result {
	return &Result{
		OK:   true,
		Meta: normalizeMeta(meta),
		Data: data,
	}
}

// Failure builds a failure-shaped result for the given code and message.
func Failure(code ErrorCode, message string) *Result {
	return &Result{
		OK: false,
		Meta: Meta{
			Confidence: 0,
			Risk:       RiskHigh,
			Explain:    TruncateExplain(message),
		},
		Error: &ResultError{Code: code, Message: message},
	}
}

// Failuref builds a failure result with a formatted message.
func Failuref(code ErrorCode, format string, args ...any) *Result {
	return Failure(code, fmt.Sprintf(format, args...))
}

// WithPartialData attaches partial data to a failure result and returns it.
func (r *Result) WithPartialData(data any) *Result {
	r.PartialData = data
	return r
}

// Normalize clamps confidence, defaults risk and truncates the explanation.
// It returns the receiver for chaining.
func (r *Result) Normalize() *Result {
	r.Meta = normalizeMeta(r.Meta)
	return r
}

func normalizeMeta(m Meta) Meta {
	m.Confidence = ClampConfidence(m.Confidence)
	if _, ok := riskOrder[m.Risk]; !ok {
		m.Risk = RiskNone
	}
	m.Explain = TruncateExplain(m.Explain)
	return m
}

// ClampConfidence forces a confidence score into [0,1].
func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// MaxRisk returns the higher of two risk levels.
func MaxRisk(a, b RiskLevel) RiskLevel {
	if riskOrder[b] > riskOrder[a] {
		return b
	}
	return a
}

// RiskRank returns the numeric order of a risk level (unknown levels rank 0).
func RiskRank(r RiskLevel) int {
	return riskOrder[r]
}

// TruncateExplain enforces the explanation length limit, appending an
// ellipsis marker when the input is cut.
func TruncateExplain(s string) string {
	if len(s) <= MaxExplainLen {
		return s
	}
	runes := []rune(s)
	if len(runes) <= MaxExplainLen {
		return s
	}
	return string(runes[:MaxExplainLen-3]) + "..."
}

// MarshalJSON keeps the exclusive success/failure shape on the wire: Data is
// dropped from failures and Error/PartialData from successes.
func (r *Result) MarshalJSON() ([]byte, error) {
	type alias Result
	out := alias(*r)
	if out.OK {
		out.Error = nil
		out.PartialData = nil
	} else {
		out.Data = nil
	}
	return json.Marshal(out)
}
